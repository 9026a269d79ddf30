package model

import (
	"time"

	"github.com/google/uuid"
)

// Reference is a typed edge from its owner to a target component.
// References are stored in the owner's partition and only reachable through it.
type Reference struct {
	ID                  uuid.UUID           `json:"id"`
	OwnerID             string              `json:"owner_id"`
	Relation            RelationTag         `json:"relation"`
	TargetID            string              `json:"target_id"`
	URI                 string              `json:"uri"`
	Type                ComponentType       `json:"type"`
	Title               string              `json:"title"`
	Position            *int                `json:"order"`
	ExternalIdentifiers ExternalIdentifiers `json:"external_identifiers"`
	SourceIdentifiers   []string            `json:"-"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewReferenceTo builds an unsaved reference from owner to target.
func NewReferenceTo(ownerID string, target *Component, tag RelationTag, position *int) *Reference {
	r := &Reference{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Relation: tag,
	}
	r.ApplyTarget(target, position)
	return r
}

// ApplyTarget copies the denormalized target fields onto the reference.
func (r *Reference) ApplyTarget(target *Component, position *int) {
	r.TargetID = target.ID
	r.URI = target.URI()
	r.Type = target.Type
	r.Title = target.Title
	r.ExternalIdentifiers = append(ExternalIdentifiers{}, target.ExternalIdentifiers...)
	r.SourceIdentifiers = target.SourceIdentifiers()

	switch {
	case position != nil:
		p := *position
		r.Position = &p
	case target.Position != nil:
		p := *target.Position
		r.Position = &p
	default:
		r.Position = nil
	}
}
