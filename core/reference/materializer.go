package reference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/lock"
	"github.com/siherrmann/archivist/model"
)

// ReferenceStore defines the reference operations the materializer needs
type ReferenceStore interface {
	SelectReferencesMatching(ctx context.Context, ownerID string, relation model.RelationTag, sourceIdentifiers []string) ([]*model.Reference, error)
	InsertReference(ctx context.Context, reference *model.Reference) error
	UpdateReference(ctx context.Context, reference *model.Reference) error
}

// Materializer writes typed references from an owner to a target component.
type Materializer struct {
	store  ReferenceStore
	locker lock.Locker
	logger *slog.Logger
}

// NewMaterializer creates a materializer. locker may be nil, in which case
// concurrent writes of the same owner, tag and target can both insert.
func NewMaterializer(store ReferenceStore, locker lock.Locker, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		store:  store,
		locker: locker,
		logger: logger,
	}
}

// Materialize creates or refreshes the reference from owner to target tagged tag.
// An existing reference under owner with the same tag and an overlapping
// source identifier is updated in place. The bool reports whether a new
// reference was inserted. position overrides the target's own position.
func (m *Materializer) Materialize(ctx context.Context, owner *model.Component, target *model.Component, tag model.RelationTag, position *int) (*model.Reference, bool, error) {
	if owner == nil || target == nil {
		return nil, false, helper.NewError("materialize", fmt.Errorf("owner and target are required"))
	}

	keys := target.SourceIdentifiers()
	if len(keys) == 0 {
		return nil, false, helper.NewError("materialize", fmt.Errorf("target %s has no source identifiers", target.ID))
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, lockKey(owner.ID, tag, keys))
		if err != nil {
			return nil, false, helper.NewError("materialize lock", err)
		}
		defer unlock()
	}

	existing, err := m.store.SelectReferencesMatching(ctx, owner.ID, tag, keys)
	if err != nil {
		return nil, false, helper.NewError("materialize select", err)
	}

	if len(existing) > 0 {
		reference := existing[0]
		reference.ApplyTarget(target, position)
		err = m.store.UpdateReference(ctx, reference)
		if err != nil {
			return nil, false, helper.NewError("materialize update", err)
		}
		if len(existing) > 1 {
			m.logger.Warn("Duplicate references", slog.String("owner", owner.ID), slog.String("relation", string(tag)), slog.Int("count", len(existing)))
		}

		m.logger.Debug("Updated reference", slog.String("owner", owner.ID), slog.String("relation", string(tag)), slog.String("target", target.ID))
		return reference, false, nil
	}

	reference := model.NewReferenceTo(owner.ID, target, tag, position)
	err = m.store.InsertReference(ctx, reference)
	if err != nil {
		return nil, false, helper.NewError("materialize insert", err)
	}

	m.logger.Debug("Materialized reference", slog.String("owner", owner.ID), slog.String("relation", string(tag)), slog.String("target", target.ID))
	return reference, true, nil
}

// lockKey uses the first source identifier so that every writer of the
// same target agrees on the key.
func lockKey(ownerID string, tag model.RelationTag, keys []string) string {
	return strings.Join([]string{ownerID, string(tag), keys[0]}, "|")
}
