package hierarchy

import (
	"context"

	"github.com/siherrmann/archivist/model"
)

// Store defines the read operations the chain builder and paginator need
type Store interface {
	SelectComponent(ctx context.Context, id string) (*model.Component, error)
	SelectReferences(ctx context.Context, ownerID string, relation model.RelationTag, limit int, offset int) ([]*model.Reference, error)
	CountReferences(ctx context.Context, ownerID string, relation model.RelationTag) (int, error)
	CountHits(ctx context.Context, query string, identifier string) (model.HitCount, error)
}
