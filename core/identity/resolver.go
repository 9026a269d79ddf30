package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
)

// ComponentStore defines the lookups the resolver needs
type ComponentStore interface {
	SelectComponent(ctx context.Context, id string) (*model.Component, error)
	SelectComponentsBySourceIdentifier(ctx context.Context, sourceIdentifier string, types ...model.ComponentType) ([]*model.Component, error)
}

// Resolver finds the stored component for a source system identifier.
type Resolver struct {
	store  ComponentStore
	logger *slog.Logger
}

func NewResolver(store ComponentStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the single component holding (source, identifier).
// Zero matches return model.ErrNotFound, more than one model.ErrAmbiguousMatch.
func (r *Resolver) Resolve(ctx context.Context, source string, identifier string, types ...model.ComponentType) (*model.Component, error) {
	return r.ResolveKey(ctx, model.SourceIdentifierKey(source, identifier), types...)
}

// ResolveKey is Resolve for an already derived join key.
func (r *Resolver) ResolveKey(ctx context.Context, sourceIdentifier string, types ...model.ComponentType) (*model.Component, error) {
	components, err := r.store.SelectComponentsBySourceIdentifier(ctx, sourceIdentifier, types...)
	if err != nil {
		return nil, helper.NewError("resolve "+sourceIdentifier, err)
	}

	switch len(components) {
	case 0:
		return nil, helper.NewError("resolve "+sourceIdentifier, model.ErrNotFound)
	case 1:
		return components[0], nil
	}

	ids := make([]string, 0, len(components))
	for _, c := range components {
		ids = append(ids, c.ID)
	}
	r.logger.Warn("Ambiguous source identifier", slog.String("source_identifier", sourceIdentifier), slog.Any("ids", ids))

	return nil, helper.NewError("resolve "+sourceIdentifier, fmt.Errorf("%w: %d components share the identifier", model.ErrAmbiguousMatch, len(components)))
}

// ResolveCitation tries each external identifier of the citation in order and
// returns the first component found. An ambiguous identifier aborts the lookup.
func (r *Resolver) ResolveCitation(ctx context.Context, citation model.Citation, types ...model.ComponentType) (*model.Component, error) {
	keys := citation.SourceIdentifiers()
	if len(keys) == 0 {
		return nil, helper.NewError("resolve citation", fmt.Errorf("%w: citation has no external identifiers", model.ErrNotFound))
	}

	var lastErr error
	for _, key := range keys {
		component, err := r.ResolveKey(ctx, key, types...)
		if err == nil {
			return component, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// ResolveID returns the component with the stable id.
func (r *Resolver) ResolveID(ctx context.Context, id string) (*model.Component, error) {
	component, err := r.store.SelectComponent(ctx, id)
	if err != nil {
		return nil, helper.NewError("resolve id", err)
	}
	return component, nil
}
