package hierarchy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxDepth = 32
	// maxAncestorReferences bounds the ancestor references read per component.
	maxAncestorReferences = 1000
)

// ChainBuilder reconstructs the lineage of a component from its ancestor references.
type ChainBuilder struct {
	store    Store
	maxDepth int
	logger   *slog.Logger
}

func NewChainBuilder(store Store, maxDepth int, logger *slog.Logger) *ChainBuilder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainBuilder{
		store:    store,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// BuildChain returns the ancestors of a component, nearest first.
// The component's own ancestor references are extended with the ancestor
// references of the furthest known ancestor until the root is reached.
// Every node is refreshed from the live component. A non-empty query adds
// scoped hit counts to every node.
func (b *ChainBuilder) BuildChain(ctx context.Context, componentID string, query string) (model.AncestorChain, error) {
	_, err := b.store.SelectComponent(ctx, componentID)
	if err != nil {
		return nil, helper.NewError("build chain", err)
	}

	visited := map[string]bool{componentID: true}
	var references []*model.Reference

	appendNew := func(refs []*model.Reference) int {
		added := 0
		for _, r := range refs {
			if visited[r.TargetID] {
				continue
			}
			visited[r.TargetID] = true
			references = append(references, r)
			added++
		}
		return added
	}

	refs, err := b.store.SelectReferences(ctx, componentID, model.RelationAncestor, maxAncestorReferences, 0)
	if err != nil {
		return nil, helper.NewError("select ancestors", err)
	}
	appendNew(refs)

	expanded := map[string]bool{}
	for depth := 0; len(references) > 0; depth++ {
		if depth >= b.maxDepth {
			b.logger.Warn("Ancestor chain exceeds max depth", slog.String("component", componentID), slog.Int("max_depth", b.maxDepth))
			break
		}

		furthest := references[len(references)-1].TargetID
		if expanded[furthest] {
			break
		}
		expanded[furthest] = true

		refs, err := b.store.SelectReferences(ctx, furthest, model.RelationAncestor, maxAncestorReferences, 0)
		if err != nil {
			return nil, helper.NewError("select ancestors", err)
		}
		if appendNew(refs) == 0 {
			break
		}
	}

	chain := make(model.AncestorChain, len(references))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range references {
		g.Go(func() error {
			node, err := b.node(gctx, r, query)
			if err != nil {
				return err
			}
			chain[i] = node
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	return chain, nil
}

// node builds a chain node from the stored reference, overwritten with live data.
func (b *ChainBuilder) node(ctx context.Context, r *model.Reference, query string) (model.AncestorNode, error) {
	node := model.AncestorNode{
		Identifier: r.TargetID,
		URI:        r.URI,
		Title:      r.Title,
		Type:       r.Type,
		Order:      r.Position,
	}

	live, err := b.store.SelectComponent(ctx, r.TargetID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		b.logger.Debug("Ancestor not indexed, using stored reference", slog.String("id", r.TargetID))
	case err != nil:
		return node, helper.NewError("refresh ancestor", err)
	default:
		node.Title = live.Title
		node.Type = live.Type
		node.URI = live.URI()
		node.Dates = live.DateString()
		node.Description = live.Description()
		node.Online = live.Online
	}

	if len(query) > 0 {
		hits, err := b.store.CountHits(ctx, query, r.TargetID)
		if err != nil {
			return node, helper.NewError("count hits", err)
		}
		total, online := hits.Total, hits.Online
		node.HitCount = &total
		node.OnlineHitCount = &online
	}

	return node, nil
}
