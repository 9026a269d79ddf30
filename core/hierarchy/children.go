package hierarchy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
	"golang.org/x/sync/errgroup"
)

// ChildrenPaginator lists the direct children of a component in position order.
type ChildrenPaginator struct {
	store    Store
	maxLimit int
	logger   *slog.Logger
}

func NewChildrenPaginator(store Store, maxLimit int, logger *slog.Logger) *ChildrenPaginator {
	if maxLimit <= 0 {
		maxLimit = model.MaxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChildrenPaginator{
		store:    store,
		maxLimit: maxLimit,
		logger:   logger,
	}
}

// ListChildren returns one page of child references ordered by position,
// nulls last. Each row carries the parent's group and the live child's
// dates, description and online flag. A non-empty query adds the scoped hit
// count of every row, computed concurrently.
func (p *ChildrenPaginator) ListChildren(ctx context.Context, collectionID string, limit int, offset int, query string) (*model.Page[*model.ReferenceNode], error) {
	parent, err := p.store.SelectComponent(ctx, collectionID)
	if err != nil {
		return nil, helper.NewError("list children", err)
	}

	config := model.QueryConfig{Limit: limit, Offset: offset, Query: query}
	config.Normalize(p.maxLimit)

	count, err := p.store.CountReferences(ctx, collectionID, model.RelationChild)
	if err != nil {
		return nil, helper.NewError("count children", err)
	}

	references, err := p.store.SelectReferences(ctx, collectionID, model.RelationChild, config.Limit, config.Offset)
	if err != nil {
		return nil, helper.NewError("select children", err)
	}

	group := groupOf(parent)
	nodes := make([]*model.ReferenceNode, len(references))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Limit)
	for i, r := range references {
		node := &model.ReferenceNode{Reference: r, Group: group}
		nodes[i] = node

		g.Go(func() error {
			live, err := p.store.SelectComponent(gctx, r.TargetID)
			switch {
			case errors.Is(err, model.ErrNotFound):
				p.logger.Debug("Child not indexed, using stored reference", slog.String("id", r.TargetID))
			case err != nil:
				return helper.NewError("refresh child", err)
			default:
				node.Dates = live.DateString()
				node.Description = live.Description()
				node.Online = live.Online
			}

			if len(config.Query) > 0 {
				hits, err := p.store.CountHits(gctx, config.Query, r.TargetID)
				if err != nil {
					return helper.NewError("count hits", err)
				}
				node.SetHits(hits)
			}
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	return &model.Page[*model.ReferenceNode]{
		Count:   count,
		Limit:   config.Limit,
		Offset:  config.Offset,
		Results: nodes,
	}, nil
}

// groupOf returns the parent's group, or a group framing the parent itself
// when it is a top-level collection.
func groupOf(parent *model.Component) *model.Group {
	if parent.Group != nil {
		return parent.Group
	}
	if parent.Type != model.ComponentTypeCollection {
		return nil
	}
	return &model.Group{
		Identifier: parent.URI(),
		Title:      parent.Title,
		Category:   parent.Category,
		Dates:      parent.Dates,
		Creators:   parent.Creators,
	}
}
