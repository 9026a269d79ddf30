package archivist

import (
	"context"
	"log/slog"
	"os"

	"github.com/siherrmann/archivist/core/hierarchy"
	"github.com/siherrmann/archivist/core/identity"
	"github.com/siherrmann/archivist/core/reference"
	"github.com/siherrmann/archivist/core/relation"
	"github.com/siherrmann/archivist/database"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/lock"
	"github.com/siherrmann/archivist/model"
)

// maxDetailReferences caps the references returned with a component detail.
const maxDetailReferences = 1000

// store joins both handlers into the single store the core packages expect.
type store struct {
	*database.ComponentsDBHandler
	*database.ReferencesDBHandler
}

// Archivist provides a unified interface to the write and read paths
type Archivist struct {
	DB         *helper.Database
	Components *database.ComponentsDBHandler
	References *database.ReferencesDBHandler
	Index      *database.IndexDBHandler
	Resolver   *identity.Resolver
	Engine     *relation.Engine
	Chains     *hierarchy.ChainBuilder
	Paginator  *hierarchy.ChildrenPaginator
	// Options
	options *Options
	// Logging
	log *slog.Logger
}

// Options configure an Archivist.
type Options struct {
	Logger   *slog.Logger
	Locker   lock.Locker
	MaxLimit int
	MaxDepth int
	Force    bool
}

// Option modifies Options.
type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithLocker serializes reference materialization per owner, tag and target.
func WithLocker(locker lock.Locker) Option {
	return func(o *Options) { o.Locker = locker }
}

func WithMaxLimit(maxLimit int) Option {
	return func(o *Options) { o.MaxLimit = maxLimit }
}

func WithMaxDepth(maxDepth int) Option {
	return func(o *Options) { o.MaxDepth = maxDepth }
}

// WithForceReload reloads the sql functions even if they already exist.
func WithForceReload() Option {
	return func(o *Options) { o.Force = true }
}

// NewArchivist connects to the database, loads the schema and wires all components.
func NewArchivist(config *helper.DatabaseConfiguration, opts ...Option) (*Archivist, error) {
	options := &Options{
		MaxLimit: model.MaxLimit,
		MaxDepth: hierarchy.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}))
	}
	logger := options.Logger

	db := helper.NewDatabase("archivist", config, logger)

	components, err := database.NewComponentsDBHandler(db, options.Force)
	if err != nil {
		return nil, helper.NewError("create components handler", err)
	}

	references, err := database.NewReferencesDBHandler(db, options.Force)
	if err != nil {
		return nil, helper.NewError("create references handler", err)
	}

	index, err := database.NewIndexDBHandler(db)
	if err != nil {
		return nil, helper.NewError("create index handler", err)
	}

	s := &store{ComponentsDBHandler: components, ReferencesDBHandler: references}
	resolver := identity.NewResolver(s, logger)
	materializer := reference.NewMaterializer(s, options.Locker, logger)

	return &Archivist{
		DB:         db,
		Components: components,
		References: references,
		Index:      index,
		Resolver:   resolver,
		Engine:     relation.NewEngine(resolver, materializer, s, logger),
		Chains:     hierarchy.NewChainBuilder(s, options.MaxDepth, logger),
		Paginator:  hierarchy.NewChildrenPaginator(s, options.MaxLimit, logger),
		options:    options,
		log:        logger,
	}, nil
}

// Close closes the database connection
func (a *Archivist) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// IndexComponent resolves the relations of a component in both directions and saves it.
func (a *Archivist) IndexComponent(ctx context.Context, component *model.Component) (*relation.Resolution, error) {
	return a.Engine.Resolve(ctx, component)
}

// DeleteComponent removes a component and the references it owns.
// References other components hold to it stay until Reconcile runs.
func (a *Archivist) DeleteComponent(ctx context.Context, id string) error {
	deleted, err := a.References.DeleteReferencesByOwner(ctx, id)
	if err != nil {
		return helper.NewError("delete owned references", err)
	}

	err = a.Components.DeleteComponent(ctx, id)
	if err != nil {
		return helper.NewError("delete component", err)
	}

	a.log.Info("Deleted component", slog.String("id", id), slog.Int("references", deleted))
	return nil
}

// Component returns the component of the given type with all references it owns.
// A component of another type is reported as model.ErrNotFound.
func (a *Archivist) Component(ctx context.Context, componentType model.ComponentType, id string) (*model.Component, []*model.Reference, error) {
	component, err := a.Components.SelectComponent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if len(componentType) > 0 && component.Type != componentType {
		return nil, nil, helper.NewError("select "+componentType.Plural(), model.ErrNotFound)
	}

	references, err := a.References.SelectReferences(ctx, id, "", maxDetailReferences, 0)
	if err != nil {
		return nil, nil, helper.NewError("select references", err)
	}
	return component, references, nil
}

// Exists reports model.ErrNotFound unless a component of componentType is stored under id.
// It reads only the stored type.
func (a *Archivist) Exists(ctx context.Context, componentType model.ComponentType, id string) error {
	stored, err := a.Components.SelectComponentType(ctx, id)
	if err != nil {
		return err
	}
	if len(componentType) > 0 && stored != componentType {
		return helper.NewError("select "+componentType.Plural(), model.ErrNotFound)
	}
	return nil
}

// List returns one page of components matching the query configuration.
func (a *Archivist) List(ctx context.Context, query model.QueryConfig) (*model.Page[*model.Component], error) {
	query.Normalize(a.options.MaxLimit)

	count, err := a.Components.CountComponents(ctx, query)
	if err != nil {
		return nil, helper.NewError("count components", err)
	}

	components, err := a.Components.SelectComponents(ctx, query)
	if err != nil {
		return nil, helper.NewError("select components", err)
	}

	return &model.Page[*model.Component]{
		Count:   count,
		Limit:   query.Limit,
		Offset:  query.Offset,
		Results: components,
	}, nil
}

// Search returns one page of matches collapsed on their top-level group.
func (a *Archivist) Search(ctx context.Context, query model.QueryConfig) (*model.Page[*model.GroupHit], error) {
	query.Normalize(a.options.MaxLimit)

	count, err := a.Components.CountGroups(ctx, query)
	if err != nil {
		return nil, helper.NewError("count groups", err)
	}

	groups, err := a.Components.SelectGroups(ctx, query)
	if err != nil {
		return nil, helper.NewError("select groups", err)
	}
	if groups == nil {
		groups = []*model.GroupHit{}
	}

	return &model.Page[*model.GroupHit]{
		Count:   count,
		Limit:   query.Limit,
		Offset:  query.Offset,
		Results: groups,
	}, nil
}

// Facets aggregates the matches of query.
func (a *Archivist) Facets(ctx context.Context, query model.QueryConfig) (*model.Facets, error) {
	query.Normalize(a.options.MaxLimit)

	facets, err := a.Components.SelectFacets(ctx, query)
	if err != nil {
		return nil, helper.NewError("select facets", err)
	}
	return facets, nil
}

// Ancestors builds the ancestor chain of a component.
func (a *Archivist) Ancestors(ctx context.Context, id string, query string) (model.AncestorChain, error) {
	return a.Chains.BuildChain(ctx, id, query)
}

// Children lists one page of the direct children of a collection.
func (a *Archivist) Children(ctx context.Context, id string, limit int, offset int, query string) (*model.Page[*model.ReferenceNode], error) {
	return a.Paginator.ListChildren(ctx, id, limit, offset, query)
}

// Suggest returns title completions for prefix.
func (a *Archivist) Suggest(ctx context.Context, prefix string, limit int) ([]*model.Suggestion, error) {
	return a.Components.SuggestComponents(ctx, prefix, limit)
}

// CheckIndex reports model.ErrIndexUnavailable when the tables cannot serve reads.
func (a *Archivist) CheckIndex(ctx context.Context) error {
	return a.Index.CheckIndex(ctx)
}

// Reconcile deletes references whose owner or target is gone or whose target changed type.
func (a *Archivist) Reconcile(ctx context.Context) (int, error) {
	deleted, err := a.References.DeleteStaleReferences(ctx)
	if err != nil {
		return 0, helper.NewError("reconcile", err)
	}
	a.log.Info("Reconciled references", slog.Int("deleted", deleted))
	return deleted, nil
}
