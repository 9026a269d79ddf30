package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
	loadSql "github.com/siherrmann/archivist/sql"
)

// ComponentsDBHandlerFunctions defines the interface for Components database operations.
type ComponentsDBHandlerFunctions interface {
	UpsertComponent(ctx context.Context, component *model.Component) error
	SelectComponent(ctx context.Context, id string) (*model.Component, error)
	SelectComponentType(ctx context.Context, id string) (model.ComponentType, error)
	SelectComponentsBySourceIdentifier(ctx context.Context, sourceIdentifier string, types ...model.ComponentType) ([]*model.Component, error)
	SelectComponentsCiting(ctx context.Context, field model.RelationField, sourceIdentifiers []string) ([]*model.Component, error)
	SelectComponents(ctx context.Context, query model.QueryConfig) ([]*model.Component, error)
	CountComponents(ctx context.Context, query model.QueryConfig) (int, error)
	SelectGroups(ctx context.Context, query model.QueryConfig) ([]*model.GroupHit, error)
	CountGroups(ctx context.Context, query model.QueryConfig) (int, error)
	SelectFacets(ctx context.Context, query model.QueryConfig) (*model.Facets, error)
	SuggestComponents(ctx context.Context, prefix string, limit int) ([]*model.Suggestion, error)
	CountHits(ctx context.Context, query string, identifier string) (model.HitCount, error)
	DeleteComponent(ctx context.Context, id string) error
}

// ComponentsDBHandler handles component-related database operations
type ComponentsDBHandler struct {
	db *helper.Database
}

// NewComponentsDBHandler creates a new components database handler.
// It loads the component SQL functions and creates the table if needed.
// If force is true, it will reload the SQL functions even if they already exist.
func NewComponentsDBHandler(db *helper.Database, force bool) (*ComponentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	componentsDbHandler := &ComponentsDBHandler{
		db: db,
	}

	err := loadSql.Init(componentsDbHandler.db.Instance)
	if err != nil {
		return nil, helper.NewError("init extensions", err)
	}

	err = loadSql.LoadComponentsSql(componentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load components sql", err)
	}

	err = componentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ComponentsDBHandler")

	return componentsDbHandler, nil
}

// CreateTable creates the 'components' table and its indexes if they do not exist.
func (h *ComponentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_components();`)
	if err != nil {
		log.Panicf("error initializing components table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table components")

	return nil
}

// UpsertComponent inserts the component or replaces the stored one with the same id.
// The component must have been prepared.
func (h *ComponentsDBHandler) UpsertComponent(ctx context.Context, component *model.Component) error {
	citations := model.CitationIndex(component.CitedIdentifiers())
	data := model.ComponentData(*component)

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_component($1, $2, $3, $4, $5, $6, $7, $8)`,
		component.ID,
		string(component.Type),
		component.Title,
		component.Online,
		pq.Array(component.SourceIdentifiers()),
		citations,
		data,
		component.SearchText(),
	)

	stored, err := scanComponent(row)
	if err != nil {
		return helper.NewError("scan", err)
	}

	component.CreatedAt = stored.CreatedAt
	component.UpdatedAt = stored.UpdatedAt

	return nil
}

// SelectComponent retrieves a component by id. It returns model.ErrNotFound if there is none.
func (h *ComponentsDBHandler) SelectComponent(ctx context.Context, id string) (*model.Component, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_component($1)`,
		id,
	)

	component, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select component "+id, model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return component, nil
}

// SelectComponentType retrieves only the type of a component. It returns model.ErrNotFound if there is none.
func (h *ComponentsDBHandler) SelectComponentType(ctx context.Context, id string) (model.ComponentType, error) {
	var componentType string
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_component_type($1)`,
		id,
	).Scan(&componentType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", helper.NewError("select component type "+id, model.ErrNotFound)
	}
	if err != nil {
		return "", helper.NewError("scan", err)
	}

	return model.ComponentType(componentType), nil
}

// SelectComponentsBySourceIdentifier retrieves all components holding the join key,
// optionally scoped to the given types.
func (h *ComponentsDBHandler) SelectComponentsBySourceIdentifier(ctx context.Context, sourceIdentifier string, types ...model.ComponentType) ([]*model.Component, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_components_by_source_identifier($1, $2)`,
		sourceIdentifier,
		pq.Array(typeNames),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return scanComponents(rows)
}

// SelectComponentsCiting retrieves all components whose citation field cites any of the join keys.
func (h *ComponentsDBHandler) SelectComponentsCiting(ctx context.Context, field model.RelationField, sourceIdentifiers []string) ([]*model.Component, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_components_citing($1, $2)`,
		string(field),
		pq.Array(sourceIdentifiers),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return scanComponents(rows)
}

// SelectComponents lists components in the query's sort order, filtered by
// type, full-text query, online flag, subtype and date range.
func (h *ComponentsDBHandler) SelectComponents(ctx context.Context, query model.QueryConfig) ([]*model.Component, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_components($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pq.Array(query.TypeNames()),
		query.Query,
		query.Online,
		query.Subtype,
		query.StartDate,
		query.EndDate,
		query.Sort,
		query.Limit,
		query.Offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return scanComponents(rows)
}

// CountComponents counts the components SelectComponents pages over.
func (h *ComponentsDBHandler) CountComponents(ctx context.Context, query model.QueryConfig) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT count_components($1, $2, $3, $4, $5, $6)`,
		pq.Array(query.TypeNames()),
		query.Query,
		query.Online,
		query.Subtype,
		query.StartDate,
		query.EndDate,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// SelectGroups returns the matches of query collapsed on their group, with
// the number of matches and online matches per group.
func (h *ComponentsDBHandler) SelectGroups(ctx context.Context, query model.QueryConfig) ([]*model.GroupHit, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_groups($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pq.Array(query.TypeNames()),
		query.Query,
		query.Online,
		query.Subtype,
		query.StartDate,
		query.EndDate,
		query.Sort,
		query.Limit,
		query.Offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var groups []*model.GroupHit
	for rows.Next() {
		var group model.GroupData
		hits := model.HitCount{}
		err := rows.Scan(
			&group,
			&hits.Total,
			&hits.Online,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		groups = append(groups, model.NewGroupHit(model.Group(group), hits))
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return groups, nil
}

// CountGroups counts the groups SelectGroups pages over.
func (h *ComponentsDBHandler) CountGroups(ctx context.Context, query model.QueryConfig) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT count_groups($1, $2, $3, $4, $5, $6)`,
		pq.Array(query.TypeNames()),
		query.Query,
		query.Online,
		query.Subtype,
		query.StartDate,
		query.EndDate,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// SelectFacets aggregates creators, subjects, formats, the year range and the
// online count over every match of query. Pagination and sort are ignored.
func (h *ComponentsDBHandler) SelectFacets(ctx context.Context, query model.QueryConfig) (*model.Facets, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_facets($1, $2, $3, $4, $5, $6, $7)`,
		pq.Array(query.TypeNames()),
		query.Query,
		query.Online,
		query.Subtype,
		query.StartDate,
		query.EndDate,
		model.FacetBucketSize,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	facets := model.NewFacets()
	for rows.Next() {
		var facet, key string
		var count int
		err := rows.Scan(
			&facet,
			&key,
			&count,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		err = facets.Add(facet, key, count)
		if err != nil {
			return nil, helper.NewError("facet", err)
		}
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return facets, nil
}

// SuggestComponents returns titles containing prefix, prefix matches first.
// Wildcards in prefix match literally.
func (h *ComponentsDBHandler) SuggestComponents(ctx context.Context, prefix string, limit int) ([]*model.Suggestion, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM suggest_components($1, $2)`,
		prefix,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var suggestions []*model.Suggestion
	for rows.Next() {
		s := &model.Suggestion{}
		err := rows.Scan(
			&s.ID,
			&s.Type,
			&s.Title,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		s.URI = model.ComponentURI(s.Type, s.ID)

		suggestions = append(suggestions, s)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return suggestions, nil
}

// CountHits counts the full-text matches of query that are the identifier
// itself or have an ancestor reference to it.
func (h *ComponentsDBHandler) CountHits(ctx context.Context, query string, identifier string) (model.HitCount, error) {
	hits := model.HitCount{}
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM count_hits($1, $2)`,
		query,
		identifier,
	).Scan(
		&hits.Total,
		&hits.Online,
	)
	if err != nil {
		return hits, helper.NewError("scan", err)
	}

	return hits, nil
}

// DeleteComponent deletes a component by id. It returns model.ErrNotFound if there is none.
func (h *ComponentsDBHandler) DeleteComponent(ctx context.Context, id string) error {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_component($1)`,
		id,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if deleted == 0 {
		return helper.NewError("delete component "+id, model.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComponent(row rowScanner) (*model.Component, error) {
	var id string
	var data model.ComponentData
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&id,
		&data,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	component := model.Component(data)
	component.ID = id
	component.CreatedAt = createdAt
	component.UpdatedAt = updatedAt

	return &component, nil
}

func scanComponents(rows *sql.Rows) ([]*model.Component, error) {
	defer rows.Close()

	var components []*model.Component
	for rows.Next() {
		component, err := scanComponent(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		components = append(components, component)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return components, nil
}
