package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*helper.Database, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &helper.Database{Name: "mock", Logger: slog.Default(), Instance: db}, mock
}

func TestComponentsMockErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Select without rows maps to not found", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		mock.ExpectQuery(`SELECT * FROM select_component($1)`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"output_id", "output_data", "output_created_at", "output_updated_at"}))

		_, err := h.SelectComponent(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Upsert wraps driver errors", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		mock.ExpectQuery(`SELECT * FROM upsert_component($1, $2, $3, $4, $5, $6, $7, $8)`).
			WillReturnError(fmt.Errorf("connection reset"))

		err := h.UpsertComponent(ctx, newTestComponent("c1", model.ComponentTypeCollection, "Papers", "c1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scan: connection reset")
	})

	t.Run("Stored payload is decoded", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		now := time.Now()
		mock.ExpectQuery(`SELECT * FROM select_component($1)`).
			WithArgs("t1").
			WillReturnRows(sqlmock.NewRows([]string{"output_id", "output_data", "output_created_at", "output_updated_at"}).
				AddRow("t1", []byte(`{"id":"t1","type":"term","title":"Photographs","external_identifiers":[{"source":"archivesspace","identifier":"1"}]}`), now, now))

		component, err := h.SelectComponent(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, model.ComponentTypeTerm, component.Type)
		assert.Equal(t, "Photographs", component.Title)
		assert.Equal(t, now, component.CreatedAt)
	})

	t.Run("Invalid payload returns an error", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		now := time.Now()
		mock.ExpectQuery(`SELECT * FROM select_component($1)`).
			WillReturnRows(sqlmock.NewRows([]string{"output_id", "output_data", "output_created_at", "output_updated_at"}).
				AddRow("t1", []byte(`{`), now, now))

		_, err := h.SelectComponent(ctx, "t1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Count hits wraps driver errors", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		mock.ExpectQuery(`SELECT * FROM count_hits($1, $2)`).
			WithArgs("letters", "c1").
			WillReturnError(sql.ErrConnDone)

		_, err := h.CountHits(ctx, "letters", "c1")
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	t.Run("Delete of missing component maps to not found", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		mock.ExpectQuery(`SELECT delete_component($1)`).
			WithArgs("c1").
			WillReturnRows(sqlmock.NewRows([]string{"delete_component"}).AddRow(0))

		err := h.DeleteComponent(ctx, "c1")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestSearchMock(t *testing.T) {
	ctx := context.Background()
	query := model.QueryConfig{Query: "letters", Subtype: "person", StartDate: "1920", Limit: 10, Sort: model.SortTitle}

	t.Run("Facet rows are assembled", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		mock.ExpectQuery(`SELECT * FROM select_facets($1, $2, $3, $4, $5, $6, $7)`).
			WithArgs(sqlmock.AnyArg(), "letters", false, "person", "1920", "", model.FacetBucketSize).
			WillReturnRows(sqlmock.NewRows([]string{"output_facet", "output_key", "output_count"}).
				AddRow("creator", "Smith, Jane", 2).
				AddRow("format", "documents", 3).
				AddRow("min_date", "1920", 3).
				AddRow("max_date", "1931", 3).
				AddRow("online", "true", 1))

		facets, err := h.SelectFacets(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, []model.FacetBucket{{Key: "Smith, Jane", DocCount: 2}}, facets.Creator)
		assert.Empty(t, facets.Subject)
		assert.Equal(t, 1920, facets.MinDate.Value)
		assert.Equal(t, 1931, facets.MaxDate.Value)
		assert.Equal(t, 1, facets.Online.DocCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown facet returns an error", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		mock.ExpectQuery(`SELECT * FROM select_facets($1, $2, $3, $4, $5, $6, $7)`).
			WillReturnRows(sqlmock.NewRows([]string{"output_facet", "output_key", "output_count"}).
				AddRow("language", "en", 1))

		_, err := h.SelectFacets(ctx, query)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown facet")
	})

	t.Run("Group rows are decoded", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ComponentsDBHandler{db: database}

		mock.ExpectQuery(`SELECT * FROM select_groups($1, $2, $3, $4, $5, $6, $7, $8, $9)`).
			WithArgs(sqlmock.AnyArg(), "letters", false, "person", "1920", "", model.SortTitle, 10, 0).
			WillReturnRows(sqlmock.NewRows([]string{"output_group", "output_hit_count", "output_online_hit_count"}).
				AddRow([]byte(`{"identifier":"/collections/c1","title":"Family Papers","creators":[{"title":"Smith, Jane","external_identifiers":[]}]}`), 4, 1))

		groups, err := h.SelectGroups(ctx, query)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "/collections/c1", groups[0].URI)
		assert.Equal(t, []string{"Smith, Jane"}, groups[0].Creators)
		assert.Equal(t, 4, groups[0].HitCount)
		assert.Equal(t, 1, groups[0].OnlineHitCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReferencesMockErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Select matching wraps query errors", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ReferencesDBHandler{db: database}

		mock.ExpectQuery(`SELECT * FROM select_references_matching($1, $2, $3)`).
			WillReturnError(fmt.Errorf("relation does not exist"))

		_, err := h.SelectReferencesMatching(ctx, "c1", model.RelationAgent, []string{"archivesspace_1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query: relation does not exist")
	})

	t.Run("Stale sweep returns deleted count", func(t *testing.T) {
		database, mock := setupMockDB(t)
		h := &ReferencesDBHandler{db: database}

		mock.ExpectQuery(`SELECT delete_stale_references()`).
			WillReturnRows(sqlmock.NewRows([]string{"delete_stale_references"}).AddRow(4))

		deleted, err := h.DeleteStaleReferences(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIndexMockErrors(t *testing.T) {
	database, mock := setupMockDB(t)
	h, err := NewIndexDBHandler(database)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT to_regclass('components') IS NOT NULL, to_regclass('component_references') IS NOT NULL;`).
		WillReturnError(sql.ErrConnDone)

	err = h.CheckIndex(context.Background())
	assert.ErrorIs(t, err, model.ErrIndexUnavailable, "Expected unreachable database to report index unavailable")
}
