package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
	loadSql "github.com/siherrmann/archivist/sql"
)

// ReferencesDBHandlerFunctions defines the interface for References database operations.
type ReferencesDBHandlerFunctions interface {
	InsertReference(ctx context.Context, reference *model.Reference) error
	UpdateReference(ctx context.Context, reference *model.Reference) error
	SelectReferencesMatching(ctx context.Context, ownerID string, relation model.RelationTag, sourceIdentifiers []string) ([]*model.Reference, error)
	SelectReferences(ctx context.Context, ownerID string, relation model.RelationTag, limit int, offset int) ([]*model.Reference, error)
	CountReferences(ctx context.Context, ownerID string, relation model.RelationTag) (int, error)
	DeleteReference(ctx context.Context, ownerID string, id uuid.UUID) error
	DeleteReferencesByOwner(ctx context.Context, ownerID string) (int, error)
	DeleteStaleReferences(ctx context.Context) (int, error)
}

// ReferencesDBHandler handles reference-related database operations
type ReferencesDBHandler struct {
	db *helper.Database
}

// NewReferencesDBHandler creates a new references database handler.
// It loads the reference SQL functions and creates the partitioned table if needed.
// If force is true, it will reload the SQL functions even if they already exist.
func NewReferencesDBHandler(db *helper.Database, force bool) (*ReferencesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	referencesDbHandler := &ReferencesDBHandler{
		db: db,
	}

	err := loadSql.LoadReferencesSql(referencesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load references sql", err)
	}

	err = referencesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ReferencesDBHandler")

	return referencesDbHandler, nil
}

// CreateTable creates the 'component_references' table with its hash partitions
// on owner_id if it does not exist.
func (h *ReferencesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_references();`)
	if err != nil {
		log.Panicf("error initializing references table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table component_references")

	return nil
}

// InsertReference inserts a new reference into its owner's partition.
// A nil id is replaced with a generated one.
func (h *ReferencesDBHandler) InsertReference(ctx context.Context, reference *model.Reference) error {
	if reference.ID == uuid.Nil {
		reference.ID = uuid.New()
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_reference($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		reference.ID,
		reference.OwnerID,
		string(reference.Relation),
		reference.TargetID,
		reference.URI,
		string(reference.Type),
		reference.Title,
		reference.Position,
		reference.ExternalIdentifiers,
		pq.Array(reference.SourceIdentifiers),
	)

	err := scanReference(row, reference)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateReference refreshes the denormalized target fields of a stored reference.
func (h *ReferencesDBHandler) UpdateReference(ctx context.Context, reference *model.Reference) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM update_reference($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reference.OwnerID,
		reference.ID,
		reference.TargetID,
		reference.URI,
		string(reference.Type),
		reference.Title,
		reference.Position,
		reference.ExternalIdentifiers,
		pq.Array(reference.SourceIdentifiers),
	)

	err := scanReference(row, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return helper.NewError("update reference "+reference.ID.String(), model.ErrNotFound)
	}
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectReferencesMatching retrieves the owner's references with the given relation
// whose join keys overlap sourceIdentifiers, oldest first.
func (h *ReferencesDBHandler) SelectReferencesMatching(ctx context.Context, ownerID string, relation model.RelationTag, sourceIdentifiers []string) ([]*model.Reference, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_references_matching($1, $2, $3)`,
		ownerID,
		string(relation),
		pq.Array(sourceIdentifiers),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return scanReferences(rows)
}

// SelectReferences retrieves a page of the owner's references ordered by position,
// nulls last. An empty relation selects all relations.
func (h *ReferencesDBHandler) SelectReferences(ctx context.Context, ownerID string, relation model.RelationTag, limit int, offset int) ([]*model.Reference, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_references($1, $2, $3, $4)`,
		ownerID,
		string(relation),
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return scanReferences(rows)
}

// CountReferences counts the owner's references with the given relation.
func (h *ReferencesDBHandler) CountReferences(ctx context.Context, ownerID string, relation model.RelationTag) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT count_references($1, $2)`,
		ownerID,
		string(relation),
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// DeleteReference deletes a single reference of an owner
func (h *ReferencesDBHandler) DeleteReference(ctx context.Context, ownerID string, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_reference($1, $2)`,
		ownerID,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteReferencesByOwner deletes every reference of an owner and returns how many were removed.
func (h *ReferencesDBHandler) DeleteReferencesByOwner(ctx context.Context, ownerID string) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_references_by_owner($1)`,
		ownerID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}
	return deleted, nil
}

// DeleteStaleReferences removes references whose owner is gone or whose target
// is gone or changed type, and returns how many were removed.
func (h *ReferencesDBHandler) DeleteStaleReferences(ctx context.Context) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_stale_references()`,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}

	h.db.Logger.Info("Deleted stale references", "count", deleted)

	return deleted, nil
}

func scanReference(row rowScanner, reference *model.Reference) error {
	var relation, componentType string
	err := row.Scan(
		&reference.ID,
		&reference.OwnerID,
		&relation,
		&reference.TargetID,
		&reference.URI,
		&componentType,
		&reference.Title,
		&reference.Position,
		&reference.ExternalIdentifiers,
		pq.Array(&reference.SourceIdentifiers),
		&reference.CreatedAt,
		&reference.UpdatedAt,
	)
	if err != nil {
		return err
	}

	reference.Relation = model.RelationTag(relation)
	reference.Type = model.ComponentType(componentType)
	return nil
}

func scanReferences(rows *sql.Rows) ([]*model.Reference, error) {
	defer rows.Close()

	var references []*model.Reference
	for rows.Next() {
		reference := &model.Reference{}
		err := scanReference(rows, reference)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		references = append(references, reference)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return references, nil
}
