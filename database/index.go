package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
)

// IndexDBHandler reports whether the backing tables can serve requests.
type IndexDBHandler struct {
	db *helper.Database
}

// NewIndexDBHandler creates a new index database handler.
func NewIndexDBHandler(db *helper.Database) (*IndexDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	return &IndexDBHandler{db: db}, nil
}

// CheckIndex returns model.ErrIndexUnavailable if the database is unreachable
// or one of the archivist tables does not exist.
func (h *IndexDBHandler) CheckIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var components, references bool
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT to_regclass('components') IS NOT NULL, to_regclass('component_references') IS NOT NULL;`,
	).Scan(
		&components,
		&references,
	)
	if err != nil {
		return helper.NewError("check index", fmt.Errorf("%w: %v", model.ErrIndexUnavailable, err))
	}
	if !components || !references {
		return helper.NewError("check index", model.ErrIndexUnavailable)
	}

	return nil
}
