package model

import (
	"strings"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Sort orders of listings and grouped search.
const (
	SortTitle     = "title"
	SortTitleDesc = "-title"
)

// QueryConfig holds the pagination and filter parameters of a read request.
type QueryConfig struct {
	Limit  int             `json:"limit" validate:"min=0"`
	Offset int             `json:"offset" validate:"min=0"`
	Query  string          `json:"query,omitempty" validate:"max=512"`
	Types  []ComponentType `json:"types,omitempty"`
	Online bool            `json:"online,omitempty"`
	// Subtype filters on the agent or term type, e.g. "person" or "geographic".
	Subtype string `json:"subtype,omitempty"`
	// StartDate and EndDate bound the date ranges of a component. They are
	// compared at their own precision, so "1920" matches "1920-05-01".
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Sort      string `json:"sort,omitempty"`
}

// DefaultQueryConfig returns the first page with the default limit, ordered by title.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		Limit:  DefaultLimit,
		Offset: 0,
		Sort:   SortTitle,
	}
}

// Normalize clamps the limit to (0, maxLimit] and the offset to >= 0.
// A maxLimit <= 0 uses MaxLimit. An unknown sort falls back to title.
func (q *QueryConfig) Normalize(maxLimit int) {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Query = strings.TrimSpace(q.Query)
	q.Subtype = strings.ToLower(strings.TrimSpace(q.Subtype))
	q.StartDate = strings.TrimSpace(q.StartDate)
	q.EndDate = strings.TrimSpace(q.EndDate)

	if q.Sort != SortTitleDesc {
		q.Sort = SortTitle
	}
}

// TypeNames returns the type filter as strings for the store.
func (q *QueryConfig) TypeNames() []string {
	names := make([]string, 0, len(q.Types))
	for _, t := range q.Types {
		names = append(names, string(t))
	}
	return names
}
