package mock

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
)

// Store is an in-memory component and reference store for tests.
// It mirrors the ordering and matching rules of the database handlers.
type Store struct {
	mu         sync.Mutex
	components map[string]*model.Component
	references map[string][]*model.Reference
	failures   map[string]error

	// OnMatch is called after SelectReferencesMatching has read the store.
	OnMatch func()
}

func NewStore() *Store {
	return &Store{
		components: map[string]*model.Component{},
		references: map[string][]*model.Reference{},
		failures:   map[string]error{},
	}
}

// Fail makes every call of the named method return err.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *Store) failure(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[method]
}

// Put stores prepared components directly, bypassing resolution.
func (s *Store) Put(components ...*model.Component) {
	for _, c := range components {
		if err := c.Prepare(); err != nil {
			panic(err)
		}
		s.UpsertComponent(context.Background(), c)
	}
}

func (s *Store) UpsertComponent(ctx context.Context, component *model.Component) error {
	if err := s.failure("UpsertComponent"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.components[component.ID]; ok {
		component.CreatedAt = existing.CreatedAt
	} else {
		component.CreatedAt = now
	}
	component.UpdatedAt = now

	stored := *component
	s.components[component.ID] = &stored
	return nil
}

func (s *Store) SelectComponent(ctx context.Context, id string) (*model.Component, error) {
	if err := s.failure("SelectComponent"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.components[id]
	if !ok {
		return nil, helper.NewError("select component "+id, model.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (s *Store) SelectComponentsBySourceIdentifier(ctx context.Context, sourceIdentifier string, types ...model.ComponentType) ([]*model.Component, error) {
	if err := s.failure("SelectComponentsBySourceIdentifier"); err != nil {
		return nil, err
	}

	return s.filterComponents(func(c *model.Component) bool {
		if len(types) > 0 && !slices.Contains(types, c.Type) {
			return false
		}
		return slices.Contains(c.SourceIdentifiers(), sourceIdentifier)
	}), nil
}

func (s *Store) SelectComponentsCiting(ctx context.Context, field model.RelationField, sourceIdentifiers []string) ([]*model.Component, error) {
	if err := s.failure("SelectComponentsCiting"); err != nil {
		return nil, err
	}

	return s.filterComponents(func(c *model.Component) bool {
		return overlaps(c.CitedIdentifiers()[field], sourceIdentifiers)
	}), nil
}

// CountHits matches every query word as a case-insensitive substring of the search text.
func (s *Store) CountHits(ctx context.Context, query string, identifier string) (model.HitCount, error) {
	if err := s.failure("CountHits"); err != nil {
		return model.HitCount{}, err
	}

	words := strings.Fields(strings.ToLower(query))
	matches := s.filterComponents(func(c *model.Component) bool {
		text := strings.ToLower(c.SearchText())
		for _, w := range words {
			if !strings.Contains(text, w) {
				return false
			}
		}
		return len(words) > 0
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	hits := model.HitCount{}
	for _, c := range matches {
		if c.ID != identifier && !s.hasAncestorLocked(c.ID, identifier) {
			continue
		}
		hits.Total++
		if c.Online {
			hits.Online++
		}
	}
	return hits, nil
}

func (s *Store) hasAncestorLocked(ownerID string, ancestorID string) bool {
	for _, r := range s.references[ownerID] {
		if r.Relation == model.RelationAncestor && r.TargetID == ancestorID {
			return true
		}
	}
	return false
}

func (s *Store) SelectReferencesMatching(ctx context.Context, ownerID string, relation model.RelationTag, sourceIdentifiers []string) ([]*model.Reference, error) {
	if err := s.failure("SelectReferencesMatching"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var matches []*model.Reference
	for _, r := range s.references[ownerID] {
		if r.Relation == relation && overlaps(r.SourceIdentifiers, sourceIdentifiers) {
			copied := *r
			matches = append(matches, &copied)
		}
	}
	s.mu.Unlock()

	if s.OnMatch != nil {
		s.OnMatch()
	}
	return matches, nil
}

func (s *Store) InsertReference(ctx context.Context, reference *model.Reference) error {
	if err := s.failure("InsertReference"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reference.ID == uuid.Nil {
		reference.ID = uuid.New()
	}
	for _, r := range s.references[reference.OwnerID] {
		if r.ID == reference.ID {
			return fmt.Errorf("duplicate reference id %s", reference.ID)
		}
	}

	now := time.Now()
	reference.CreatedAt = now
	reference.UpdatedAt = now
	stored := *reference
	s.references[reference.OwnerID] = append(s.references[reference.OwnerID], &stored)
	return nil
}

func (s *Store) UpdateReference(ctx context.Context, reference *model.Reference) error {
	if err := s.failure("UpdateReference"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.references[reference.OwnerID] {
		if r.ID == reference.ID {
			reference.CreatedAt = r.CreatedAt
			reference.UpdatedAt = time.Now()
			stored := *reference
			s.references[reference.OwnerID][i] = &stored
			return nil
		}
	}
	return helper.NewError("update reference "+reference.ID.String(), model.ErrNotFound)
}

// SelectReferences orders by relation, position with nulls last, then id.
func (s *Store) SelectReferences(ctx context.Context, ownerID string, relation model.RelationTag, limit int, offset int) ([]*model.Reference, error) {
	if err := s.failure("SelectReferences"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var selected []*model.Reference
	for _, r := range s.references[ownerID] {
		if len(relation) == 0 || r.Relation == relation {
			copied := *r
			selected = append(selected, &copied)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		switch {
		case a.Position != nil && b.Position == nil:
			return true
		case a.Position == nil && b.Position != nil:
			return false
		case a.Position != nil && b.Position != nil && *a.Position != *b.Position:
			return *a.Position < *b.Position
		}
		return a.ID.String() < b.ID.String()
	})

	if offset >= len(selected) {
		return nil, nil
	}
	selected = selected[offset:]
	if limit >= 0 && limit < len(selected) {
		selected = selected[:limit]
	}
	return selected, nil
}

func (s *Store) CountReferences(ctx context.Context, ownerID string, relation model.RelationTag) (int, error) {
	if err := s.failure("CountReferences"); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.references[ownerID] {
		if len(relation) == 0 || r.Relation == relation {
			count++
		}
	}
	return count, nil
}

// References returns the stored references of an owner with the given relation.
func (s *Store) References(ownerID string, relation model.RelationTag) []*model.Reference {
	references, _ := s.SelectReferences(context.Background(), ownerID, relation, -1, 0)
	return references
}

func (s *Store) filterComponents(keep func(*model.Component) bool) []*model.Component {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Component
	for _, c := range s.components {
		if keep(c) {
			copied := *c
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func overlaps(a []string, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}
