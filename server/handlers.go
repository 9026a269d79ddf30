package server

import (
	"fmt"
	"net/http"

	"github.com/siherrmann/archivist/model"
)

// detailResponse is a component with its materialized references grouped by relation.
type detailResponse struct {
	*model.Component
	URI        string                                    `json:"uri"`
	References map[model.RelationTag][]*model.Reference `json:"references"`
}

type healthResponse struct {
	Status string `json:"status"`
	Index  string `json:"index"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CheckIndex(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Index: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Index: "available"})
}

// list serves the listing of one component type.
func (s *Server) list(componentType model.ComponentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := s.parseList(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var types []model.ComponentType
		if len(componentType) > 0 {
			types = []model.ComponentType{componentType}
		}

		page, err := s.service.List(r.Context(), params.queryConfig(types, s.config.MaxLimit))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		page.SetLinks(r.URL)
		writeJSON(w, http.StatusOK, page)
	}
}

// search serves matches across all types collapsed on their top-level group.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseList(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.service.Search(r.Context(), params.queryConfig(nil, s.config.MaxLimit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page.SetLinks(r.URL)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) facets(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseList(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	facets, err := s.service.Facets(r.Context(), params.queryConfig(nil, s.config.MaxLimit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}

func (s *Server) detail(componentType model.ComponentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.parseID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		component, references, err := s.service.Component(r.Context(), componentType, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		grouped := map[model.RelationTag][]*model.Reference{}
		for _, reference := range references {
			grouped[reference.Relation] = append(grouped[reference.Relation], reference)
		}
		writeJSON(w, http.StatusOK, detailResponse{
			Component:  component,
			URI:        component.URI(),
			References: grouped,
		})
	}
}

func (s *Server) ancestors(componentType model.ComponentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.parseID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.service.Exists(r.Context(), componentType, id); err != nil {
			s.writeError(w, r, err)
			return
		}

		chain, err := s.service.Ancestors(r.Context(), id, r.URL.Query().Get("query"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chain)
	}
}

func (s *Server) children(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params, err := s.parseList(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.service.Exists(r.Context(), model.ComponentTypeCollection, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.service.Children(r.Context(), id, params.Limit, params.Offset, params.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page.SetLinks(r.URL)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseSuggest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit := params.Limit
	if limit <= 0 || limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	suggestions, err := s.service.Suggest(r.Context(), params.Prefix, limit)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("suggest %q: %w", params.Prefix, err))
		return
	}
	if suggestions == nil {
		suggestions = []*model.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}
