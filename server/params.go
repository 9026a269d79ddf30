package server

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
	"github.com/siherrmann/archivist/model"
)

// listParams are the query parameters of list, search, facet and children endpoints.
type listParams struct {
	Limit     int      `validate:"min=0"`
	Offset    int      `validate:"min=0"`
	Query     string   `validate:"max=512"`
	Types     []string `validate:"dive,oneof=agent collection object term"`
	Online    bool
	AgentType string `validate:"omitempty,oneof=person organization family software"`
	TermType  string `validate:"omitempty,max=64"`
	StartDate string `validate:"omitempty,partialdate"`
	EndDate   string `validate:"omitempty,partialdate"`
	Sort      string `validate:"omitempty,oneof=title -title"`
}

var partialDatePattern = regexp.MustCompile(`^[0-9]{4}(-[0-9]{2}(-[0-9]{2})?)?$`)

// partialDate accepts a year, a year and month, or a full ISO date.
func partialDate(fl validator.FieldLevel) bool {
	return partialDatePattern.MatchString(fl.Field().String())
}

type suggestParams struct {
	Prefix string `validate:"required,max=256"`
	Limit  int    `validate:"min=0"`
}

type idParams struct {
	ID string `validate:"required,max=255"`
}

func (s *Server) parseList(r *http.Request) (*listParams, error) {
	q := r.URL.Query()
	p := &listParams{
		Query:     strings.TrimSpace(q.Get("query")),
		AgentType: strings.ToLower(strings.TrimSpace(q.Get("agent_type"))),
		TermType:  strings.ToLower(strings.TrimSpace(q.Get("term_type"))),
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		Sort:      strings.TrimSpace(q.Get("sort")),
	}
	if len(p.AgentType) > 0 && len(p.TermType) > 0 {
		return nil, badRequest("agent_type", fmt.Errorf("cannot be combined with term_type"))
	}

	var err error
	if p.Limit, err = intParam(q.Get("limit"), model.DefaultLimit); err != nil {
		return nil, badRequest("limit", err)
	}
	if p.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		return nil, badRequest("offset", err)
	}

	for _, raw := range q["type"] {
		for _, value := range strings.Split(raw, ",") {
			if len(strings.TrimSpace(value)) == 0 {
				continue
			}
			t, _, err := model.ParseComponentType(value)
			if err != nil {
				return nil, badRequest("type", err)
			}
			p.Types = append(p.Types, string(t))
		}
	}

	if raw := q.Get("online"); len(raw) > 0 {
		online, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, badRequest("online", err)
		}
		p.Online = online
	}

	if err := s.validate.Struct(p); err != nil {
		return nil, badRequest("params", err)
	}
	return p, nil
}

func (s *Server) parseSuggest(r *http.Request) (*suggestParams, error) {
	q := r.URL.Query()
	p := &suggestParams{Prefix: strings.TrimSpace(q.Get("title_suggest"))}

	var err error
	if p.Limit, err = intParam(q.Get("limit"), model.DefaultLimit); err != nil {
		return nil, badRequest("limit", err)
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, badRequest("title_suggest", err)
	}
	return p, nil
}

func (s *Server) parseID(r *http.Request) (string, error) {
	p := &idParams{ID: chi.URLParam(r, "id")}
	if err := s.validate.Struct(p); err != nil {
		return "", badRequest("id", err)
	}
	return p.ID, nil
}

// queryConfig turns list parameters into a normalized query configuration.
func (p *listParams) queryConfig(types []model.ComponentType, maxLimit int) model.QueryConfig {
	config := model.DefaultQueryConfig()
	config.Limit = p.Limit
	config.Offset = p.Offset
	config.Query = p.Query
	config.Types = types
	config.Online = p.Online
	config.StartDate = p.StartDate
	config.EndDate = p.EndDate
	if len(p.Sort) > 0 {
		config.Sort = p.Sort
	}
	config.Subtype = p.AgentType
	if len(p.TermType) > 0 {
		config.Subtype = p.TermType
	}
	if len(config.Types) == 0 {
		for _, t := range p.Types {
			config.Types = append(config.Types, model.ComponentType(t))
		}
	}
	config.Normalize(maxLimit)
	return config
}

func intParam(raw string, fallback int) (int, error) {
	if len(raw) == 0 {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func badRequest(param string, err error) error {
	return fmt.Errorf("%w: invalid %s: %v", ErrBadRequest, param, err)
}
