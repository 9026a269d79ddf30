package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siherrmann/archivist/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	components  map[string]*model.Component
	references  map[string][]*model.Reference
	chain       model.AncestorChain
	children    *model.Page[*model.ReferenceNode]
	suggestions []*model.Suggestion
	groups      []*model.GroupHit
	facets      *model.Facets
	indexErr    error
	lastQuery   model.QueryConfig
	lastPrefix  string
	lastLimit   int
	detailCalls int
}

func newFakeService() *fakeService {
	order := 1
	return &fakeService{
		components: map[string]*model.Component{
			"coll-1": {ID: "coll-1", Type: model.ComponentTypeCollection, Title: "Family papers"},
			"obj-1":  {ID: "obj-1", Type: model.ComponentTypeObject, Title: "Letter"},
			"amb":    nil,
		},
		references: map[string][]*model.Reference{
			"coll-1": {
				{OwnerID: "coll-1", Relation: model.RelationChild, TargetID: "obj-1", Title: "Letter", Position: &order},
				{OwnerID: "coll-1", Relation: model.RelationCreator, TargetID: "agent-1", Title: "Jane Doe"},
			},
		},
		chain: model.AncestorChain{
			{Identifier: "coll-1", URI: "/collections/coll-1", Title: "Family papers", Type: model.ComponentTypeCollection},
		},
		children: &model.Page[*model.ReferenceNode]{Count: 0, Limit: 10},
		groups: []*model.GroupHit{
			model.NewGroupHit(model.Group{Identifier: "/collections/coll-1", Title: "Family papers"}, model.HitCount{Total: 2, Online: 1}),
		},
		facets: model.NewFacets(),
	}
}

func (f *fakeService) Component(ctx context.Context, componentType model.ComponentType, id string) (*model.Component, []*model.Reference, error) {
	f.detailCalls++
	if err := f.Exists(ctx, componentType, id); err != nil {
		return nil, nil, err
	}
	return f.components[id], f.references[id], nil
}

func (f *fakeService) Exists(ctx context.Context, componentType model.ComponentType, id string) error {
	component, ok := f.components[id]
	if !ok {
		return fmt.Errorf("select %s: %w", id, model.ErrNotFound)
	}
	if component == nil {
		return model.ErrAmbiguousMatch
	}
	if component.Type != componentType {
		return model.ErrNotFound
	}
	return nil
}

func (f *fakeService) List(ctx context.Context, query model.QueryConfig) (*model.Page[*model.Component], error) {
	f.lastQuery = query
	page := &model.Page[*model.Component]{Limit: query.Limit, Offset: query.Offset}
	for _, c := range f.components {
		if c != nil && (len(query.Types) == 0 || c.Type == query.Types[0]) {
			page.Results = append(page.Results, c)
		}
	}
	page.Count = len(page.Results)
	return page, nil
}

func (f *fakeService) Search(ctx context.Context, query model.QueryConfig) (*model.Page[*model.GroupHit], error) {
	f.lastQuery = query
	return &model.Page[*model.GroupHit]{Count: 25, Limit: query.Limit, Offset: query.Offset, Results: f.groups}, nil
}

func (f *fakeService) Facets(ctx context.Context, query model.QueryConfig) (*model.Facets, error) {
	f.lastQuery = query
	return f.facets, nil
}

func (f *fakeService) Ancestors(ctx context.Context, id string, query string) (model.AncestorChain, error) {
	if id == "coll-1" {
		return model.AncestorChain{}, nil
	}
	return f.chain, nil
}

func (f *fakeService) Children(ctx context.Context, id string, limit int, offset int, query string) (*model.Page[*model.ReferenceNode], error) {
	f.lastQuery = model.QueryConfig{Limit: limit, Offset: offset, Query: query}
	return f.children, nil
}

func (f *fakeService) Suggest(ctx context.Context, prefix string, limit int) ([]*model.Suggestion, error) {
	f.lastPrefix = prefix
	f.lastLimit = limit
	return f.suggestions, nil
}

func (f *fakeService) CheckIndex(ctx context.Context) error {
	return f.indexErr
}

func newTestServer(t *testing.T, service Service) *httptest.Server {
	s := New(service, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string, body interface{}) int {
	res, err := http.Get(ts.URL + path)
	require.NoError(t, err, "Expected GET %s to not return an error", path)
	defer res.Body.Close()

	if body != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(body), "Expected a JSON body for %s", path)
	}
	return res.StatusCode
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Bad request", badRequest("limit", fmt.Errorf("nope")), http.StatusBadRequest},
		{"Not found", fmt.Errorf("wrapped: %w", model.ErrNotFound), http.StatusNotFound},
		{"Ambiguous", model.ErrAmbiguousMatch, http.StatusNotFound},
		{"Index unavailable", model.ErrIndexUnavailable, http.StatusServiceUnavailable},
		{"Other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestDetail(t *testing.T) {
	ts := newTestServer(t, newFakeService())

	t.Run("Detail groups references by relation", func(t *testing.T) {
		var body map[string]interface{}
		status := get(t, ts, "/collections/coll-1", &body)
		require.Equal(t, http.StatusOK, status)

		assert.Equal(t, "coll-1", body["id"])
		assert.Equal(t, "/collections/coll-1", body["uri"])
		references, ok := body["references"].(map[string]interface{})
		require.True(t, ok, "Expected references to be an object")
		assert.Len(t, references["child"], 1)
		assert.Len(t, references["creator"], 1)
	})

	t.Run("Type mismatch is not found", func(t *testing.T) {
		var body errorResponse
		status := get(t, ts, "/objects/coll-1", &body)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "no object matched the lookup", body.Error)
	})

	t.Run("Ambiguous lookup is not found", func(t *testing.T) {
		var body errorResponse
		status := get(t, ts, "/agents/amb", &body)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "multiple objects matched the lookup", body.Error)
	})
}

func TestList(t *testing.T) {
	service := newFakeService()
	ts := newTestServer(t, service)

	t.Run("List is scoped to the route type", func(t *testing.T) {
		var page model.Page[*model.Component]
		status := get(t, ts, "/objects?limit=5&offset=2", &page)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []model.ComponentType{model.ComponentTypeObject}, service.lastQuery.Types)
		assert.Equal(t, 5, service.lastQuery.Limit)
		assert.Equal(t, 2, service.lastQuery.Offset)
	})

	t.Run("Limit is capped", func(t *testing.T) {
		status := get(t, ts, "/agents?limit=1000&query=letters", &model.Page[*model.Component]{})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, model.MaxLimit, service.lastQuery.Limit)
		assert.Equal(t, "letters", service.lastQuery.Query)
	})

	t.Run("Filters and sort are passed through", func(t *testing.T) {
		status := get(t, ts, "/agents?agent_type=Person&start_date=1920&end_date=1950-06&sort=-title", &model.Page[*model.Component]{})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "person", service.lastQuery.Subtype)
		assert.Equal(t, "1920", service.lastQuery.StartDate)
		assert.Equal(t, "1950-06", service.lastQuery.EndDate)
		assert.Equal(t, model.SortTitleDesc, service.lastQuery.Sort)

		status = get(t, ts, "/terms?term_type=geographic", &model.Page[*model.Component]{})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "geographic", service.lastQuery.Subtype)
	})

	t.Run("Sort defaults to title", func(t *testing.T) {
		status := get(t, ts, "/objects", &model.Page[*model.Component]{})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, model.SortTitle, service.lastQuery.Sort)
	})

	t.Run("Page links keep the query", func(t *testing.T) {
		var page model.Page[*model.Component]
		status := get(t, ts, "/objects?limit=1&offset=1&query=letter", &page)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, page.Previous, "Expected a previous link past the first page")
		assert.Equal(t, "/objects?limit=1&query=letter", *page.Previous)
		assert.Nil(t, page.Next, "Expected no next link on the last page")
	})

	t.Run("Malformed parameters are bad requests", func(t *testing.T) {
		paths := []string{
			"/agents?limit=ten",
			"/agents?offset=-1",
			"/search?type=widget",
			"/search?online=maybe",
			"/agents?agent_type=robot",
			"/agents?start_date=192",
			"/search?end_date=1950/06",
			"/search?sort=created",
			"/facets?agent_type=person&term_type=topical",
		}
		for _, path := range paths {
			status := get(t, ts, path, &errorResponse{})
			assert.Equal(t, http.StatusBadRequest, status, "Expected %s to be a bad request", path)
		}
	})
}

func TestSearchAndFacets(t *testing.T) {
	service := newFakeService()
	ts := newTestServer(t, service)

	t.Run("Search returns grouped hits", func(t *testing.T) {
		var page model.Page[*model.GroupHit]
		status := get(t, ts, "/search?query=letters&limit=10", &page)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "/collections/coll-1", page.Results[0].URI)
		assert.Equal(t, 2, page.Results[0].HitCount)
		assert.Equal(t, 1, page.Results[0].OnlineHitCount)
		require.NotNil(t, page.Next)
		assert.Equal(t, "/search?limit=10&offset=10&query=letters", *page.Next)
	})

	t.Run("Search accepts type filters", func(t *testing.T) {
		status := get(t, ts, "/search?type=collections,agent&online=true&sort=-title", &model.Page[*model.GroupHit]{})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []model.ComponentType{model.ComponentTypeCollection, model.ComponentTypeAgent}, service.lastQuery.Types)
		assert.True(t, service.lastQuery.Online)
		assert.Equal(t, model.SortTitleDesc, service.lastQuery.Sort)
	})

	t.Run("Search limit is capped", func(t *testing.T) {
		status := get(t, ts, "/search?limit=1000", &model.Page[*model.GroupHit]{})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, model.MaxLimit, service.lastQuery.Limit)
	})

	t.Run("Facets render every bucket list", func(t *testing.T) {
		service.facets = model.NewFacets()
		require.NoError(t, service.facets.Add(model.FacetCreator, "Jane Doe", 2))
		require.NoError(t, service.facets.Add(model.FacetMinDate, "1920", 2))

		var body map[string]interface{}
		status := get(t, ts, "/facets?query=letters&start_date=1900", &body)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "letters", service.lastQuery.Query)
		assert.Equal(t, "1900", service.lastQuery.StartDate)

		assert.Len(t, body["creator"], 1)
		assert.Empty(t, body["subject"])
		assert.Equal(t, map[string]interface{}{"value": float64(1920)}, body["min_date"])
		assert.NotContains(t, body, "max_date")
		assert.Equal(t, map[string]interface{}{"doc_count": float64(0)}, body["online"])
	})
}

func TestAncestorsAndChildren(t *testing.T) {
	service := newFakeService()
	ts := newTestServer(t, service)

	t.Run("Ancestors of an object", func(t *testing.T) {
		var nested model.AncestorNode
		status := get(t, ts, "/objects/obj-1/ancestors", &nested)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "coll-1", nested.Identifier)
		assert.Nil(t, nested.Child, "Expected a single level chain")
	})

	t.Run("Empty chain renders an empty object", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/collections/coll-1/ancestors")
		require.NoError(t, err)
		defer res.Body.Close()
		raw, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.JSONEq(t, "{}", string(raw))
	})

	t.Run("Ancestors of a missing component", func(t *testing.T) {
		status := get(t, ts, "/collections/missing/ancestors", &errorResponse{})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("Children pass paging and query through", func(t *testing.T) {
		status := get(t, ts, "/collections/coll-1/children?limit=3&offset=6&query=letter", &model.Page[*model.ReferenceNode]{})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 3, service.lastQuery.Limit)
		assert.Equal(t, 6, service.lastQuery.Offset)
		assert.Equal(t, "letter", service.lastQuery.Query)
	})

	t.Run("Children of an object are not found", func(t *testing.T) {
		status := get(t, ts, "/collections/obj-1/children", &errorResponse{})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("Type checks do not load the detail", func(t *testing.T) {
		service.detailCalls = 0
		get(t, ts, "/objects/obj-1/ancestors", nil)
		get(t, ts, "/collections/coll-1/children", nil)
		get(t, ts, "/collections/obj-1/children", nil)
		assert.Equal(t, 0, service.detailCalls, "Expected ancestors and children to check the type without loading references")
	})
}

func TestSuggest(t *testing.T) {
	service := newFakeService()
	service.suggestions = []*model.Suggestion{{ID: "coll-1", Type: model.ComponentTypeCollection, Title: "Family papers", URI: "/collections/coll-1"}}
	ts := newTestServer(t, service)

	t.Run("Suggest returns completions", func(t *testing.T) {
		var suggestions []model.Suggestion
		status := get(t, ts, "/search/suggest?title_suggest=fam", &suggestions)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, suggestions, 1)
		assert.Equal(t, "fam", service.lastPrefix)
		assert.Equal(t, model.DefaultLimit, service.lastLimit)
	})

	t.Run("Missing prefix is a bad request", func(t *testing.T) {
		status := get(t, ts, "/search/suggest", &errorResponse{})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestIndexUnavailable(t *testing.T) {
	service := newFakeService()
	service.indexErr = fmt.Errorf("check index: %w", model.ErrIndexUnavailable)
	ts := newTestServer(t, service)

	status := get(t, ts, "/collections/coll-1", &errorResponse{})
	assert.Equal(t, http.StatusServiceUnavailable, status, "Expected lookups to fail fast")

	var health healthResponse
	status = get(t, ts, "/health", &health)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", health.Index)
}

func TestListenAndServeShutsDown(t *testing.T) {
	config := DefaultConfig()
	config.Addr = "127.0.0.1:0"
	s := New(newFakeService(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.ListenAndServe(ctx)
	}()
	cancel()

	assert.NoError(t, <-done, "Expected ListenAndServe to return nil after shutdown")
}
