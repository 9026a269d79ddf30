package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/siherrmann/archivist/core/mock"
	"github.com/siherrmann/archivist/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func component(id string, t model.ComponentType, identifiers ...string) *model.Component {
	c := &model.Component{ID: id, Type: t, Title: id}
	for _, identifier := range identifiers {
		c.ExternalIdentifiers = append(c.ExternalIdentifiers, model.ExternalIdentifier{Source: "archivesspace", Identifier: identifier})
	}
	return c
}

func TestResolve(t *testing.T) {
	store := mock.NewStore()
	store.Put(
		component("a1", model.ComponentTypeAgent, "/agents/people/1"),
		component("c1", model.ComponentTypeCollection, "/resources/1", "/resources/legacy-1"),
		component("dup1", model.ComponentTypeTerm, "/subjects/9"),
		component("dup2", model.ComponentTypeTerm, "/subjects/9"),
		component("t5", model.ComponentTypeTerm, "5"),
		component("o5", model.ComponentTypeObject, "5"),
	)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	t.Run("Single match", func(t *testing.T) {
		c, err := resolver.Resolve(ctx, "archivesspace", "/agents/people/1")
		require.NoError(t, err, "Expected Resolve to not return an error")
		assert.Equal(t, "a1", c.ID)
	})

	t.Run("Any external identifier resolves", func(t *testing.T) {
		c, err := resolver.Resolve(ctx, "archivesspace", "/resources/legacy-1")
		require.NoError(t, err)
		assert.Equal(t, "c1", c.ID)
	})

	t.Run("No match is not found", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "cartographer", "/agents/people/1")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Shared identifier is ambiguous", func(t *testing.T) {
		c, err := resolver.Resolve(ctx, "archivesspace", "/subjects/9")
		assert.ErrorIs(t, err, model.ErrAmbiguousMatch, "Expected ambiguous match instead of picking one")
		assert.Nil(t, c)
	})

	t.Run("Type scope removes ambiguity", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "archivesspace", "5")
		assert.ErrorIs(t, err, model.ErrAmbiguousMatch)

		c, err := resolver.Resolve(ctx, "archivesspace", "5", model.ComponentTypeObject)
		require.NoError(t, err)
		assert.Equal(t, "o5", c.ID)
	})

	t.Run("Store errors are wrapped", func(t *testing.T) {
		failing := mock.NewStore()
		storeErr := errors.New("connection refused")
		failing.Fail("SelectComponentsBySourceIdentifier", storeErr)

		_, err := NewResolver(failing, nil).Resolve(ctx, "archivesspace", "1")
		assert.ErrorIs(t, err, storeErr)
		assert.NotErrorIs(t, err, model.ErrNotFound)
	})
}

func TestResolveCitation(t *testing.T) {
	store := mock.NewStore()
	store.Put(
		component("a1", model.ComponentTypeAgent, "1"),
		component("dup1", model.ComponentTypeAgent, "9"),
		component("dup2", model.ComponentTypeAgent, "9"),
	)
	resolver := NewResolver(store, nil)
	ctx := context.Background()

	citation := func(identifiers ...string) model.Citation {
		c := model.Citation{}
		for _, identifier := range identifiers {
			c.ExternalIdentifiers = append(c.ExternalIdentifiers, model.ExternalIdentifier{Source: "archivesspace", Identifier: identifier})
		}
		return c
	}

	t.Run("Falls through unknown identifiers", func(t *testing.T) {
		c, err := resolver.ResolveCitation(ctx, citation("404", "1"))
		require.NoError(t, err)
		assert.Equal(t, "a1", c.ID)
	})

	t.Run("Ambiguous identifier stops the lookup", func(t *testing.T) {
		_, err := resolver.ResolveCitation(ctx, citation("9", "1"))
		assert.ErrorIs(t, err, model.ErrAmbiguousMatch)
	})

	t.Run("Citation without identifiers is not found", func(t *testing.T) {
		_, err := resolver.ResolveCitation(ctx, model.Citation{Title: "Unknown"})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestResolveID(t *testing.T) {
	store := mock.NewStore()
	store.Put(component("a1", model.ComponentTypeAgent, "1"))
	resolver := NewResolver(store, nil)

	c, err := resolver.ResolveID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.ComponentTypeAgent, c.Type)

	_, err = resolver.ResolveID(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
