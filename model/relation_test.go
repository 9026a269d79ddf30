package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationsFor(t *testing.T) {
	t.Run("Agent has only inbound rules", func(t *testing.T) {
		relations, ok := RelationsFor(ComponentTypeAgent)
		assert.True(t, ok, "Expected agent to declare relations")
		assert.Empty(t, relations.Outbound)
		assert.ElementsMatch(t, []RelationRule{
			{Tag: RelationAgent, Field: FieldAgents},
			{Tag: RelationCreator, Field: FieldCreators},
		}, relations.Inbound)
	})

	t.Run("Collection resolves creators outbound", func(t *testing.T) {
		relations, ok := RelationsFor(ComponentTypeCollection)
		assert.True(t, ok)
		assert.Contains(t, relations.Outbound, RelationRule{Tag: RelationCreator, Field: FieldCreators})
		assert.Contains(t, relations.Inbound, RelationRule{Tag: RelationChild, Field: FieldChildren})
	})

	t.Run("Unknown type declares nothing", func(t *testing.T) {
		relations, ok := RelationsFor(ComponentType("folder"))
		assert.False(t, ok, "Expected no relations for unknown type")
		assert.True(t, relations.Empty())
	})

	t.Run("Every rule field has a typed accessor", func(t *testing.T) {
		c := &Component{}
		for _, ct := range ComponentTypes {
			relations, _ := RelationsFor(ct)
			for _, rule := range append(relations.Outbound, relations.Inbound...) {
				assert.Contains(t, RelationFields, rule.Field, "Expected field %s to be known", rule.Field)
				assert.NotPanics(t, func() { c.Citations(rule.Field) })
			}
		}
	})
}

func TestRelationTagTargetTypes(t *testing.T) {
	assert.Equal(t, []ComponentType{ComponentTypeAgent}, RelationCreator.TargetTypes())
	assert.Equal(t, []ComponentType{ComponentTypeCollection, ComponentTypeObject}, RelationChild.TargetTypes())
	assert.Nil(t, RelationTag("sibling").TargetTypes())
}
