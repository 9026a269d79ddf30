package model

// RelationTag labels the kind of edge a Reference represents.
type RelationTag string

const (
	RelationAgent      RelationTag = "agent"
	RelationAncestor   RelationTag = "ancestor"
	RelationChild      RelationTag = "child"
	RelationCreator    RelationTag = "creator"
	RelationTerm       RelationTag = "term"
	RelationObject     RelationTag = "object"
	RelationCollection RelationTag = "collection"
)

// RelationField names a citation list on a component.
type RelationField string

const (
	FieldAgents      RelationField = "agents"
	FieldCreators    RelationField = "creators"
	FieldTerms       RelationField = "terms"
	FieldAncestors   RelationField = "ancestors"
	FieldChildren    RelationField = "children"
	FieldCollections RelationField = "collections"
	FieldObjects     RelationField = "objects"
)

// RelationFields lists every citation field in a fixed order.
var RelationFields = []RelationField{
	FieldAgents,
	FieldCreators,
	FieldTerms,
	FieldAncestors,
	FieldChildren,
	FieldCollections,
	FieldObjects,
}

// RelationRule binds a tag to the citation field it is resolved from.
// For outbound rules the field is on the component itself, for inbound
// rules it is the field on the citing component.
type RelationRule struct {
	Tag   RelationTag
	Field RelationField
}

// RelationSpec holds the outbound and inbound rules of one component type.
type RelationSpec struct {
	Outbound []RelationRule
	Inbound  []RelationRule
}

// Empty reports whether no rules are declared.
func (s RelationSpec) Empty() bool {
	return len(s.Outbound) == 0 && len(s.Inbound) == 0
}

var relationTable = map[ComponentType]RelationSpec{
	ComponentTypeAgent: {
		Inbound: []RelationRule{
			{Tag: RelationAgent, Field: FieldAgents},
			{Tag: RelationCreator, Field: FieldCreators},
		},
	},
	ComponentTypeCollection: {
		Outbound: []RelationRule{
			{Tag: RelationAncestor, Field: FieldAncestors},
			{Tag: RelationChild, Field: FieldChildren},
			{Tag: RelationCreator, Field: FieldCreators},
			{Tag: RelationTerm, Field: FieldTerms},
			{Tag: RelationAgent, Field: FieldAgents},
		},
		Inbound: []RelationRule{
			{Tag: RelationAncestor, Field: FieldAncestors},
			{Tag: RelationChild, Field: FieldChildren},
			{Tag: RelationCollection, Field: FieldCollections},
		},
	},
	ComponentTypeObject: {
		Outbound: []RelationRule{
			{Tag: RelationAncestor, Field: FieldAncestors},
			{Tag: RelationTerm, Field: FieldTerms},
			{Tag: RelationAgent, Field: FieldAgents},
		},
		Inbound: []RelationRule{
			{Tag: RelationChild, Field: FieldChildren},
			{Tag: RelationObject, Field: FieldObjects},
		},
	},
	ComponentTypeTerm: {
		Outbound: []RelationRule{
			{Tag: RelationCollection, Field: FieldCollections},
			{Tag: RelationObject, Field: FieldObjects},
		},
		Inbound: []RelationRule{
			{Tag: RelationTerm, Field: FieldTerms},
		},
	},
}

// RelationsFor returns the relation rules of a component type and whether any are declared.
func RelationsFor(t ComponentType) (RelationSpec, bool) {
	spec, ok := relationTable[t]
	if !ok || spec.Empty() {
		return RelationSpec{}, false
	}
	return spec, true
}

// TargetTypes returns the component types a reference with this tag may point at.
// Scoping the lookup keeps identifiers reused across types from colliding.
func (t RelationTag) TargetTypes() []ComponentType {
	switch t {
	case RelationAgent, RelationCreator:
		return []ComponentType{ComponentTypeAgent}
	case RelationTerm:
		return []ComponentType{ComponentTypeTerm}
	case RelationAncestor, RelationCollection:
		return []ComponentType{ComponentTypeCollection}
	case RelationChild:
		return []ComponentType{ComponentTypeCollection, ComponentTypeObject}
	case RelationObject:
		return []ComponentType{ComponentTypeObject}
	}
	return nil
}
