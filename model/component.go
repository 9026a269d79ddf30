package model

import (
	"fmt"
	"strings"
	"time"
)

// ComponentType is the kind of description component.
type ComponentType string

const (
	ComponentTypeAgent      ComponentType = "agent"
	ComponentTypeCollection ComponentType = "collection"
	ComponentTypeObject     ComponentType = "object"
	ComponentTypeTerm       ComponentType = "term"
)

// ComponentTypes lists every indexed component type.
var ComponentTypes = []ComponentType{
	ComponentTypeAgent,
	ComponentTypeCollection,
	ComponentTypeObject,
	ComponentTypeTerm,
}

// agentSubtypes are the source-system agent types that resolve to "agent".
var agentSubtypes = map[string]bool{
	"person":       true,
	"organization": true,
	"family":       true,
	"software":     true,
}

// Valid reports whether t is one of the indexed component types.
func (t ComponentType) Valid() bool {
	switch t {
	case ComponentTypeAgent, ComponentTypeCollection, ComponentTypeObject, ComponentTypeTerm:
		return true
	}
	return false
}

// Plural returns the collection name used in URIs, e.g. "agents".
func (t ComponentType) Plural() string {
	return string(t) + "s"
}

// ParseComponentType maps a type or its plural form to a ComponentType.
// Agent subtypes such as "person" resolve to agent and are returned as subtype.
func ParseComponentType(value string) (ComponentType, string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if agentSubtypes[v] {
		return ComponentTypeAgent, v, nil
	}

	t := ComponentType(strings.TrimSuffix(v, "s"))
	if !t.Valid() {
		return "", "", fmt.Errorf("unknown component type %q", value)
	}
	return t, "", nil
}

// ExternalIdentifier is an identifier of the component in a source system.
type ExternalIdentifier struct {
	Source           string `json:"source"`
	Identifier       string `json:"identifier"`
	SourceIdentifier string `json:"source_identifier,omitempty"`
}

// SourceIdentifierKey builds the join key used by every resolution step.
func SourceIdentifierKey(source, identifier string) string {
	return source + "_" + identifier
}

// Key returns the join key, preferring the stored one.
func (e ExternalIdentifier) Key() string {
	if len(e.SourceIdentifier) > 0 {
		return e.SourceIdentifier
	}
	return SourceIdentifierKey(e.Source, e.Identifier)
}

type Date struct {
	Begin      string `json:"begin,omitempty"`
	End        string `json:"end,omitempty"`
	Expression string `json:"expression,omitempty"`
	Type       string `json:"type,omitempty"`
	Label      string `json:"label,omitempty"`
}

type Extent struct {
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

type Language struct {
	Expression string `json:"expression"`
	Identifier string `json:"identifier"`
}

type Subnote struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type Note struct {
	Type     string    `json:"type"`
	Title    string    `json:"title,omitempty"`
	Source   string    `json:"source,omitempty"`
	Subnotes []Subnote `json:"subnotes,omitempty"`
}

// Text joins the content of all subnotes.
func (n Note) Text() string {
	parts := make([]string, 0, len(n.Subnotes))
	for _, s := range n.Subnotes {
		if c := strings.TrimSpace(s.Content); len(c) > 0 {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

type RightsGranted struct {
	Act         string `json:"act"`
	Begin       string `json:"begin,omitempty"`
	End         string `json:"end,omitempty"`
	Restriction string `json:"restriction,omitempty"`
	Notes       []Note `json:"notes,omitempty"`
}

type RightsStatement struct {
	DeterminationDate string          `json:"determination_date,omitempty"`
	Type              string          `json:"type"`
	RightsType        string          `json:"rights_type,omitempty"`
	Begin             string          `json:"begin,omitempty"`
	End               string          `json:"end,omitempty"`
	CopyrightStatus   string          `json:"copyright_status,omitempty"`
	OtherBasis        string          `json:"other_basis,omitempty"`
	Jurisdiction      string          `json:"jurisdiction,omitempty"`
	Notes             []Note          `json:"notes,omitempty"`
	RightsGranted     []RightsGranted `json:"rights_granted,omitempty"`
}

// Group is the top-level collection framing of a component.
type Group struct {
	Identifier string     `json:"identifier"`
	Title      string     `json:"title"`
	Category   string     `json:"category,omitempty"`
	Dates      []Date     `json:"dates,omitempty"`
	Creators   []Citation `json:"creators,omitempty"`
}

// Citation is an outward pointer held in a component payload.
// Only the external identifiers are required to resolve it.
type Citation struct {
	Title               string               `json:"title,omitempty"`
	Type                string               `json:"type,omitempty"`
	Order               *int                 `json:"order,omitempty"`
	ExternalIdentifiers []ExternalIdentifier `json:"external_identifiers"`
}

// SourceIdentifiers returns the join keys of the cited component.
func (c Citation) SourceIdentifiers() []string {
	keys := make([]string, 0, len(c.ExternalIdentifiers))
	for _, e := range c.ExternalIdentifiers {
		keys = append(keys, e.Key())
	}
	return keys
}

// Component is the canonical description component: an agent, collection, object or term.
type Component struct {
	ID                  string               `json:"id"`
	Type                ComponentType        `json:"type"`
	Subtype             string               `json:"subtype,omitempty"`
	Title               string               `json:"title"`
	Summary             string               `json:"description,omitempty"`
	Category            string               `json:"category,omitempty"`
	Level               string               `json:"level,omitempty"`
	Online              bool                 `json:"online"`
	Position            *int                 `json:"position,omitempty"`
	Group               *Group               `json:"group,omitempty"`
	ExternalIdentifiers []ExternalIdentifier `json:"external_identifiers"`
	Dates               []Date               `json:"dates,omitempty"`
	Extents             []Extent             `json:"extents,omitempty"`
	Formats             []string             `json:"formats,omitempty"`
	Languages           []Language           `json:"languages,omitempty"`
	Notes               []Note               `json:"notes,omitempty"`
	RightsStatements    []RightsStatement    `json:"rights_statements,omitempty"`
	Agents              []Citation           `json:"agents,omitempty"`
	Creators            []Citation           `json:"creators,omitempty"`
	Terms               []Citation           `json:"terms,omitempty"`
	Ancestors           []Citation           `json:"ancestors,omitempty"`
	Children            []Citation           `json:"children,omitempty"`
	Collections         []Citation           `json:"collections,omitempty"`
	Objects             []Citation           `json:"objects,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Validate checks the invariants every stored component must satisfy.
func (c *Component) Validate() error {
	if len(c.ID) == 0 {
		return fmt.Errorf("component id is empty")
	}
	if !c.Type.Valid() {
		return fmt.Errorf("component %s has invalid type %q", c.ID, c.Type)
	}
	if len(c.ExternalIdentifiers) == 0 {
		return fmt.Errorf("component %s has no external identifiers", c.ID)
	}
	for _, e := range c.ExternalIdentifiers {
		if len(e.Source) == 0 || len(e.Identifier) == 0 {
			return fmt.Errorf("component %s has an incomplete external identifier", c.ID)
		}
	}
	return nil
}

// Prepare normalizes the type and derives the source identifier of every
// external identifier, including those inside citations. Call before saving.
func (c *Component) Prepare() error {
	if t, subtype, err := ParseComponentType(string(c.Type)); err == nil {
		c.Type = t
		if len(subtype) > 0 {
			c.Subtype = subtype
		}
	}

	deriveKeys(c.ExternalIdentifiers)
	for _, field := range RelationFields {
		citations := c.Citations(field)
		for i := range citations {
			deriveKeys(citations[i].ExternalIdentifiers)
		}
	}

	return c.Validate()
}

func deriveKeys(ids []ExternalIdentifier) {
	for i := range ids {
		ids[i].SourceIdentifier = SourceIdentifierKey(ids[i].Source, ids[i].Identifier)
	}
}

// SourceIdentifiers returns the join keys of the component itself.
func (c *Component) SourceIdentifiers() []string {
	keys := make([]string, 0, len(c.ExternalIdentifiers))
	for _, e := range c.ExternalIdentifiers {
		keys = append(keys, e.Key())
	}
	return keys
}

// Citations returns the citation list stored under field.
func (c *Component) Citations(field RelationField) []Citation {
	switch field {
	case FieldAgents:
		return c.Agents
	case FieldCreators:
		return c.Creators
	case FieldTerms:
		return c.Terms
	case FieldAncestors:
		return c.Ancestors
	case FieldChildren:
		return c.Children
	case FieldCollections:
		return c.Collections
	case FieldObjects:
		return c.Objects
	}
	return nil
}

// CitedIdentifiers maps every non-empty citation field to the join keys it cites.
func (c *Component) CitedIdentifiers() map[RelationField][]string {
	cited := map[RelationField][]string{}
	for _, field := range RelationFields {
		for _, citation := range c.Citations(field) {
			cited[field] = append(cited[field], citation.SourceIdentifiers()...)
		}
	}
	return cited
}

// URI returns the API path of the component.
func (c *Component) URI() string {
	return ComponentURI(c.Type, c.ID)
}

// ComponentURI builds the API path for a component of type t.
func ComponentURI(t ComponentType, id string) string {
	return "/" + t.Plural() + "/" + id
}

// DateString renders the dates as a human readable string.
func (c *Component) DateString() string {
	return DateString(c.Dates)
}

// DateString joins date expressions, falling back to begin-end ranges.
func DateString(dates []Date) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		switch {
		case len(d.Expression) > 0:
			parts = append(parts, d.Expression)
		case len(d.Begin) > 0 && len(d.End) > 0 && d.Begin != d.End:
			parts = append(parts, d.Begin+"-"+d.End)
		case len(d.Begin) > 0:
			parts = append(parts, d.Begin)
		}
	}
	return strings.Join(parts, ", ")
}

// Description returns the text of the first abstract note, falling back
// to scope and contents and finally to the stored summary.
func (c *Component) Description() string {
	for _, noteType := range []string{"abstract", "scopecontent"} {
		for _, n := range c.Notes {
			if n.Type != noteType {
				continue
			}
			if text := n.Text(); len(text) > 0 {
				return text
			}
		}
	}
	return c.Summary
}

// SearchText is the text matched by full-text queries.
func (c *Component) SearchText() string {
	parts := []string{c.Title, c.Summary}
	for _, n := range c.Notes {
		parts = append(parts, n.Title, n.Text())
	}
	for _, t := range c.Terms {
		parts = append(parts, t.Title)
	}
	return strings.Join(parts, " ")
}
