package model

import "encoding/json"

// AncestorNode is one link of an ancestor chain, refreshed from the live component.
type AncestorNode struct {
	Identifier     string        `json:"identifier"`
	URI            string        `json:"uri"`
	Title          string        `json:"title"`
	Type           ComponentType `json:"type"`
	Order          *int          `json:"order"`
	Dates          string        `json:"dates,omitempty"`
	Description    string        `json:"description,omitempty"`
	Online         bool          `json:"online"`
	HitCount       *int          `json:"hit_count,omitempty"`
	OnlineHitCount *int          `json:"online_hit_count,omitempty"`
	Child          *AncestorNode `json:"child,omitempty"`
}

// AncestorChain is the lineage of a component, nearest ancestor first.
type AncestorChain []AncestorNode

// IDs returns the component ids in chain order.
func (c AncestorChain) IDs() []string {
	ids := make([]string, 0, len(c))
	for _, n := range c {
		ids = append(ids, n.Identifier)
	}
	return ids
}

// Nest renders the chain as a single nested node with the root outermost
// and the nearest ancestor at the deepest child key. Returns nil for an empty chain.
func (c AncestorChain) Nest() *AncestorNode {
	var nested *AncestorNode
	for i := range c {
		node := c[i]
		node.Child = nested
		nested = &node
	}
	return nested
}

// MarshalJSON writes the nested form, or {} when there are no ancestors.
func (c AncestorChain) MarshalJSON() ([]byte, error) {
	nested := c.Nest()
	if nested == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(nested)
}
