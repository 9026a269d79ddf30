package model

import (
	"net/url"
	"strconv"
)

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Count    int     `json:"count"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (p *Page[T]) HasNext() bool {
	return p.Offset+len(p.Results) < p.Count
}

func (p *Page[T]) HasPrevious() bool {
	return p.Offset > 0
}

// SetLinks points Next and Previous at the neighbouring pages of u,
// keeping every other query parameter.
func (p *Page[T]) SetLinks(u *url.URL) {
	p.Next, p.Previous = nil, nil
	if p.HasNext() {
		next := pageLink(u, p.Limit, p.Offset+p.Limit)
		p.Next = &next
	}
	if p.HasPrevious() {
		previous := pageLink(u, p.Limit, max(p.Offset-p.Limit, 0))
		p.Previous = &previous
	}
}

func pageLink(u *url.URL, limit int, offset int) string {
	link := *u
	q := link.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	link.RawQuery = q.Encode()
	return link.String()
}

// HitCount is the number of full-text matches scoped to one component.
type HitCount struct {
	Total  int `json:"hit_count"`
	Online int `json:"online_hit_count"`
}

// ReferenceNode is one row of a children listing.
type ReferenceNode struct {
	*Reference
	Group          *Group `json:"group,omitempty"`
	Dates          string `json:"dates,omitempty"`
	Description    string `json:"description,omitempty"`
	Online         bool   `json:"online"`
	HitCount       *int   `json:"hit_count,omitempty"`
	OnlineHitCount *int   `json:"online_hit_count,omitempty"`
}

// SetHits copies a hit count onto the node.
func (n *ReferenceNode) SetHits(h HitCount) {
	total, online := h.Total, h.Online
	n.HitCount = &total
	n.OnlineHitCount = &online
}

// Suggestion is a title completion for a search box.
type Suggestion struct {
	ID    string        `json:"id"`
	Type  ComponentType `json:"type"`
	Title string        `json:"title"`
	URI   string        `json:"uri"`
}
