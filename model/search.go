package model

import (
	"fmt"
	"strconv"
)

// FacetBucketSize is the number of creator and subject buckets returned.
const FacetBucketSize = 100

// GroupHit is one collapsed search result: a top-level group together with
// the number of matches inside it.
type GroupHit struct {
	URI            string   `json:"uri"`
	Title          string   `json:"title"`
	Category       string   `json:"category,omitempty"`
	Dates          []Date   `json:"dates"`
	Creators       []string `json:"creators"`
	HitCount       int      `json:"hit_count"`
	OnlineHitCount int      `json:"online_hit_count"`
}

// NewGroupHit builds the hit of a group. Components outside any group are
// their own group.
func NewGroupHit(group Group, hits HitCount) *GroupHit {
	hit := &GroupHit{
		URI:            group.Identifier,
		Title:          group.Title,
		Category:       group.Category,
		Dates:          group.Dates,
		Creators:       []string{},
		HitCount:       hits.Total,
		OnlineHitCount: hits.Online,
	}
	if hit.Dates == nil {
		hit.Dates = []Date{}
	}
	for _, c := range group.Creators {
		if len(c.Title) > 0 {
			hit.Creators = append(hit.Creators, c.Title)
		}
	}
	return hit
}

// Facet names as returned by the store.
const (
	FacetCreator = "creator"
	FacetSubject = "subject"
	FacetFormat  = "format"
	FacetMinDate = "min_date"
	FacetMaxDate = "max_date"
	FacetOnline  = "online"
)

type FacetBucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

type FacetCount struct {
	DocCount int `json:"doc_count"`
}

type FacetYear struct {
	Value int `json:"value"`
}

// Facets summarize the matches of a search.
type Facets struct {
	Creator []FacetBucket `json:"creator"`
	Subject []FacetBucket `json:"subject"`
	Format  []FacetBucket `json:"format"`
	MinDate *FacetYear    `json:"min_date,omitempty"`
	MaxDate *FacetYear    `json:"max_date,omitempty"`
	Online  FacetCount    `json:"online"`
}

func NewFacets() *Facets {
	return &Facets{
		Creator: []FacetBucket{},
		Subject: []FacetBucket{},
		Format:  []FacetBucket{},
	}
}

// Add records one row of the store's facet result.
func (f *Facets) Add(facet string, key string, count int) error {
	switch facet {
	case FacetCreator:
		f.Creator = append(f.Creator, FacetBucket{Key: key, DocCount: count})
	case FacetSubject:
		f.Subject = append(f.Subject, FacetBucket{Key: key, DocCount: count})
	case FacetFormat:
		f.Format = append(f.Format, FacetBucket{Key: key, DocCount: count})
	case FacetMinDate, FacetMaxDate:
		year, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid %s year %q: %w", facet, key, err)
		}
		if facet == FacetMinDate {
			f.MinDate = &FacetYear{Value: year}
		} else {
			f.MaxDate = &FacetYear{Value: year}
		}
	case FacetOnline:
		f.Online.DocCount = count
	default:
		return fmt.Errorf("unknown facet %q", facet)
	}
	return nil
}
