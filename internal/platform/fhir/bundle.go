package fhir

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/ehr/resourceaccess/pkg/pagination"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode  string   `json:"mode,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// NewSearchBundle creates a searchset Bundle from a list of resources.
// It populates fullUrl for each entry and sets the self link.
func NewSearchBundle(resources []interface{}, baseURL string) *Bundle {
	now := time.Now().UTC()
	total := len(resources)
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		raw, _ := json.Marshal(r)
		entries[i] = BundleEntry{
			FullURL:  extractFullURL(r, baseURL),
			Resource: raw,
			Search: &BundleSearch{
				Mode: "match",
			},
		}
	}

	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Link: []BundleLink{
			{Relation: "self", URL: baseURL},
		},
		Entry: entries,
	}
}

// NewPagedSearchBundle holds the page of all selected by p. Total counts
// every match and the links carry the query's filters.
func NewPagedSearchBundle(all []interface{}, p pagination.Params, baseURL, path string, query url.Values) *Bundle {
	b := NewSearchBundle(pagination.Page(all, p), baseURL)
	total := len(all)
	b.Total = &total
	b.Link = b.Link[:0]
	for _, l := range p.Links(path, query, total) {
		b.Link = append(b.Link, BundleLink{Relation: l.Relation, URL: l.URL})
	}
	return b
}

// Next returns the URL of the next page, or "".
func (b *Bundle) Next() string {
	for _, l := range b.Link {
		if l.Relation == "next" {
			return l.URL
		}
	}
	return ""
}

// DecodeEntries unmarshals every entry whose resourceType matches into a new T.
// Entries of other types (included resources, OperationOutcomes) are skipped.
func DecodeEntries[T any](b *Bundle, resourceType string) ([]*T, error) {
	if b == nil {
		return nil, nil
	}
	out := make([]*T, 0, len(b.Entry))
	for i, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var desc ResourceDescription
		if err := json.Unmarshal(e.Resource, &desc); err != nil {
			return nil, fmt.Errorf("bundle entry %d: %w", i, err)
		}
		if desc.ResourceType != resourceType {
			continue
		}
		v := new(T)
		if err := json.Unmarshal(e.Resource, v); err != nil {
			return nil, fmt.Errorf("bundle entry %d (%s/%s): %w", i, desc.ResourceType, desc.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// extractFullURL attempts to build a fullUrl from a resource's resourceType and id.
func extractFullURL(r interface{}, baseURL string) string {
	desc, err := DescribeResource(r)
	if err != nil || desc.ID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", baseURL, desc.ResourceType, desc.ID)
}
