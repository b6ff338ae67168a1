package fhirmodels

import (
	"fmt"
	"strings"
	"time"
)

// Meta carries server-managed resource metadata.
type Meta struct {
	VersionID   string     `json:"versionId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Profile     []string   `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Version string `json:"version,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a value expressed through one or more codings plus
// optional free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// IsEmpty reports whether the concept is unspecified (no coding and no text).
func (cc *CodeableConcept) IsEmpty() bool {
	return cc == nil || (len(cc.Coding) == 0 && cc.Text == "")
}

// FirstCode returns the code of the first coding, or "".
func (cc *CodeableConcept) FirstCode() string {
	if cc == nil || len(cc.Coding) == 0 {
		return ""
	}
	return cc.Coding[0].Code
}

// HasCode reports whether any coding carries the given code.
func (cc *CodeableConcept) HasCode(code string) bool {
	if cc == nil {
		return false
	}
	for _, c := range cc.Coding {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Label returns a human readable rendering: text, else first display, else first code.
func (cc *CodeableConcept) Label() string {
	if cc == nil {
		return ""
	}
	if cc.Text != "" {
		return cc.Text
	}
	for _, c := range cc.Coding {
		if c.Display != "" {
			return c.Display
		}
	}
	return cc.FirstCode()
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// FormatReference builds a "<ResourceType>/<id>" reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// ParseReference splits a literal reference into its type and id. The
// reference must consist of exactly two non-empty path segments.
func ParseReference(ref string) (resourceType, id string, err error) {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed reference %q: expected <ResourceType>/<id>", ref)
	}
	return parts[0], parts[1], nil
}

// Period is a time range. Start and End are FHIR dateTime strings.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Validate checks that End, when present, is not before Start.
func (p *Period) Validate() error {
	if p == nil || p.Start == "" || p.End == "" {
		return nil
	}
	start, err := ParseDateTime(p.Start)
	if err != nil {
		return fmt.Errorf("period.start: %w", err)
	}
	end, err := ParseDateTime(p.End)
	if err != nil {
		return fmt.Errorf("period.end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("period.end %s is before period.start %s", p.End, p.Start)
	}
	return nil
}

// Quantity comparators.
const (
	ComparatorLess           = "<"
	ComparatorLessOrEqual    = "<="
	ComparatorGreaterOrEqual = ">="
	ComparatorGreater        = ">"
)

// Quantity is a measured amount. Comparator is set when Value is a bound
// rather than an exact reading.
type Quantity struct {
	Value      *float64 `json:"value,omitempty"`
	Comparator string   `json:"comparator,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	System     string   `json:"system,omitempty"`
	Code       string   `json:"code,omitempty"`
}

// Age is a duration of life expressed as a Quantity.
type Age = Quantity

type Range struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
}

// Contains reports whether v lies within the range. Bounds are inclusive and
// an absent bound leaves that side open.
func (r *Range) Contains(v float64) bool {
	if r == nil {
		return true
	}
	if r.Low != nil && r.Low.Value != nil && v < *r.Low.Value {
		return false
	}
	if r.High != nil && r.High.Value != nil && v > *r.High.Value {
		return false
	}
	return true
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type Annotation struct {
	AuthorString string `json:"authorString,omitempty"`
	Time         string `json:"time,omitempty"`
	Text         string `json:"text"`
}

type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	Language    string `json:"language,omitempty"`
	Data        string `json:"data,omitempty"`
	URL         string `json:"url,omitempty"`
	Size        int    `json:"size,omitempty"`
	Title       string `json:"title,omitempty"`
	Creation    string `json:"creation,omitempty"`
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDateTime parses a FHIR dateTime in any of its allowed precisions.
func ParseDateTime(s string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid dateTime %q", s)
}

// Float returns a pointer to v; handy when building quantities.
func Float(v float64) *float64 { return &v }
