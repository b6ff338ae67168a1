package fhirmodels

import (
	"fmt"
	"strings"
)

// InvalidResourceError lists every problem found while validating a resource.
type InvalidResourceError struct {
	ResourceType string
	Issues       []string
}

func (e *InvalidResourceError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.ResourceType, strings.Join(e.Issues, "; "))
}

type issues struct {
	resourceType string
	list         []string
}

func (is *issues) addf(format string, args ...interface{}) {
	is.list = append(is.list, fmt.Sprintf(format, args...))
}

func (is *issues) err() error {
	if len(is.list) == 0 {
		return nil
	}
	return &InvalidResourceError{ResourceType: is.resourceType, Issues: is.list}
}

func (is *issues) checkType(got string) {
	if got != is.resourceType {
		is.addf("resourceType must be %q, got %q", is.resourceType, got)
	}
}

func (is *issues) checkSubject(subject Reference) {
	if subject.Reference == "" {
		is.addf("subject.reference is required")
		return
	}
	rt, _, err := ParseReference(subject.Reference)
	if err != nil {
		is.addf("subject: %v", err)
		return
	}
	if rt != ResourcePatient {
		is.addf("subject must reference a Patient, got %s", rt)
	}
}

func (is *issues) checkPeriod(field string, p *Period) {
	if err := p.Validate(); err != nil {
		is.addf("%s: %v", field, err)
	}
}

func (is *issues) checkDateTime(field, v string) {
	if v == "" {
		return
	}
	if _, err := ParseDateTime(v); err != nil {
		is.addf("%s: %v", field, err)
	}
}
