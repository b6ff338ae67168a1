package fhir

import (
	"encoding/json"
	"fmt"
)

// FHIRMediaType is used for both Content-Type and Accept on every request and
// response that carries a resource.
const FHIRMediaType = "application/fhir+json"

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

// ResourceDescription holds the discriminant and id read from a resource body.
type ResourceDescription struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// DescribeResource marshals v and reads its resourceType and id.
func DescribeResource(v interface{}) (*ResourceDescription, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	var desc ResourceDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("describe %T: %w", v, err)
	}
	if desc.ResourceType == "" {
		return nil, fmt.Errorf("resourceType not present in %T", v)
	}
	return &desc, nil
}
