package fhir

// OperationOutcome severity levels (FHIR R4 value sets).
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes (FHIR R4 value sets).
const (
	IssueTypeInvalid    = "invalid"
	IssueTypeRequired   = "required"
	IssueTypeNotFound   = "not-found"
	IssueTypeProcessing = "processing"
	IssueTypeSecurity   = "security"
	IssueTypeLogin      = "login"
	IssueTypeForbidden  = "forbidden"
	IssueTypeException  = "exception"
	IssueTypeTransient  = "transient"
)

// MultipleIssuesOutcome creates an OperationOutcome with one error issue per
// message, all of the given issue type.
func MultipleIssuesOutcome(code string, messages []string) *OperationOutcome {
	issues := make([]OperationOutcomeIssue, 0, len(messages))
	for _, m := range messages {
		issues = append(issues, OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        code,
			Diagnostics: m,
		})
	}
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        issues,
	}
}

// InternalErrorOutcome creates an OperationOutcome for internal server errors.
func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}
