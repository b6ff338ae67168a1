package fhirmodels

import "time"

// AuditAction is the kind of operation an audit entry records.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditRead   AuditAction = "read"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditSearch AuditAction = "search"
	AuditLogin  AuditAction = "login"
	AuditLogout AuditAction = "logout"
	AuditAccess AuditAction = "access"
	AuditExport AuditAction = "export"
	AuditImport AuditAction = "import"
)

var auditActionCodes = map[AuditAction]string{
	AuditCreate: "C",
	AuditRead:   "R",
	AuditSearch: "R",
	AuditAccess: "R",
	AuditExport: "R",
	AuditUpdate: "U",
	AuditImport: "U",
	AuditDelete: "D",
	AuditLogin:  "E",
	AuditLogout: "E",
}

// Code returns the AuditEvent.action code (C, R, U, D or E). Unknown
// actions are treated as executions.
func (a AuditAction) Code() string {
	if c, ok := auditActionCodes[a]; ok {
		return c
	}
	return "E"
}

// Valid reports whether a is one of the known actions.
func (a AuditAction) Valid() bool {
	_, ok := auditActionCodes[a]
	return ok
}

// AuditOutcome is the result of the audited operation.
type AuditOutcome string

const (
	OutcomeSuccess        AuditOutcome = "success"
	OutcomeMinorFailure   AuditOutcome = "minor"
	OutcomeSeriousFailure AuditOutcome = "serious"
	OutcomeMajorFailure   AuditOutcome = "major"
	OutcomeFatalFailure   AuditOutcome = "fatal"
)

// Code returns the R4 AuditEvent.outcome code. R4 has no separate fatal
// code; fatal failures are reported as major.
func (o AuditOutcome) Code() string {
	switch o {
	case OutcomeMinorFailure:
		return "4"
	case OutcomeSeriousFailure:
		return "8"
	case OutcomeMajorFailure, OutcomeFatalFailure:
		return "12"
	default:
		return "0"
	}
}

type AuditEventAgent struct {
	Type      *CodeableConcept `json:"type,omitempty"`
	Who       *Reference       `json:"who,omitempty"`
	AltID     string           `json:"altId,omitempty"`
	Requestor bool             `json:"requestor"`
}

type AuditEventSource struct {
	Site     string    `json:"site,omitempty"`
	Observer Reference `json:"observer"`
	Type     []Coding  `json:"type,omitempty"`
}

type AuditEventEntityDetail struct {
	Type        string `json:"type"`
	ValueString string `json:"valueString,omitempty"`
}

type AuditEventEntity struct {
	What        *Reference               `json:"what,omitempty"`
	Type        *Coding                  `json:"type,omitempty"`
	Description string                   `json:"description,omitempty"`
	Detail      []AuditEventEntityDetail `json:"detail,omitempty"`
}

// AuditEvent is the FHIR rendering of one audit log entry.
type AuditEvent struct {
	ResourceType string             `json:"resourceType"`
	ID           string             `json:"id,omitempty"`
	Meta         *Meta              `json:"meta,omitempty"`
	Type         Coding             `json:"type"`
	Subtype      []Coding           `json:"subtype,omitempty"`
	Action       string             `json:"action,omitempty"`
	Recorded     time.Time          `json:"recorded"`
	Outcome      string             `json:"outcome,omitempty"`
	OutcomeDesc  string             `json:"outcomeDesc,omitempty"`
	Agent        []AuditEventAgent  `json:"agent"`
	Source       AuditEventSource   `json:"source"`
	Entity       []AuditEventEntity `json:"entity,omitempty"`
}

func NewAuditEvent() *AuditEvent {
	return &AuditEvent{ResourceType: ResourceAuditEvent}
}

// Validate checks the cardinalities R4 requires.
func (e *AuditEvent) Validate() error {
	is := issues{resourceType: ResourceAuditEvent}
	is.checkType(e.ResourceType)
	if e.Recorded.IsZero() {
		is.addf("recorded is required")
	}
	if len(e.Agent) == 0 {
		is.addf("at least one agent is required")
	}
	if e.Source.Observer.Reference == "" {
		is.addf("source.observer is required")
	}
	return is.err()
}
