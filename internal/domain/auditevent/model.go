package auditevent

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// AuditLog is one row of the append-only audit_log table.
type AuditLog struct {
	ID           uuid.UUID              `json:"id"`
	UserID       string                 `json:"user_id"`
	Action       fhirmodels.AuditAction `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Details      map[string]interface{} `json:"details,omitempty"`
	RecordedAt   time.Time              `json:"recorded_at"`
}

// Permission names stored in permission_grant.
const (
	PermissionRead   = "read"
	PermissionWrite  = "write"
	PermissionDelete = "delete"
)

// PermissionGrant is one row of permission_grant.
type PermissionGrant struct {
	UserID       string `json:"user_id"`
	ResourceType string `json:"resource_type"`
	Permission   string `json:"permission"`
}

// ToFHIR renders the entry as an AuditEvent. source names the recording
// system and becomes the observer device.
func (a *AuditLog) ToFHIR(source string) *fhirmodels.AuditEvent {
	ev := fhirmodels.NewAuditEvent()
	ev.ID = a.ID.String()
	ev.Type = fhirmodels.Coding{
		System:  fhirmodels.SystemAuditEventType,
		Code:    "rest",
		Display: "RESTful Operation",
	}
	ev.Subtype = []fhirmodels.Coding{{
		System: fhirmodels.SystemRestfulInteraction,
		Code:   string(a.Action),
	}}
	ev.Action = a.Action.Code()
	ev.Recorded = a.RecordedAt.UTC()
	ev.Outcome = fhirmodels.OutcomeSuccess.Code()

	who := fhirmodels.FormatReference("Person", a.UserID)
	ev.Agent = []fhirmodels.AuditEventAgent{{
		Who:       &fhirmodels.Reference{Reference: who},
		AltID:     a.UserID,
		Requestor: true,
	}}
	ev.Source = fhirmodels.AuditEventSource{
		Observer: fhirmodels.Reference{Reference: fhirmodels.FormatReference("Device", source)},
	}
	if a.ResourceType != "" && a.ResourceID != "" {
		ev.Entity = []fhirmodels.AuditEventEntity{{
			What: &fhirmodels.Reference{
				Reference: fhirmodels.FormatReference(a.ResourceType, a.ResourceID),
				Type:      a.ResourceType,
			},
		}}
	}
	return ev
}
