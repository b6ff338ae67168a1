package diagnostics

import (
	"time"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// reportRow is a DiagnosticReport plus its indexed columns.
type reportRow struct {
	Resource      *fhirmodels.DiagnosticReport
	PatientID     string
	Code          string
	Status        string
	Category      string
	EffectiveDate *time.Time
	UpdatedAt     time.Time
}

func newReportRow(r *fhirmodels.DiagnosticReport, now time.Time) *reportRow {
	return &reportRow{
		Resource:      r,
		PatientID:     fhirmodels.PatientIDFromSubject(r.Subject),
		Code:          fhirmodels.RepresentativeCode(r.Code),
		Status:        r.Status,
		Category:      fhirmodels.FirstCategoryCode(r.Category),
		EffectiveDate: r.EffectiveDate(),
		UpdatedAt:     now,
	}
}
