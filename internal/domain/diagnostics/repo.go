package diagnostics

import (
	"context"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// ReportRepository stores DiagnosticReports keyed by resource id. GetByID
// returns nil, nil when no row matches.
type ReportRepository interface {
	Upsert(ctx context.Context, row *reportRow) error
	GetByID(ctx context.Context, id string) (*fhirmodels.DiagnosticReport, error)
	ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.DiagnosticReport, error)
}
