package medication

import (
	"context"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// RequestRepository stores MedicationRequests keyed by resource id.
type RequestRepository interface {
	Upsert(ctx context.Context, row *requestRow) error
	// GetByID returns nil, nil when no row matches.
	GetByID(ctx context.Context, id string) (*fhirmodels.MedicationRequest, error)
	ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.MedicationRequest, error)
}
