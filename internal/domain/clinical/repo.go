package clinical

import (
	"context"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// ConditionRepository stores Conditions keyed by resource id. GetByID
// returns nil, nil when no row matches.
type ConditionRepository interface {
	Upsert(ctx context.Context, row *conditionRow) error
	GetByID(ctx context.Context, id string) (*fhirmodels.Condition, error)
	ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.Condition, error)
}

type ObservationRepository interface {
	Upsert(ctx context.Context, row *observationRow) error
	GetByID(ctx context.Context, id string) (*fhirmodels.Observation, error)
	ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.Observation, error)
}
