package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// ConditionService persists Conditions and records every save in the audit
// log.
type ConditionService struct {
	repo  ConditionRepository
	audit auditevent.ActionLogger
	now   func() time.Time
}

func NewConditionService(repo ConditionRepository, audit auditevent.ActionLogger) *ConditionService {
	return &ConditionService{repo: repo, audit: audit, now: time.Now}
}

// SaveCondition validates c, assigns an id when it has none and upserts it.
// The audit entry is written only after the upsert succeeds; its failure
// does not affect the result.
func (s *ConditionService) SaveCondition(ctx context.Context, c *fhirmodels.Condition, userID string) (*fhirmodels.Condition, error) {
	if c == nil {
		return nil, fhir.NewValidationError("condition is required", nil)
	}
	if err := c.Validate(); err != nil {
		return nil, fhir.FromValidation(err)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.Touch(now)

	if err := s.repo.Upsert(ctx, newConditionRow(c, now)); err != nil {
		return nil, fhir.Wrap(err, 0, "failed to save condition")
	}
	s.audit.LogAction(ctx, userID, fhirmodels.AuditUpdate, fhirmodels.ResourceCondition, c.ID, nil)
	return c, nil
}

// GetConditionsByPatient returns the patient's conditions, most recently
// saved first.
func (s *ConditionService) GetConditionsByPatient(ctx context.Context, patientID string) ([]*fhirmodels.Condition, error) {
	if patientID == "" {
		return nil, fhir.NewValidationError("patient id is required", nil)
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load conditions")
	}
	return items, nil
}

// GetConditionByID returns nil, nil when no condition has that id.
func (s *ConditionService) GetConditionByID(ctx context.Context, id string) (*fhirmodels.Condition, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load condition")
	}
	return c, nil
}

type ObservationService struct {
	repo  ObservationRepository
	audit auditevent.ActionLogger
	now   func() time.Time
}

func NewObservationService(repo ObservationRepository, audit auditevent.ActionLogger) *ObservationService {
	return &ObservationService{repo: repo, audit: audit, now: time.Now}
}

func (s *ObservationService) SaveObservation(ctx context.Context, o *fhirmodels.Observation, userID string) (*fhirmodels.Observation, error) {
	if o == nil {
		return nil, fhir.NewValidationError("observation is required", nil)
	}
	if err := o.Validate(); err != nil {
		return nil, fhir.FromValidation(err)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := s.now()
	o.Touch(now)

	if err := s.repo.Upsert(ctx, newObservationRow(o, now)); err != nil {
		return nil, fhir.Wrap(err, 0, "failed to save observation")
	}
	s.audit.LogAction(ctx, userID, fhirmodels.AuditUpdate, fhirmodels.ResourceObservation, o.ID, nil)
	return o, nil
}

// GetObservationsByPatient orders by effective date, newest first; undated
// observations come last.
func (s *ObservationService) GetObservationsByPatient(ctx context.Context, patientID string) ([]*fhirmodels.Observation, error) {
	if patientID == "" {
		return nil, fhir.NewValidationError("patient id is required", nil)
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load observations")
	}
	return items, nil
}

func (s *ObservationService) GetObservationByID(ctx context.Context, id string) (*fhirmodels.Observation, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load observation")
	}
	return o, nil
}
