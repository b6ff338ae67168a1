package medication

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// RequestService persists MedicationRequests. Saves are audited after the
// write succeeds.
type RequestService struct {
	repo  RequestRepository
	audit auditevent.ActionLogger
	now   func() time.Time
}

func NewRequestService(repo RequestRepository, audit auditevent.ActionLogger) *RequestService {
	return &RequestService{repo: repo, audit: audit, now: time.Now}
}

func (s *RequestService) SaveMedicationRequest(ctx context.Context, m *fhirmodels.MedicationRequest, userID string) (*fhirmodels.MedicationRequest, error) {
	if m == nil {
		return nil, fhir.NewValidationError("medication request is required", nil)
	}
	if err := m.Validate(); err != nil {
		return nil, fhir.FromValidation(err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.now()
	m.Touch(now)

	if err := s.repo.Upsert(ctx, newRequestRow(m, now)); err != nil {
		return nil, fhir.Wrap(err, 0, "failed to save medication request")
	}
	s.audit.LogAction(ctx, userID, fhirmodels.AuditUpdate, fhirmodels.ResourceMedicationRequest, m.ID, nil)
	return m, nil
}

// GetMedicationRequestsByPatient orders by authoredOn, newest first.
func (s *RequestService) GetMedicationRequestsByPatient(ctx context.Context, patientID string) ([]*fhirmodels.MedicationRequest, error) {
	if patientID == "" {
		return nil, fhir.NewValidationError("patient id is required", nil)
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load medication requests")
	}
	return items, nil
}

func (s *RequestService) GetMedicationRequestByID(ctx context.Context, id string) (*fhirmodels.MedicationRequest, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load medication request")
	}
	return m, nil
}
