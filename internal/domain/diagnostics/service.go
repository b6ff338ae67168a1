package diagnostics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

type ReportService struct {
	repo  ReportRepository
	audit auditevent.ActionLogger
	now   func() time.Time
}

func NewReportService(repo ReportRepository, audit auditevent.ActionLogger) *ReportService {
	return &ReportService{repo: repo, audit: audit, now: time.Now}
}

// SaveDiagnosticReport validates and upserts r, then audits the write.
func (s *ReportService) SaveDiagnosticReport(ctx context.Context, r *fhirmodels.DiagnosticReport, userID string) (*fhirmodels.DiagnosticReport, error) {
	if r == nil {
		return nil, fhir.NewValidationError("diagnostic report is required", nil)
	}
	if err := r.Validate(); err != nil {
		return nil, fhir.FromValidation(err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now()
	r.Touch(now)

	if err := s.repo.Upsert(ctx, newReportRow(r, now)); err != nil {
		return nil, fhir.Wrap(err, 0, "failed to save diagnostic report")
	}
	s.audit.LogAction(ctx, userID, fhirmodels.AuditUpdate, fhirmodels.ResourceDiagnosticReport, r.ID, nil)
	return r, nil
}

func (s *ReportService) GetDiagnosticReportsByPatient(ctx context.Context, patientID string) ([]*fhirmodels.DiagnosticReport, error) {
	if patientID == "" {
		return nil, fhir.NewValidationError("patient id is required", nil)
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load diagnostic reports")
	}
	return items, nil
}

func (s *ReportService) GetDiagnosticReportByID(ctx context.Context, id string) (*fhirmodels.DiagnosticReport, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fhir.Wrap(err, 0, "failed to load diagnostic report")
	}
	return r, nil
}
