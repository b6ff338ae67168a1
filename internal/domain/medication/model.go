package medication

import (
	"time"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

type requestRow struct {
	Resource   *fhirmodels.MedicationRequest
	PatientID  string
	Code       string
	Status     string
	Intent     string
	AuthoredOn *time.Time
	UpdatedAt  time.Time
}

func newRequestRow(m *fhirmodels.MedicationRequest, now time.Time) *requestRow {
	return &requestRow{
		Resource:   m,
		PatientID:  fhirmodels.PatientIDFromSubject(m.Subject),
		Code:       medicationCode(m),
		Status:     m.Status,
		Intent:     m.Intent,
		AuthoredOn: m.AuthoredDate(),
		UpdatedAt:  now,
	}
}

// medicationCode indexes a coded medication by its code and a referenced
// one by the reference itself.
func medicationCode(m *fhirmodels.MedicationRequest) string {
	if m.MedicationCodeableConcept == nil && m.MedicationReference != nil {
		return m.MedicationReference.Reference
	}
	return fhirmodels.RepresentativeCode(m.MedicationCodeableConcept)
}
