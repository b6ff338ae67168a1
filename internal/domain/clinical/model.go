package clinical

import (
	"time"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// conditionRow is a Condition plus the columns derived from it for
// indexing. The derived columns are never returned to callers.
type conditionRow struct {
	Resource           *fhirmodels.Condition
	PatientID          string
	Code               string
	ClinicalStatus     string
	VerificationStatus string
	Category           string
	OnsetDate          *time.Time
	UpdatedAt          time.Time
}

func newConditionRow(c *fhirmodels.Condition, now time.Time) *conditionRow {
	return &conditionRow{
		Resource:           c,
		PatientID:          fhirmodels.PatientIDFromSubject(c.Subject),
		Code:               fhirmodels.RepresentativeCode(c.Code),
		ClinicalStatus:     c.ClinicalStatus.FirstCode(),
		VerificationStatus: c.VerificationStatus.FirstCode(),
		Category:           fhirmodels.FirstCategoryCode(c.Category),
		OnsetDate:          c.OnsetDate(),
		UpdatedAt:          now,
	}
}

type observationRow struct {
	Resource      *fhirmodels.Observation
	PatientID     string
	Code          string
	Status        string
	Category      string
	EffectiveDate *time.Time
	UpdatedAt     time.Time
}

func newObservationRow(o *fhirmodels.Observation, now time.Time) *observationRow {
	return &observationRow{
		Resource:      o,
		PatientID:     fhirmodels.PatientIDFromSubject(o.Subject),
		Code:          fhirmodels.RepresentativeCode(o.Code),
		Status:        o.Status,
		Category:      fhirmodels.FirstCategoryCode(o.Category),
		EffectiveDate: o.EffectiveDate(),
		UpdatedAt:     now,
	}
}
