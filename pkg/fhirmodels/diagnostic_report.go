package fhirmodels

// DiagnosticReport is the findings and interpretation of diagnostic tests
// performed on a patient.
type DiagnosticReport struct {
	ResourceType      string            `json:"resourceType"`
	ID                string            `json:"id,omitempty"`
	Meta              *Meta             `json:"meta,omitempty"`
	Identifier        []Identifier      `json:"identifier,omitempty"`
	Status            string            `json:"status"`
	Category          []CodeableConcept `json:"category,omitempty"`
	Code              *CodeableConcept  `json:"code,omitempty"`
	Subject           Reference         `json:"subject"`
	Encounter         *Reference        `json:"encounter,omitempty"`
	EffectiveDateTime string            `json:"effectiveDateTime,omitempty"`
	EffectivePeriod   *Period           `json:"effectivePeriod,omitempty"`
	Issued            string            `json:"issued,omitempty"`
	Performer         []Reference       `json:"performer,omitempty"`
	Result            []Reference       `json:"result,omitempty"`
	Conclusion        string            `json:"conclusion,omitempty"`
	ConclusionCode    []CodeableConcept `json:"conclusionCode,omitempty"`
	PresentedForm     []Attachment      `json:"presentedForm,omitempty"`
}

func NewDiagnosticReport() *DiagnosticReport {
	return &DiagnosticReport{ResourceType: ResourceDiagnosticReport}
}

// Validate checks the fields the storage layer derives from.
func (r *DiagnosticReport) Validate() error {
	is := issues{resourceType: ResourceDiagnosticReport}
	is.checkType(r.ResourceType)
	is.checkSubject(r.Subject)
	if r.Status == "" {
		is.addf("status is required")
	} else if !validReportStatuses[r.Status] {
		is.addf("invalid status: %s", r.Status)
	}
	if r.Code.IsEmpty() {
		is.addf("code is required")
	}
	is.checkDateTime("effectiveDateTime", r.EffectiveDateTime)
	is.checkPeriod("effectivePeriod", r.EffectivePeriod)
	is.checkDateTime("issued", r.Issued)
	for i, ref := range r.Result {
		if _, _, err := ParseReference(ref.Reference); err != nil {
			is.addf("result[%d]: %v", i, err)
		}
	}
	return is.err()
}
