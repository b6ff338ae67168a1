package fhirmodels

// Timing describes when a dose is to be taken.
type Timing struct {
	Event  []string         `json:"event,omitempty"`
	Repeat *TimingRepeat    `json:"repeat,omitempty"`
	Code   *CodeableConcept `json:"code,omitempty"`
}

type TimingRepeat struct {
	Frequency  int      `json:"frequency,omitempty"`
	Period     *float64 `json:"period,omitempty"`
	PeriodUnit string   `json:"periodUnit,omitempty"`
	When       []string `json:"when,omitempty"`
	TimeOfDay  []string `json:"timeOfDay,omitempty"`
}

// DoseAndRate carries either a fixed dose or a dose range.
type DoseAndRate struct {
	Type         *CodeableConcept `json:"type,omitempty"`
	DoseQuantity *Quantity        `json:"doseQuantity,omitempty"`
	DoseRange    *Range           `json:"doseRange,omitempty"`
}

type Dosage struct {
	Sequence    int              `json:"sequence,omitempty"`
	Text        string           `json:"text,omitempty"`
	Timing      *Timing          `json:"timing,omitempty"`
	AsNeeded    *bool            `json:"asNeededBoolean,omitempty"`
	Route       *CodeableConcept `json:"route,omitempty"`
	DoseAndRate []DoseAndRate    `json:"doseAndRate,omitempty"`
}

type DispenseRequest struct {
	ValidityPeriod         *Period   `json:"validityPeriod,omitempty"`
	NumberOfRepeatsAllowed *int      `json:"numberOfRepeatsAllowed,omitempty"`
	Quantity               *Quantity `json:"quantity,omitempty"`
	ExpectedSupplyDuration *Quantity `json:"expectedSupplyDuration,omitempty"`
}

// MedicationRequest is an order for the supply and administration of a
// medication. Exactly one of MedicationCodeableConcept and
// MedicationReference identifies the medication.
type MedicationRequest struct {
	ResourceType              string            `json:"resourceType"`
	ID                        string            `json:"id,omitempty"`
	Meta                      *Meta             `json:"meta,omitempty"`
	Identifier                []Identifier      `json:"identifier,omitempty"`
	Status                    string            `json:"status"`
	StatusReason              *CodeableConcept  `json:"statusReason,omitempty"`
	Intent                    string            `json:"intent"`
	Category                  []CodeableConcept `json:"category,omitempty"`
	Priority                  string            `json:"priority,omitempty"`
	MedicationCodeableConcept *CodeableConcept  `json:"medicationCodeableConcept,omitempty"`
	MedicationReference       *Reference        `json:"medicationReference,omitempty"`
	Subject                   Reference         `json:"subject"`
	Encounter                 *Reference        `json:"encounter,omitempty"`
	AuthoredOn                string            `json:"authoredOn,omitempty"`
	Requester                 *Reference        `json:"requester,omitempty"`
	ReasonCode                []CodeableConcept `json:"reasonCode,omitempty"`
	Note                      []Annotation      `json:"note,omitempty"`
	DosageInstruction         []Dosage          `json:"dosageInstruction,omitempty"`
	DispenseRequest           *DispenseRequest  `json:"dispenseRequest,omitempty"`
}

func NewMedicationRequest() *MedicationRequest {
	return &MedicationRequest{ResourceType: ResourceMedicationRequest}
}

// Medication returns the coded medication, or a concept built from the
// reference display when the medication is referenced.
func (m *MedicationRequest) Medication() *CodeableConcept {
	if m.MedicationCodeableConcept != nil {
		return m.MedicationCodeableConcept
	}
	if m.MedicationReference != nil && m.MedicationReference.Display != "" {
		return &CodeableConcept{Text: m.MedicationReference.Display}
	}
	return nil
}

// Validate checks the fields the storage layer derives from.
func (m *MedicationRequest) Validate() error {
	is := issues{resourceType: ResourceMedicationRequest}
	is.checkType(m.ResourceType)
	is.checkSubject(m.Subject)
	if m.Status == "" {
		is.addf("status is required")
	} else if !validMedRequestStatuses[m.Status] {
		is.addf("invalid status: %s", m.Status)
	}
	if m.Intent == "" {
		is.addf("intent is required")
	} else if !validIntents[m.Intent] {
		is.addf("invalid intent: %s", m.Intent)
	}
	hasConcept := m.MedicationCodeableConcept != nil
	hasRef := m.MedicationReference != nil
	switch {
	case hasConcept && hasRef:
		is.addf("only one of medicationCodeableConcept and medicationReference may be present")
	case !hasConcept && !hasRef:
		is.addf("medicationCodeableConcept or medicationReference is required")
	case hasRef:
		if _, _, err := ParseReference(m.MedicationReference.Reference); err != nil {
			is.addf("medicationReference: %v", err)
		}
	}
	is.checkDateTime("authoredOn", m.AuthoredOn)
	if m.DispenseRequest != nil {
		is.checkPeriod("dispenseRequest.validityPeriod", m.DispenseRequest.ValidityPeriod)
		if n := m.DispenseRequest.NumberOfRepeatsAllowed; n != nil && *n < 0 {
			is.addf("dispenseRequest.numberOfRepeatsAllowed must not be negative")
		}
	}
	return is.err()
}
