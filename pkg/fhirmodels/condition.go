package fhirmodels

import (
	"encoding/json"
	"fmt"
)

// ClinicalTime is the onset[x] / abatement[x] choice of a Condition. Exactly
// one variant is held at a time.
type ClinicalTime interface {
	isClinicalTime()
}

type TimeDateTime string
type TimeString string
type TimeAge struct{ Age }
type TimePeriod struct{ Period }
type TimeRange struct{ Range }

func (TimeDateTime) isClinicalTime() {}
func (TimeString) isClinicalTime()   {}
func (TimeAge) isClinicalTime()      {}
func (TimePeriod) isClinicalTime()   {}
func (TimeRange) isClinicalTime()    {}

// Condition is a clinical condition, problem or diagnosis.
type Condition struct {
	ResourceType       string            `json:"resourceType"`
	ID                 string            `json:"id,omitempty"`
	Meta               *Meta             `json:"meta,omitempty"`
	Identifier         []Identifier      `json:"identifier,omitempty"`
	ClinicalStatus     *CodeableConcept  `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept  `json:"verificationStatus,omitempty"`
	Category           []CodeableConcept `json:"category,omitempty"`
	Severity           *CodeableConcept  `json:"severity,omitempty"`
	Code               *CodeableConcept  `json:"code,omitempty"`
	BodySite           []CodeableConcept `json:"bodySite,omitempty"`
	Subject            Reference         `json:"subject"`
	Encounter          *Reference        `json:"encounter,omitempty"`
	Onset              ClinicalTime      `json:"-"`
	Abatement          ClinicalTime      `json:"-"`
	RecordedDate       string            `json:"recordedDate,omitempty"`
	Recorder           *Reference        `json:"recorder,omitempty"`
	Asserter           *Reference        `json:"asserter,omitempty"`
	Note               []Annotation      `json:"note,omitempty"`
}

// NewCondition returns a Condition with its discriminant set.
func NewCondition() *Condition {
	return &Condition{ResourceType: ResourceCondition}
}

type conditionAlias Condition

type clinicalTimeWire struct {
	DateTime *string
	Age      *Age
	Period   *Period
	Range    *Range
	String   *string
}

type conditionWire struct {
	conditionAlias
	OnsetDateTime     *string `json:"onsetDateTime,omitempty"`
	OnsetAge          *Age    `json:"onsetAge,omitempty"`
	OnsetPeriod       *Period `json:"onsetPeriod,omitempty"`
	OnsetRange        *Range  `json:"onsetRange,omitempty"`
	OnsetString       *string `json:"onsetString,omitempty"`
	AbatementDateTime *string `json:"abatementDateTime,omitempty"`
	AbatementAge      *Age    `json:"abatementAge,omitempty"`
	AbatementPeriod   *Period `json:"abatementPeriod,omitempty"`
	AbatementRange    *Range  `json:"abatementRange,omitempty"`
	AbatementString   *string `json:"abatementString,omitempty"`
}

func (c Condition) MarshalJSON() ([]byte, error) {
	w := conditionWire{conditionAlias: conditionAlias(c)}
	onset := splitClinicalTime(c.Onset)
	w.OnsetDateTime, w.OnsetAge, w.OnsetPeriod, w.OnsetRange, w.OnsetString =
		onset.DateTime, onset.Age, onset.Period, onset.Range, onset.String
	abatement := splitClinicalTime(c.Abatement)
	w.AbatementDateTime, w.AbatementAge, w.AbatementPeriod, w.AbatementRange, w.AbatementString =
		abatement.DateTime, abatement.Age, abatement.Period, abatement.Range, abatement.String
	return json.Marshal(w)
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	onset, err := joinClinicalTime("onset", clinicalTimeWire{
		DateTime: w.OnsetDateTime, Age: w.OnsetAge, Period: w.OnsetPeriod, Range: w.OnsetRange, String: w.OnsetString,
	})
	if err != nil {
		return err
	}
	abatement, err := joinClinicalTime("abatement", clinicalTimeWire{
		DateTime: w.AbatementDateTime, Age: w.AbatementAge, Period: w.AbatementPeriod, Range: w.AbatementRange, String: w.AbatementString,
	})
	if err != nil {
		return err
	}
	*c = Condition(w.conditionAlias)
	c.Onset = onset
	c.Abatement = abatement
	return nil
}

func splitClinicalTime(t ClinicalTime) clinicalTimeWire {
	var w clinicalTimeWire
	switch v := t.(type) {
	case TimeDateTime:
		s := string(v)
		w.DateTime = &s
	case TimeString:
		s := string(v)
		w.String = &s
	case TimeAge:
		w.Age = &v.Age
	case TimePeriod:
		w.Period = &v.Period
	case TimeRange:
		w.Range = &v.Range
	}
	return w
}

func joinClinicalTime(prefix string, w clinicalTimeWire) (ClinicalTime, error) {
	var found []ClinicalTime
	if w.DateTime != nil {
		found = append(found, TimeDateTime(*w.DateTime))
	}
	if w.Age != nil {
		found = append(found, TimeAge{*w.Age})
	}
	if w.Period != nil {
		found = append(found, TimePeriod{*w.Period})
	}
	if w.Range != nil {
		found = append(found, TimeRange{*w.Range})
	}
	if w.String != nil {
		found = append(found, TimeString(*w.String))
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("condition: only one %s[x] representation may be present, got %d", prefix, len(found))
	}
}

// Validate checks the fields the storage layer derives from.
func (c *Condition) Validate() error {
	is := issues{resourceType: ResourceCondition}
	is.checkType(c.ResourceType)
	is.checkSubject(c.Subject)
	if code := c.ClinicalStatus.FirstCode(); code != "" && !validClinicalStatuses[code] {
		is.addf("invalid clinicalStatus: %s", code)
	}
	if code := c.VerificationStatus.FirstCode(); code != "" && !validVerificationStatuses[code] {
		is.addf("invalid verificationStatus: %s", code)
	}
	if p, ok := c.Onset.(TimePeriod); ok {
		is.checkPeriod("onsetPeriod", &p.Period)
	}
	if p, ok := c.Abatement.(TimePeriod); ok {
		is.checkPeriod("abatementPeriod", &p.Period)
	}
	if dt, ok := c.Onset.(TimeDateTime); ok {
		is.checkDateTime("onsetDateTime", string(dt))
	}
	if dt, ok := c.Abatement.(TimeDateTime); ok {
		is.checkDateTime("abatementDateTime", string(dt))
	}
	return is.err()
}
