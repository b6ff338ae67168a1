package fhirmodels

import (
	"encoding/json"
)

// ObservationValue is the value[x] choice of an Observation or one of its
// components. Exactly one variant is held at a time.
type ObservationValue interface {
	isObservationValue()
}

type QuantityValue struct{ Quantity }
type StringValue string
type BooleanValue bool
type IntegerValue int
type DateTimeValue string
type CodeableConceptValue struct{ CodeableConcept }

func (QuantityValue) isObservationValue()        {}
func (StringValue) isObservationValue()          {}
func (BooleanValue) isObservationValue()         {}
func (IntegerValue) isObservationValue()         {}
func (DateTimeValue) isObservationValue()        {}
func (CodeableConceptValue) isObservationValue() {}

// ReferenceRange gives the bounds a value is normally expected to fall in.
type ReferenceRange struct {
	Low       *Quantity         `json:"low,omitempty"`
	High      *Quantity         `json:"high,omitempty"`
	Type      *CodeableConcept  `json:"type,omitempty"`
	AppliesTo []CodeableConcept `json:"appliesTo,omitempty"`
	Age       *Range            `json:"age,omitempty"`
	Text      string            `json:"text,omitempty"`
}

// Range returns the low/high bounds as a Range.
func (rr ReferenceRange) Range() *Range {
	return &Range{Low: rr.Low, High: rr.High}
}

// ObservationComponent is one part of a composite observation such as the
// systolic half of a blood pressure reading.
type ObservationComponent struct {
	Code             *CodeableConcept  `json:"code,omitempty"`
	Value            ObservationValue  `json:"-"`
	DataAbsentReason *CodeableConcept  `json:"dataAbsentReason,omitempty"`
	Interpretation   []CodeableConcept `json:"interpretation,omitempty"`
	ReferenceRange   []ReferenceRange  `json:"referenceRange,omitempty"`
}

// Observation is a measurement or simple assertion about a patient.
type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id,omitempty"`
	Meta              *Meta                  `json:"meta,omitempty"`
	Identifier        []Identifier           `json:"identifier,omitempty"`
	Status            string                 `json:"status"`
	Category          []CodeableConcept      `json:"category,omitempty"`
	Code              *CodeableConcept       `json:"code,omitempty"`
	Subject           Reference              `json:"subject"`
	Encounter         *Reference             `json:"encounter,omitempty"`
	EffectiveDateTime string                 `json:"effectiveDateTime,omitempty"`
	EffectivePeriod   *Period                `json:"effectivePeriod,omitempty"`
	Issued            string                 `json:"issued,omitempty"`
	Performer         []Reference            `json:"performer,omitempty"`
	Value             ObservationValue       `json:"-"`
	DataAbsentReason  *CodeableConcept       `json:"dataAbsentReason,omitempty"`
	Interpretation    []CodeableConcept      `json:"interpretation,omitempty"`
	Note              []Annotation           `json:"note,omitempty"`
	BodySite          *CodeableConcept       `json:"bodySite,omitempty"`
	ReferenceRange    []ReferenceRange       `json:"referenceRange,omitempty"`
	Component         []ObservationComponent `json:"component,omitempty"`
}

// NewObservation returns an Observation with its discriminant set.
func NewObservation() *Observation {
	return &Observation{ResourceType: ResourceObservation}
}

// valueWire carries the six value[x] wire fields shared by observations and
// their components.
type valueWire struct {
	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueString          *string          `json:"valueString,omitempty"`
	ValueBoolean         *bool            `json:"valueBoolean,omitempty"`
	ValueInteger         *int             `json:"valueInteger,omitempty"`
	ValueDateTime        *string          `json:"valueDateTime,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
}

// value picks the populated field in priority order quantity, string,
// boolean, integer, dateTime, codeableConcept; later fields are ignored.
func (w valueWire) value() ObservationValue {
	switch {
	case w.ValueQuantity != nil:
		return QuantityValue{*w.ValueQuantity}
	case w.ValueString != nil:
		return StringValue(*w.ValueString)
	case w.ValueBoolean != nil:
		return BooleanValue(*w.ValueBoolean)
	case w.ValueInteger != nil:
		return IntegerValue(*w.ValueInteger)
	case w.ValueDateTime != nil:
		return DateTimeValue(*w.ValueDateTime)
	case w.ValueCodeableConcept != nil:
		return CodeableConceptValue{*w.ValueCodeableConcept}
	}
	return nil
}

func splitValue(v ObservationValue) valueWire {
	var w valueWire
	switch t := v.(type) {
	case QuantityValue:
		w.ValueQuantity = &t.Quantity
	case StringValue:
		s := string(t)
		w.ValueString = &s
	case BooleanValue:
		b := bool(t)
		w.ValueBoolean = &b
	case IntegerValue:
		i := int(t)
		w.ValueInteger = &i
	case DateTimeValue:
		s := string(t)
		w.ValueDateTime = &s
	case CodeableConceptValue:
		w.ValueCodeableConcept = &t.CodeableConcept
	}
	return w
}

type observationAlias Observation

type observationWire struct {
	observationAlias
	valueWire
}

func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(observationWire{observationAlias: observationAlias(o), valueWire: splitValue(o.Value)})
}

func (o *Observation) UnmarshalJSON(data []byte) error {
	var w observationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Observation(w.observationAlias)
	o.Value = w.valueWire.value()
	return nil
}

type componentAlias ObservationComponent

type componentWire struct {
	componentAlias
	valueWire
}

func (c ObservationComponent) MarshalJSON() ([]byte, error) {
	return json.Marshal(componentWire{componentAlias: componentAlias(c), valueWire: splitValue(c.Value)})
}

func (c *ObservationComponent) UnmarshalJSON(data []byte) error {
	var w componentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = ObservationComponent(w.componentAlias)
	c.Value = w.valueWire.value()
	return nil
}

// Validate checks the fields the storage layer derives from.
func (o *Observation) Validate() error {
	is := issues{resourceType: ResourceObservation}
	is.checkType(o.ResourceType)
	is.checkSubject(o.Subject)
	if o.Status == "" {
		is.addf("status is required")
	} else if !validObservationStatuses[o.Status] {
		is.addf("invalid status: %s", o.Status)
	}
	if o.Code.IsEmpty() {
		is.addf("code is required")
	}
	is.checkDateTime("effectiveDateTime", o.EffectiveDateTime)
	is.checkPeriod("effectivePeriod", o.EffectivePeriod)
	is.checkDateTime("issued", o.Issued)
	if o.Value != nil && len(o.Component) > 0 {
		is.addf("value[x] and component are mutually exclusive")
	}
	for i, c := range o.Component {
		if c.Code.IsEmpty() {
			is.addf("component[%d].code is required", i)
		}
	}
	return is.err()
}
