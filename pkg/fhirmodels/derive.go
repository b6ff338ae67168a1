package fhirmodels

import "time"

// UnknownCode is stored when a resource carries no usable code.
const UnknownCode = "unknown"

// PatientIDFromSubject returns the id part of a "Patient/<id>" reference, or
// "" when the reference is malformed.
func PatientIDFromSubject(subject Reference) string {
	_, id, err := ParseReference(subject.Reference)
	if err != nil {
		return ""
	}
	return id
}

// RepresentativeCode picks the single code a resource is indexed by: the
// first coding's code, else the concept text, else UnknownCode.
func RepresentativeCode(cc *CodeableConcept) string {
	if code := cc.FirstCode(); code != "" {
		return code
	}
	if cc != nil && cc.Text != "" {
		return cc.Text
	}
	return UnknownCode
}

// ResolveEffectiveDate tries dateTime, then period.start, then issued, and
// returns the first one that parses. Nil means no usable date.
func ResolveEffectiveDate(dateTime string, period *Period, issued string) *time.Time {
	candidates := []string{dateTime, "", issued}
	if period != nil {
		candidates[1] = period.Start
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := ParseDateTime(c); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func (o *Observation) EffectiveDate() *time.Time {
	return ResolveEffectiveDate(o.EffectiveDateTime, o.EffectivePeriod, o.Issued)
}

func (r *DiagnosticReport) EffectiveDate() *time.Time {
	return ResolveEffectiveDate(r.EffectiveDateTime, r.EffectivePeriod, r.Issued)
}

// OnsetDate is the condition's onset when given as a dateTime or period.
func (c *Condition) OnsetDate() *time.Time {
	switch t := c.Onset.(type) {
	case TimeDateTime:
		return ResolveEffectiveDate(string(t), nil, "")
	case TimePeriod:
		return ResolveEffectiveDate("", &t.Period, "")
	}
	return nil
}

func (m *MedicationRequest) AuthoredDate() *time.Time {
	return ResolveEffectiveDate(m.AuthoredOn, nil, "")
}

// FirstCategoryCode returns the first coded category, or "".
func FirstCategoryCode(categories []CodeableConcept) string {
	for i := range categories {
		if code := categories[i].FirstCode(); code != "" {
			return code
		}
	}
	return ""
}

// touch sets meta.lastUpdated, allocating Meta when needed.
func touch(meta **Meta, now time.Time) {
	if *meta == nil {
		*meta = &Meta{}
	}
	now = now.UTC()
	(*meta).LastUpdated = &now
}

func (c *Condition) Touch(now time.Time)         { touch(&c.Meta, now) }
func (o *Observation) Touch(now time.Time)       { touch(&o.Meta, now) }
func (r *DiagnosticReport) Touch(now time.Time)  { touch(&r.Meta, now) }
func (m *MedicationRequest) Touch(now time.Time) { touch(&m.Meta, now) }
