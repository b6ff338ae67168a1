package fhirmodels

import (
	"strconv"
	"strings"
)

const (
	NoValue     = "No value"
	UnknownDate = "Unknown date"
	Unknown     = "Unknown"
)

// FormatObservationValue renders an observation's value for display. Scalar
// values take precedence; a composite observation renders its components
// joined by " / ".
func FormatObservationValue(obs *Observation) string {
	if obs == nil {
		return NoValue
	}
	if s := formatValue(obs.Value); s != "" {
		return s
	}
	if len(obs.Component) == 0 {
		return NoValue
	}
	parts := make([]string, 0, len(obs.Component))
	for _, c := range obs.Component {
		s := formatValue(c.Value)
		if s == "" {
			s = NoValue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " / ")
}

func formatValue(v ObservationValue) string {
	switch t := v.(type) {
	case QuantityValue:
		return formatQuantity(t.Quantity)
	case StringValue:
		return string(t)
	case BooleanValue:
		if t {
			return "Yes"
		}
		return "No"
	case IntegerValue:
		return strconv.Itoa(int(t))
	case DateTimeValue:
		return formatDate(string(t))
	case CodeableConceptValue:
		return t.CodeableConcept.Label()
	}
	return ""
}

func formatQuantity(q Quantity) string {
	if q.Value == nil {
		return ""
	}
	s := q.Comparator + strconv.FormatFloat(*q.Value, 'f', -1, 64)
	unit := q.Unit
	if unit == "" {
		unit = q.Code
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

// formatDate renders a parseable date or dateTime in a readable form and
// leaves partial or malformed values untouched.
func formatDate(raw string) string {
	t, err := ParseDateTime(raw)
	if err != nil {
		return raw
	}
	switch {
	case len(raw) > len("2006-01-02"):
		return t.Format("Jan 2, 2006 15:04")
	case len(raw) == len("2006-01-02"):
		return t.Format("Jan 2, 2006")
	default:
		return raw
	}
}

var abnormalInterpretations = map[string]bool{
	"A": true, "AA": true, "H": true, "HH": true, "L": true, "LL": true,
}

// IsAbnormalObservation reports whether an observation is flagged abnormal by
// its interpretation, or whether its value or any component value falls
// outside the first reference range given for it.
func IsAbnormalObservation(obs *Observation) bool {
	if obs == nil {
		return false
	}
	for _, in := range obs.Interpretation {
		for _, c := range in.Coding {
			if abnormalInterpretations[c.Code] {
				return true
			}
		}
	}
	if outOfRange(obs.Value, obs.ReferenceRange) {
		return true
	}
	for _, c := range obs.Component {
		if outOfRange(c.Value, c.ReferenceRange) {
			return true
		}
	}
	return false
}

func outOfRange(v ObservationValue, ranges []ReferenceRange) bool {
	q, ok := v.(QuantityValue)
	if !ok || q.Value == nil || len(ranges) == 0 {
		return false
	}
	return !ranges[0].Range().Contains(*q.Value)
}

var clinicalStatusLabels = map[string]string{
	ConditionActive:     "Active",
	ConditionRecurrence: "Recurrence",
	ConditionRelapse:    "Relapse",
	ConditionInactive:   "Inactive",
	ConditionRemission:  "Remission",
	ConditionResolved:   "Resolved",
}

var verificationStatusLabels = map[string]string{
	VerificationUnconfirmed:    "Unconfirmed",
	VerificationProvisional:    "Provisional",
	VerificationDifferential:   "Differential",
	VerificationConfirmed:      "Confirmed",
	VerificationRefuted:        "Refuted",
	VerificationEnteredInError: "Entered in Error",
}

// ConditionStatusDisplay renders clinical and verification status, e.g.
// "Active (Confirmed)".
func ConditionStatusDisplay(cond *Condition) string {
	if cond == nil {
		return Unknown
	}
	clinical := conceptLabel(cond.ClinicalStatus, clinicalStatusLabels)
	verification := conceptLabel(cond.VerificationStatus, verificationStatusLabels)
	if clinical == "" && verification == "" {
		return Unknown
	}
	if clinical == "" {
		clinical = Unknown
	}
	if verification == "" {
		return clinical
	}
	return clinical + " (" + verification + ")"
}

func conceptLabel(cc *CodeableConcept, labels map[string]string) string {
	if code := cc.FirstCode(); code != "" {
		if l, ok := labels[code]; ok {
			return l
		}
		return capitalize(code)
	}
	if cc != nil && cc.Text != "" {
		return cc.Text
	}
	return ""
}

func capitalize(code string) string {
	s := strings.ReplaceAll(code, "-", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ReportDate resolves the date a report applies to for display.
func ReportDate(r *DiagnosticReport) string {
	if r == nil {
		return UnknownDate
	}
	return displayDate(r.EffectiveDateTime, r.EffectivePeriod, r.Issued)
}

// ObservationDate resolves the date an observation applies to for display.
func ObservationDate(o *Observation) string {
	if o == nil {
		return UnknownDate
	}
	return displayDate(o.EffectiveDateTime, o.EffectivePeriod, o.Issued)
}

func displayDate(dateTime string, period *Period, issued string) string {
	if raw := firstDate(dateTime, period, issued); raw != "" {
		return formatDate(raw)
	}
	return UnknownDate
}

// firstDate picks effectiveDateTime, then effectivePeriod.start, then issued.
func firstDate(dateTime string, period *Period, issued string) string {
	switch {
	case dateTime != "":
		return dateTime
	case period != nil && period.Start != "":
		return period.Start
	default:
		return issued
	}
}

var reportStatusLabels = map[string]string{
	StatusRegistered:     "Registered",
	StatusPartial:        "Partial",
	StatusPreliminary:    "Preliminary",
	StatusFinal:          "Final",
	StatusAmended:        "Amended",
	StatusCorrected:      "Corrected",
	StatusAppended:       "Appended",
	StatusCancelled:      "Cancelled",
	StatusEnteredInError: "Entered in Error",
	StatusUnknown:        "Unknown",
}

func DiagnosticReportStatusDisplay(status string) string {
	if l, ok := reportStatusLabels[status]; ok {
		return l
	}
	return Unknown
}

var medRequestStatusLabels = map[string]string{
	MedRequestActive:         "Active",
	MedRequestOnHold:         "On Hold",
	MedRequestCancelled:      "Cancelled",
	MedRequestCompleted:      "Completed",
	MedRequestEnteredInError: "Entered in Error",
	MedRequestStopped:        "Stopped",
	MedRequestDraft:          "Draft",
	MedRequestUnknown:        "Unknown",
}

func MedicationRequestStatusDisplay(status string) string {
	if l, ok := medRequestStatusLabels[status]; ok {
		return l
	}
	return Unknown
}
