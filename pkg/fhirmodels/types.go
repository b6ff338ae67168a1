package fhirmodels

// Common FHIR value set constants used across the application.

// Resource type discriminants.
const (
	ResourceCondition         = "Condition"
	ResourceObservation       = "Observation"
	ResourceDiagnosticReport  = "DiagnosticReport"
	ResourceMedicationRequest = "MedicationRequest"
	ResourceAuditEvent        = "AuditEvent"
	ResourcePatient           = "Patient"
)

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns    = "vital-signs"
	ObsCategoryLaboratory    = "laboratory"
	ObsCategoryImaging       = "imaging"
	ObsCategorySocialHistory = "social-history"
	ObsCategorySurvey        = "survey"
	ObsCategoryExam          = "exam"
	ObsCategoryProcedure     = "procedure"
	ObsCategoryActivity      = "activity"
	ObsCategoryTherapy       = "therapy"
)

// ConditionClinicalStatus codes.
const (
	ConditionActive     = "active"
	ConditionRecurrence = "recurrence"
	ConditionRelapse    = "relapse"
	ConditionInactive   = "inactive"
	ConditionRemission  = "remission"
	ConditionResolved   = "resolved"
)

// ConditionVerificationStatus codes.
const (
	VerificationUnconfirmed    = "unconfirmed"
	VerificationProvisional    = "provisional"
	VerificationDifferential   = "differential"
	VerificationConfirmed      = "confirmed"
	VerificationRefuted        = "refuted"
	VerificationEnteredInError = "entered-in-error"
)

// ObservationStatus codes; DiagnosticReport shares most of them.
const (
	StatusRegistered     = "registered"
	StatusPartial        = "partial"
	StatusPreliminary    = "preliminary"
	StatusFinal          = "final"
	StatusAmended        = "amended"
	StatusCorrected      = "corrected"
	StatusAppended       = "appended"
	StatusCancelled      = "cancelled"
	StatusEnteredInError = "entered-in-error"
	StatusUnknown        = "unknown"
)

// MedicationRequest status codes.
const (
	MedRequestActive         = "active"
	MedRequestOnHold         = "on-hold"
	MedRequestCancelled      = "cancelled"
	MedRequestCompleted      = "completed"
	MedRequestEnteredInError = "entered-in-error"
	MedRequestStopped        = "stopped"
	MedRequestDraft          = "draft"
	MedRequestUnknown        = "unknown"
)

// MedicationRequest intent codes.
const (
	IntentProposal      = "proposal"
	IntentPlan          = "plan"
	IntentOrder         = "order"
	IntentOriginalOrder = "original-order"
	IntentReflexOrder   = "reflex-order"
	IntentFillerOrder   = "filler-order"
	IntentInstanceOrder = "instance-order"
	IntentOption        = "option"
)

// Code systems.
const (
	SystemConditionClinical     = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionVerification = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	SystemObservationCategory   = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemInterpretation        = "http://terminology.hl7.org/CodeSystem/v3-ObservationInterpretation"
	SystemAuditEventType        = "http://terminology.hl7.org/CodeSystem/audit-event-type"
	SystemRestfulInteraction    = "http://hl7.org/fhir/restful-interaction"
	SystemLOINC                 = "http://loinc.org"
	SystemUCUM                  = "http://unitsofmeasure.org"
)

var validClinicalStatuses = map[string]bool{
	ConditionActive: true, ConditionRecurrence: true, ConditionRelapse: true,
	ConditionInactive: true, ConditionRemission: true, ConditionResolved: true,
}

var validVerificationStatuses = map[string]bool{
	VerificationUnconfirmed: true, VerificationProvisional: true, VerificationDifferential: true,
	VerificationConfirmed: true, VerificationRefuted: true, VerificationEnteredInError: true,
}

var validObservationStatuses = map[string]bool{
	StatusRegistered: true, StatusPreliminary: true, StatusFinal: true, StatusAmended: true,
	StatusCorrected: true, StatusCancelled: true, StatusEnteredInError: true, StatusUnknown: true,
}

var validReportStatuses = map[string]bool{
	StatusRegistered: true, StatusPartial: true, StatusPreliminary: true, StatusFinal: true,
	StatusAmended: true, StatusCorrected: true, StatusAppended: true, StatusCancelled: true,
	StatusEnteredInError: true, StatusUnknown: true,
}

var validMedRequestStatuses = map[string]bool{
	MedRequestActive: true, MedRequestOnHold: true, MedRequestCancelled: true,
	MedRequestCompleted: true, MedRequestEnteredInError: true, MedRequestStopped: true,
	MedRequestDraft: true, MedRequestUnknown: true,
}

var validIntents = map[string]bool{
	IntentProposal: true, IntentPlan: true, IntentOrder: true, IntentOriginalOrder: true,
	IntentReflexOrder: true, IntentFillerOrder: true, IntentInstanceOrder: true, IntentOption: true,
}
