package fhirmodels

// FHIR value set constants and the LOINC lookup table used by the EHR parser.

// Resource types read from exports.
const (
	ResourceObservation = "Observation"
	ResourceCondition   = "Condition"
)

// LOINCSystem is matched as a substring of Coding.system, which tolerates
// both http and https forms.
const LOINCSystem = "loinc.org"

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns = "vital-signs"
	ObsCategoryLaboratory = "laboratory"
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

// Normalized observation names.
const (
	ObsWeight           = "Weight"
	ObsBloodPressure    = "Blood Pressure"
	ObsHeartRate        = "Heart Rate"
	ObsHbA1c            = "HbA1c"
	ObsHDL              = "HDL Cholesterol"
	ObsLDL              = "LDL Cholesterol"
	ObsTotalCholesterol = "Total Cholesterol"
	ObsTriglycerides    = "Triglycerides"
	ObsGlucose          = "Glucose"
)

// LOINCTypes maps LOINC codes to normalized observation names.
var LOINCTypes = map[string]string{
	"29463-7": ObsWeight,
	"3141-9":  ObsWeight,
	"85354-9": ObsBloodPressure,
	"55284-4": ObsBloodPressure,
	"8867-4":  ObsHeartRate,
	"4548-4":  ObsHbA1c,
	"17856-6": ObsHbA1c,
	"2085-9":  ObsHDL,
	"13457-7": ObsLDL,
	"2089-1":  ObsLDL,
	"2093-3":  ObsTotalCholesterol,
	"2571-8":  ObsTriglycerides,
	"2345-7":  ObsGlucose,
	"2339-0":  ObsGlucose,
}

var labTypes = map[string]bool{
	ObsHbA1c:            true,
	ObsLDL:              true,
	ObsHDL:              true,
	ObsTotalCholesterol: true,
	ObsTriglycerides:    true,
	ObsGlucose:          true,
}

// LookupLOINC returns the normalized name for a LOINC code.
func LookupLOINC(code string) (string, bool) {
	t, ok := LOINCTypes[code]
	return t, ok
}

// Category returns ObsCategoryLaboratory for lab panels and
// ObsCategoryVitalSigns for everything else.
func Category(obsType string) string {
	if labTypes[obsType] {
		return ObsCategoryLaboratory
	}
	return ObsCategoryVitalSigns
}
