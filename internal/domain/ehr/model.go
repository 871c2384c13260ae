package ehr

// Entry is one categorized Observation.
type Entry struct {
	Type       string   `json:"type"`
	Date       string   `json:"date"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit"`
	Text       string   `json:"text,omitempty"`
	RawDisplay string   `json:"rawDisplay"`
}

// Condition is an active diagnosis.
type Condition struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

type Medication struct {
	Name string `json:"name"`
}

// Record is the payload served by GET /api/ehr/parse.
type Record struct {
	Vitals      []Entry      `json:"vitals"`
	LabResults  []Entry      `json:"labResults"`
	Conditions  []Condition  `json:"conditions"`
	Medications []Medication `json:"medications"`
}

func newRecord() *Record {
	return &Record{
		Vitals:      []Entry{},
		LabResults:  []Entry{},
		Conditions:  []Condition{},
		Medications: []Medication{},
	}
}
