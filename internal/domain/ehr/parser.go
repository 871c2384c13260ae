package ehr

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samply/golang-fhir-models/fhir-models/fhir"

	"github.com/luvo/luvo/pkg/fhirmodels"
)

const maxLineBytes = 8 << 20

// ParseResult is a Record plus line accounting.
type ParseResult struct {
	Record  *Record
	Lines   int
	Skipped int
}

// Parse reads newline-delimited FHIR resources. Each line is either a bare
// resource or a {"resource": {...}} wrapper. Observations with a known LOINC
// code and active Conditions are collected; malformed lines are logged and
// skipped. Vitals and labs come back newest first.
func Parse(r io.Reader, logger zerolog.Logger) (*ParseResult, error) {
	res := &ParseResult{Record: newRecord()}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		res.Lines++
		if err := res.Record.add(line); err != nil {
			res.Skipped++
			logger.Warn().Err(err).Int("line", res.Lines).Msg("skipping malformed FHIR line")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read FHIR export: %w", err)
	}

	sortByDateDesc(res.Record.Vitals)
	sortByDateDesc(res.Record.LabResults)
	return res, nil
}

type envelope struct {
	ResourceType string          `json:"resourceType"`
	Resource     json.RawMessage `json:"resource"`
}

func (rec *Record) add(line []byte) error {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return fmt.Errorf("decode line: %w", err)
	}

	raw := json.RawMessage(line)
	if len(env.Resource) > 0 && string(env.Resource) != "null" {
		raw = env.Resource
		env = envelope{}
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode wrapped resource: %w", err)
		}
	}

	switch env.ResourceType {
	case fhirmodels.ResourceObservation:
		obs, err := decodeObservation(raw)
		if err != nil {
			return fmt.Errorf("decode Observation: %w", err)
		}
		if e, ok := observationEntry(obs); ok {
			if fhirmodels.Category(e.Type) == fhirmodels.ObsCategoryLaboratory {
				rec.LabResults = append(rec.LabResults, e)
			} else {
				rec.Vitals = append(rec.Vitals, e)
			}
		}
	case fhirmodels.ResourceCondition:
		cond, err := decodeCondition(raw)
		if err != nil {
			return fmt.Errorf("decode Condition: %w", err)
		}
		if c, ok := activeCondition(cond); ok {
			rec.Conditions = append(rec.Conditions, c)
		}
	}
	return nil
}

// Exports from real systems carry codes outside the R4 value sets (a status
// of "FINAL", say) that the typed model refuses. The loose forms keep only
// the fields a Record reads so those lines still map.

type looseQuantity struct {
	Value *json.Number `json:"value"`
	Unit  *string      `json:"unit"`
}

type looseObservation struct {
	Code              fhir.CodeableConcept `json:"code"`
	EffectiveDateTime *string              `json:"effectiveDateTime"`
	ValueQuantity     *looseQuantity       `json:"valueQuantity"`
	ValueString       *string              `json:"valueString"`
}

type looseCondition struct {
	ClinicalStatus *fhir.CodeableConcept `json:"clinicalStatus"`
	Code           *fhir.CodeableConcept `json:"code"`
	OnsetDateTime  *string               `json:"onsetDateTime"`
}

func decodeObservation(raw []byte) (fhir.Observation, error) {
	obs, err := fhir.UnmarshalObservation(raw)
	if err == nil {
		return obs, nil
	}
	var loose looseObservation
	if json.Unmarshal(raw, &loose) != nil {
		return fhir.Observation{}, err
	}
	obs = fhir.Observation{
		Code:              loose.Code,
		EffectiveDateTime: loose.EffectiveDateTime,
		ValueString:       loose.ValueString,
	}
	if q := loose.ValueQuantity; q != nil {
		obs.ValueQuantity = &fhir.Quantity{Value: q.Value, Unit: q.Unit}
	}
	return obs, nil
}

func decodeCondition(raw []byte) (fhir.Condition, error) {
	cond, err := fhir.UnmarshalCondition(raw)
	if err == nil {
		return cond, nil
	}
	var loose looseCondition
	if json.Unmarshal(raw, &loose) != nil {
		return fhir.Condition{}, err
	}
	return fhir.Condition{
		ClinicalStatus: loose.ClinicalStatus,
		Code:           loose.Code,
		OnsetDateTime:  loose.OnsetDateTime,
	}, nil
}

func observationEntry(obs fhir.Observation) (Entry, bool) {
	var code string
	for _, c := range obs.Code.Coding {
		if c.System != nil && strings.Contains(*c.System, fhirmodels.LOINCSystem) && c.Code != nil {
			code = *c.Code
			break
		}
	}
	typ, ok := fhirmodels.LookupLOINC(code)
	if !ok {
		return Entry{}, false
	}

	e := Entry{Type: typ, RawDisplay: display(obs.Code)}
	if obs.EffectiveDateTime != nil {
		e.Date = *obs.EffectiveDateTime
	}
	if q := obs.ValueQuantity; q != nil {
		if q.Value != nil {
			if v, err := q.Value.Float64(); err == nil {
				e.Value = &v
			}
		}
		if q.Unit != nil {
			e.Unit = *q.Unit
		}
	} else if obs.ValueString != nil {
		e.Text = *obs.ValueString
	}
	return e, true
}

func display(cc fhir.CodeableConcept) string {
	if cc.Text != nil && *cc.Text != "" {
		return *cc.Text
	}
	if len(cc.Coding) > 0 && cc.Coding[0].Display != nil {
		return *cc.Coding[0].Display
	}
	return ""
}

func activeCondition(c fhir.Condition) (Condition, bool) {
	cs := c.ClinicalStatus
	if cs == nil || len(cs.Coding) == 0 || cs.Coding[0].Code == nil || *cs.Coding[0].Code != fhirmodels.ConditionActive {
		return Condition{}, false
	}
	var out Condition
	if c.Code != nil && c.Code.Text != nil {
		out.Name = *c.Code.Text
	}
	if c.OnsetDateTime != nil {
		out.Date = *c.OnsetDateTime
	}
	return out, true
}

// FHIR dateTime allows reduced precision.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortByDateDesc orders entries newest first. Entries without a parseable
// date sink to the end in input order.
func sortByDateDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, okI := parseDate(entries[i].Date)
		tj, okJ := parseDate(entries[j].Date)
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
}
