package types

import (
	"fmt"
	"strings"
)

// PatientContext is the normalized fact bag consumed by evaluation.
// Conditions address facts by JSON field name, so the tags below are part of
// the rule authoring contract.
type PatientContext struct {
	Age             int      `json:"age"`
	Gender          string   `json:"gender"`
	DiagnosisCodes  []string `json:"diagnosis_codes"`
	ProcedureCodes  []string `json:"procedure_codes"`
	PriorTreatments []string `json:"prior_treatments"`
	ImagingReports  []string `json:"imaging_reports"`
	Medications     []string `json:"medications"`
}

// Facts returns the fact bag keyed by field name.
// Every field is present; an empty list is a known fact, not missing data.
func (p PatientContext) Facts() map[string]any {
	return map[string]any{
		"age":              p.Age,
		"gender":           p.Gender,
		"diagnosis_codes":  nonNil(p.DiagnosisCodes),
		"procedure_codes":  nonNil(p.ProcedureCodes),
		"prior_treatments": nonNil(p.PriorTreatments),
		"imaging_reports":  nonNil(p.ImagingReports),
		"medications":      nonNil(p.Medications),
	}
}

// NormalizePatient maps raw intake data onto PatientContext.
// Codes are trimmed and upper-cased, treatments trimmed and lower-cased.
// Raw key "imaging" feeds ImagingReports.
func NormalizePatient(raw map[string]any) PatientContext {
	p := PatientContext{
		Age:    0,
		Gender: "UNKNOWN",
	}
	if age, ok := raw["age"]; ok {
		p.Age = toInt(age)
	}
	if gender, ok := raw["gender"].(string); ok {
		p.Gender = gender
	}
	p.DiagnosisCodes = mapStrings(raw["diagnosis_codes"], func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
	p.ProcedureCodes = mapStrings(raw["procedure_codes"], func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
	p.PriorTreatments = mapStrings(raw["prior_treatments"], func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	p.ImagingReports = mapStrings(raw["imaging"], nil)
	p.Medications = mapStrings(raw["medications"], nil)
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// mapStrings converts a decoded JSON list into []string, applying fn to each
// element. Non-string elements use their default text form.
func mapStrings(v any, fn func(string) string) []string {
	out := []string{}
	var items []any
	switch l := v.(type) {
	case []any:
		items = l
	case []string:
		for _, s := range l {
			items = append(items, s)
		}
	default:
		return out
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			s = fmt.Sprint(item)
		}
		if fn != nil {
			s = fn(s)
		}
		out = append(out, s)
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
