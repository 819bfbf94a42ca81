package types

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseReviewStatus(t *testing.T) {
	for _, s := range []string{"DRAFT", "APPROVED", "REJECTED"} {
		got, err := ParseReviewStatus(s)
		if err != nil {
			t.Errorf("ParseReviewStatus(%q) error = %v, want nil", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseReviewStatus(%q) = %q", s, got)
		}
	}
	for _, s := range []string{"", "draft", "PENDING"} {
		if _, err := ParseReviewStatus(s); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("ParseReviewStatus(%q) error = %v, want ErrInvalidStatus", s, err)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ReviewStatus
		want     bool
	}{
		{ReviewDraft, ReviewApproved, true},
		{ReviewDraft, ReviewRejected, true},
		{ReviewDraft, ReviewDraft, false},
		{ReviewApproved, ReviewRejected, false},
		{ReviewApproved, ReviewDraft, false},
		{ReviewRejected, ReviewApproved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRule_UnmarshalRequiredDefault(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{name: "absent defaults to true", json: `{"id":"R-1","conditions":[]}`, want: true},
		{name: "explicit false", json: `{"id":"R-1","required":false}`, want: false},
		{name: "explicit true", json: `{"id":"R-1","required":true}`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Rule
			if err := json.Unmarshal([]byte(tt.json), &r); err != nil {
				t.Fatalf("Unmarshal() error = %v, want nil", err)
			}
			if r.ID != "R-1" {
				t.Errorf("ID = %q, want R-1", r.ID)
			}
			if r.Required != tt.want {
				t.Errorf("Required = %v, want %v", r.Required, tt.want)
			}
		})
	}
}

func TestRule_ParentPolicyIDNullable(t *testing.T) {
	data, err := json.Marshal(Rule{ID: "R-1", Required: true})
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}
	if !strings.Contains(string(data), `"parent_policy_id":null`) {
		t.Errorf("Marshal() = %s, want null parent_policy_id", data)
	}

	r := Rule{ID: "R-1"}.WithPolicyID("P1")
	if r.PolicyID() != "P1" {
		t.Errorf("PolicyID() = %q, want P1", r.PolicyID())
	}
	if (Rule{}).PolicyID() != "" {
		t.Error("PolicyID() on unbound rule is not empty")
	}
}

func TestCandidateRule_ToRuleCopies(t *testing.T) {
	c := CandidateRule{
		ID:     NewCandidateID(),
		Status: ReviewApproved,
		RuleData: Rule{
			ID:         "R-1",
			Conditions: []RuleCondition{{Parameter: "age", Operator: "gte", Value: 18.0}},
			Required:   true,
		}.WithPolicyID("P1"),
	}

	r := c.ToRule()
	c.RuleData.Conditions[0].Value = 99.0
	*c.RuleData.ParentPolicyID = "P2"

	if r.Conditions[0].Value != 18.0 {
		t.Errorf("ToRule() conditions alias the candidate: got %v", r.Conditions[0].Value)
	}
	if r.PolicyID() != "P1" {
		t.Errorf("ToRule() policy aliases the candidate: got %q", r.PolicyID())
	}
}

func TestNormalizePatient(t *testing.T) {
	raw := map[string]any{
		"age":              float64(54),
		"diagnosis_codes":  []any{" m17.11 ", "E11.9"},
		"procedure_codes":  []any{"27447"},
		"prior_treatments": []any{" Physical Therapy"},
		"imaging":          []any{"X-ray shows joint space narrowing"},
	}

	got := NormalizePatient(raw)
	want := PatientContext{
		Age:             54,
		Gender:          "UNKNOWN",
		DiagnosisCodes:  []string{"M17.11", "E11.9"},
		ProcedureCodes:  []string{"27447"},
		PriorTreatments: []string{"physical therapy"},
		ImagingReports:  []string{"X-ray shows joint space narrowing"},
		Medications:     []string{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizePatient() = %+v, want %+v", got, want)
	}
}

func TestPatientContext_FactsHasEveryField(t *testing.T) {
	facts := PatientContext{Age: 40}.Facts()
	for _, key := range []string{"age", "gender", "diagnosis_codes", "procedure_codes", "prior_treatments", "imaging_reports", "medications"} {
		if _, ok := facts[key]; !ok {
			t.Errorf("Facts() missing %q", key)
		}
	}
	if codes, ok := facts["diagnosis_codes"].([]string); !ok || codes == nil {
		t.Errorf("Facts()[diagnosis_codes] = %#v, want empty non-nil list", facts["diagnosis_codes"])
	}
}

func TestCandidateIDs(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewCandidateID()
	if _, err := ParseCandidateID(id); err != nil {
		t.Fatalf("ParseCandidateID(%q) error = %v, want nil", id, err)
	}
	if ts := CandidateIDTime(id); ts.Before(before) {
		t.Errorf("CandidateIDTime() = %v, want after %v", ts, before)
	}
	if _, err := ParseCandidateID("not-a-uuid"); err == nil {
		t.Error("ParseCandidateID(not-a-uuid) error = nil, want error")
	}
	if !CandidateIDTime("bad").IsZero() {
		t.Error("CandidateIDTime(bad) is not zero")
	}

	const v4 = "3b241101-e2bb-4255-8caf-4136c566a962"
	if _, err := ParseCandidateID(v4); err != nil {
		t.Errorf("ParseCandidateID(%q) error = %v, want nil", v4, err)
	}
	if ts := CandidateIDTime(v4); !ts.IsZero() {
		t.Errorf("CandidateIDTime(v4) = %v, want zero time", ts)
	}

	ruleID := NewRuleID()
	if !strings.HasPrefix(ruleID, "R-") || len(ruleID) != 10 {
		t.Errorf("NewRuleID() = %q, want R-<8 hex>", ruleID)
	}
}
