// internal/rules/evaluate_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/priorauth/internal/types"
)

func testFacts() map[string]any {
	return types.PatientContext{
		Age:            17,
		Gender:         "M",
		DiagnosisCodes: []string{"M17.11"},
		ProcedureCodes: []string{"27447"},
	}.Facts()
}

func cond(parameter, operator string, value any) types.RuleCondition {
	return types.RuleCondition{Parameter: parameter, Operator: operator, Value: value}
}

// Conditions with a known verdict against testFacts().
var (
	passCond = cond("gender", "equals", "M")
	failCond = cond("age", "gte", 18)
	pendCond = cond("diagnosis_code", "contains", "M17.11")
)

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name    string
		cond    types.RuleCondition
		want    types.Status
		wantErr error
	}{
		{name: "gte below boundary", cond: cond("age", "gte", 18), want: types.StatusFail},
		{name: "gte on boundary", cond: cond("age", "gte", 17), want: types.StatusPass},
		{name: "lte", cond: cond("age", "lte", 17.0), want: types.StatusPass},
		{name: "missing parameter", cond: cond("diagnosis_code", "contains", "M17.11"), want: types.StatusPend},
		{name: "contains in sequence", cond: cond("diagnosis_codes", "contains", "M17.11"), want: types.StatusPass},
		{name: "contains missing element", cond: cond("diagnosis_codes", "contains", "M99.99"), want: types.StatusFail},
		{name: "manual review parameter", cond: cond("manual_review", "equals", true), want: types.StatusPend},
		{name: "manual review parameter ignores operator", cond: cond("manual_review", "bogus", nil), want: types.StatusPend},
		{name: "manual review operator", cond: cond("diagnosis_codes", "manual_review", "TBD"), want: types.StatusPend},
		{name: "unknown operator", cond: cond("age", "between", []any{1, 2}), want: types.StatusPend, wantErr: types.ErrUnknownOperator},
		{name: "type mismatch fails closed", cond: cond("age", "gte", "eighteen"), want: types.StatusFail, wantErr: types.ErrComparison},
		{name: "one_of", cond: cond("gender", "one_of", []any{"F", "M"}), want: types.StatusPass},
		{name: "empty list is present", cond: cond("medications", "contains", "ibuprofen"), want: types.StatusFail},
	}

	facts := testFacts()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateCondition(tt.cond, facts)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("EvaluateCondition() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("EvaluateCondition() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("EvaluateCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateCondition_AgeBoundary(t *testing.T) {
	c := cond("age", "gte", 18)
	for age, want := range map[int]types.Status{17: types.StatusFail, 18: types.StatusPass} {
		facts := types.PatientContext{Age: age}.Facts()
		if got, _ := EvaluateCondition(c, facts); got != want {
			t.Errorf("age=%d: EvaluateCondition() = %v, want %v", age, got, want)
		}
	}
}

func TestEvaluateRule(t *testing.T) {
	tests := []struct {
		name       string
		conditions []types.RuleCondition
		want       types.Status
	}{
		{name: "empty is vacuously PASS", conditions: nil, want: types.StatusPass},
		{name: "all pass", conditions: []types.RuleCondition{passCond, passCond}, want: types.StatusPass},
		{name: "pend then pass", conditions: []types.RuleCondition{pendCond, passCond}, want: types.StatusPend},
		{name: "pend then fail", conditions: []types.RuleCondition{pendCond, failCond}, want: types.StatusFail},
		{name: "fail then pend", conditions: []types.RuleCondition{failCond, pendCond}, want: types.StatusFail},
		{name: "pass then fail", conditions: []types.RuleCondition{passCond, failCond}, want: types.StatusFail},
	}

	facts := testFacts()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := EvaluateRule(types.Rule{ID: "R-1", Conditions: tt.conditions, Required: true}, facts)
			if got != tt.want {
				t.Errorf("EvaluateRule() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateRule_ShortCircuitSkipsReports(t *testing.T) {
	rule := types.Rule{
		ID: "R-1",
		Conditions: []types.RuleCondition{
			failCond,
			cond("age", "between", 3), // never evaluated
		},
	}
	status, reports := EvaluateRule(rule, testFacts())
	if status != types.StatusFail {
		t.Fatalf("EvaluateRule() = %v, want FAIL", status)
	}
	if len(reports) != 0 {
		t.Errorf("len(reports) = %d, want 0 (conditions after FAIL are not evaluated)", len(reports))
	}
}

func TestEvaluateRule_ReportsCollectedBeforeFail(t *testing.T) {
	rule := types.Rule{
		ID: "R-1",
		Conditions: []types.RuleCondition{
			cond("age", "between", 3),
			cond("age", "gte", "x"),
		},
	}
	status, reports := EvaluateRule(rule, testFacts())
	if status != types.StatusFail {
		t.Fatalf("EvaluateRule() = %v, want FAIL", status)
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	if !errors.Is(reports[0], types.ErrUnknownOperator) {
		t.Errorf("reports[0] = %v, want ErrUnknownOperator", reports[0])
	}
	if !errors.Is(reports[1], types.ErrComparison) {
		t.Errorf("reports[1] = %v, want ErrComparison", reports[1])
	}
}

// genConditions produces condition lists drawn from pass/fail/pend conditions.
func genConditions() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 2)).Map(func(kinds []int) []types.RuleCondition {
		out := make([]types.RuleCondition, len(kinds))
		for i, k := range kinds {
			out[i] = []types.RuleCondition{passCond, failCond, pendCond}[k]
		}
		return out
	})
}

// Property-based test: FAIL dominates PEND dominates PASS regardless of order.
func TestEvaluateRule_PropertyDominance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	facts := testFacts()

	properties.Property("rule status is the strongest condition status", prop.ForAll(
		func(conditions []types.RuleCondition) bool {
			want := types.StatusPass
			for _, c := range conditions {
				s, _ := EvaluateCondition(c, facts)
				if s == types.StatusFail {
					want = types.StatusFail
					break
				}
				if s == types.StatusPend {
					want = types.StatusPend
				}
			}
			got, _ := EvaluateRule(types.Rule{Conditions: conditions}, facts)
			return got == want
		},
		genConditions(),
	))

	properties.Property("any FAIL condition makes the rule FAIL", prop.ForAll(
		func(conditions []types.RuleCondition, pos int) bool {
			at := 0
			if len(conditions) > 0 {
				at = pos % (len(conditions) + 1)
			}
			withFail := append(append(append([]types.RuleCondition{}, conditions[:at]...), failCond), conditions[at:]...)
			got, _ := EvaluateRule(types.Rule{Conditions: withFail}, facts)
			return got == types.StatusFail
		},
		genConditions(),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
