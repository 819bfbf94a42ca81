// internal/rules/evaluate.go
package rules

import (
	"fmt"

	"github.com/solatis/priorauth/internal/types"
)

/*
 * Condition and rule evaluation.
 *
 * Evaluates RuleCondition against a patient fact bag and folds a rule's
 * conditions into a single verdict. Both functions are pure: no I/O, no
 * shared state, safe for concurrent use.
 *
 * Condition flow:
 *   1. parameter == manual_review -> PEND (extraction found nothing checkable)
 *   2. parameter not in facts -> PEND (insufficient data, not a failure)
 *   3. operator == manual_review -> PEND
 *   4. unknown operator -> PEND, reported via ErrUnknownOperator
 *   5. Compare(); comparison error -> FAIL, reported via ErrComparison
 *
 * Missing data resolves to PEND; evaluation errors resolve to FAIL.
 *
 * Rule fold (AND, declaration order):
 *   - FAIL: rule is FAIL, remaining conditions are not evaluated
 *   - PEND: rule is PEND, scanning continues so a later FAIL still wins
 *   - PASS: no change
 * An empty condition list is PASS.
 */

// ParamManualReview is the sentinel parameter meaning "needs a human".
const ParamManualReview = "manual_review"

// EvaluateCondition evaluates one condition against facts.
// A non-nil error is a report attached to the verdict, never a reason to abort.
func EvaluateCondition(cond types.RuleCondition, facts map[string]any) (types.Status, error) {
	if cond.Parameter == ParamManualReview {
		return types.StatusPend, nil
	}

	fact, ok := facts[cond.Parameter]
	if !ok {
		return types.StatusPend, nil
	}

	op := Operator(cond.Operator)
	if op == OpManualReview {
		return types.StatusPend, nil
	}
	if !op.Known() {
		return types.StatusPend, fmt.Errorf("%w: %q on parameter %q", types.ErrUnknownOperator, cond.Operator, cond.Parameter)
	}

	matched, err := Compare(op, fact, cond.Value)
	if err != nil {
		return types.StatusFail, fmt.Errorf("%s %s %v: %w", cond.Parameter, cond.Operator, cond.Value, err)
	}
	if matched {
		return types.StatusPass, nil
	}
	return types.StatusFail, nil
}

// EvaluateRule folds a rule's conditions into one verdict.
// Returns every report raised by the conditions that were evaluated.
func EvaluateRule(rule types.Rule, facts map[string]any) (types.Status, []error) {
	status := types.StatusPass
	var reports []error

	for _, cond := range rule.Conditions {
		s, err := EvaluateCondition(cond, facts)
		if err != nil {
			reports = append(reports, err)
		}
		switch s {
		case types.StatusFail:
			return types.StatusFail, reports
		case types.StatusPend:
			status = types.StatusPend
		}
	}

	return status, reports
}
