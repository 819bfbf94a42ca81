package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/priorauth/internal/types"
)

/*
 * Condition checks for reviewer edits.
 *
 * ValidateConditions only enforces structure: a parameter name and the size
 * limits below. Unknown operators and mismatched values are stored as
 * given; they pend or fail at evaluation time. ConditionWarnings lists
 * those so the caller can log them.
 *
 * Limits:
 *   - at most MaxConditions conditions per rule
 *   - at most MaxOneOfValues entries in a one_of list
 */

const (
	MaxConditions  = 64
	MaxOneOfValues = 1000
)

// ValidateConditions checks reviewer-supplied conditions. Errors wrap
// types.ErrInvalidRule and name the offending condition index.
func ValidateConditions(conditions []types.RuleCondition) error {
	if len(conditions) > MaxConditions {
		return fmt.Errorf("%w: %d conditions exceeds maximum of %d", types.ErrInvalidRule, len(conditions), MaxConditions)
	}
	for i, c := range conditions {
		if strings.TrimSpace(c.Parameter) == "" {
			return fmt.Errorf("%w: condition %d: parameter is required", types.ErrInvalidRule, i)
		}
		if Operator(c.Operator) != OpOneOf {
			continue
		}
		if v, ok := normalize(c.Value).([]any); ok && len(v) > MaxOneOfValues {
			return fmt.Errorf("%w: condition %d: one_of has %d values, maximum is %d", types.ErrInvalidRule, i, len(v), MaxOneOfValues)
		}
	}
	return nil
}

// ConditionWarnings describes conditions that will never pass as written.
// Unknown operators pend; value shapes the operator cannot compare fail.
func ConditionWarnings(conditions []types.RuleCondition) []string {
	var warnings []string
	for i, c := range conditions {
		if c.Parameter == ParamManualReview {
			continue
		}
		if msg := conditionWarning(c); msg != "" {
			warnings = append(warnings, fmt.Sprintf("condition %d: %s", i, msg))
		}
	}
	return warnings
}

func conditionWarning(c types.RuleCondition) string {
	op := Operator(c.Operator)
	if !op.Known() {
		return fmt.Sprintf("unknown operator %q evaluates to PEND", c.Operator)
	}

	switch op {
	case OpOneOf:
		switch normalize(c.Value).(type) {
		case []any, string:
		default:
			return fmt.Sprintf("one_of against %T always fails", c.Value)
		}
	case OpGte, OpLte:
		switch normalize(c.Value).(type) {
		case float64, string:
		default:
			return fmt.Sprintf("%s against %T always fails", op, c.Value)
		}
	case OpEquals, OpContains:
		if c.Value == nil {
			return fmt.Sprintf("%s has no value", op)
		}
	}
	return ""
}
