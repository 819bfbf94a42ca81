// internal/rules/operators.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/priorauth/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the 5 comparison operators a rule author may use, plus the
 * manual_review sentinel. Values are normalized via normalize() before
 * comparison so JSON-decoded rules (float64, []any) and Go-built facts
 * (int, []string) compare equal.
 *
 * Operators:
 *   - equals: structural equality with numeric tolerance across int/float
 *   - gte/lte: numeric ordering, or lexical ordering when both are strings
 *   - one_of: fact is a member of the value list (or substring of a string value)
 *   - contains: value is an element of a list fact, else substring of its text
 *   - manual_review: sentinel, never compared
 *
 * Errors: a comparison that cannot be made (number vs string ordering,
 * one_of against a scalar) returns types.ErrComparison. Unknown operators
 * return types.ErrUnknownOperator. Callers decide the verdict for each.
 */

// Operator is a condition operator name as written in rule data.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpGte          Operator = "gte"
	OpLte          Operator = "lte"
	OpOneOf        Operator = "one_of"
	OpContains     Operator = "contains"
	OpManualReview Operator = "manual_review"
)

// Known reports whether op is in the supported operator set.
func (op Operator) Known() bool {
	switch op {
	case OpEquals, OpGte, OpLte, OpOneOf, OpContains, OpManualReview:
		return true
	default:
		return false
	}
}

// Compare applies the operator to compare fact against value.
// Returns (false, err) when the comparison cannot be made.
func Compare(op Operator, fact, value any) (bool, error) {
	switch op {
	case OpEquals:
		return compareEqual(fact, value), nil
	case OpGte:
		c, err := compareOrdered(fact, value)
		return err == nil && c >= 0, err
	case OpLte:
		c, err := compareOrdered(fact, value)
		return err == nil && c <= 0, err
	case OpOneOf:
		return compareIn(fact, value)
	case OpContains:
		return compareContains(fact, value)
	default:
		return false, fmt.Errorf("%w: %q", types.ErrUnknownOperator, string(op))
	}
}

// compareEqual performs structural equality after normalization.
// Handles int/float64 mixing for JSON compatibility.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return deepEqual(normalize(a), normalize(b))
}

// compareOrdered performs three-way comparison (-1/0/1).
// Numbers compare numerically, strings lexically; anything else is an error.
func compareOrdered(a, b any) (int, error) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, nil
		case na > nb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	if oka && okb {
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("%w: cannot order %T against %T", types.ErrComparison, a, b)
}

// compareIn checks fact membership in set using equality semantics.
// A string set means substring membership, and then the fact must be a string.
func compareIn(fact, set any) (bool, error) {
	switch s := normalize(set).(type) {
	case []any:
		for _, elem := range s {
			if compareEqual(fact, elem) {
				return true, nil
			}
		}
		return false, nil
	case string:
		fs, ok := fact.(string)
		if !ok {
			return false, fmt.Errorf("%w: one_of against string requires string fact, got %T", types.ErrComparison, fact)
		}
		return strings.Contains(s, fs), nil
	default:
		return false, fmt.Errorf("%w: one_of value must be a list, got %T", types.ErrComparison, set)
	}
}

// compareContains checks element membership for list facts and substring
// containment for everything else.
func compareContains(fact, value any) (bool, error) {
	if list, ok := normalize(fact).([]any); ok {
		for _, elem := range list {
			if compareEqual(elem, value) {
				return true, nil
			}
		}
		return false, nil
	}
	needle, ok := value.(string)
	if !ok {
		return false, fmt.Errorf("%w: contains on %T requires string value, got %T", types.ErrComparison, fact, value)
	}
	return strings.Contains(textForm(fact), needle), nil
}
