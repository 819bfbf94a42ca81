package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/priorauth/internal/types"
)

// Explain renders a short, deterministic explanation of a decision for the
// requesting provider.
func Explain(d types.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The request was %s: %d of %d rules failed", d.Decision, len(d.FailedRules), len(d.AllResults))
	if len(d.MissingInfo) > 0 {
		fmt.Fprintf(&b, ", %d need additional information", len(d.MissingInfo))
	}
	b.WriteString(".")

	if len(d.FailedRules) > 0 {
		b.WriteString(" Failed: ")
		b.WriteString(joinRuleIDs(d.FailedRules))
		b.WriteString(".")
	}
	if len(d.MissingInfo) > 0 {
		b.WriteString(" Pending review: ")
		b.WriteString(joinRuleIDs(d.MissingInfo))
		b.WriteString(".")
	}
	return b.String()
}

func joinRuleIDs(results []types.EvaluationResult) string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.RuleID
	}
	return strings.Join(ids, ", ")
}
