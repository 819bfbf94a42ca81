package mining

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/solatis/priorauth/internal/rules"
	"github.com/solatis/priorauth/internal/types"
)

var ageYears = regexp.MustCompile(`(\d+)\s+years`)

// HeuristicExtractor recognizes a few fixed phrasings without a model:
//   - "N years of age or older" → {age, gte, N}
//   - "diagnosis of" → {diagnosis_code, manual_review, "TBD"}
//
// Text matching neither yields a single manual review condition. The rule
// type is left empty so the chunk's own category applies.
type HeuristicExtractor struct{}

var _ Extractor = HeuristicExtractor{}

func (HeuristicExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var conditions []types.RuleCondition

	if strings.Contains(text, "years of age or older") {
		if m := ageYears.FindStringSubmatch(text); m != nil {
			if age, err := strconv.Atoi(m[1]); err == nil {
				conditions = append(conditions, types.RuleCondition{
					Parameter: "age",
					Operator:  string(rules.OpGte),
					Value:     age,
				})
			}
		}
	}

	if strings.Contains(text, "diagnosis of") {
		conditions = append(conditions, types.RuleCondition{
			Parameter: "diagnosis_code",
			Operator:  string(rules.OpManualReview),
			Value:     "TBD",
		})
	}

	if len(conditions) == 0 {
		conditions = append(conditions, ManualReviewCondition())
	}

	return &Extraction{
		Conditions:  conditions,
		Description: Describe(text),
	}, nil
}
