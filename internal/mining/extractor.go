// Package mining turns policy text into DRAFT candidate rules.
//
// Extraction is pluggable behind Extractor. HeuristicExtractor runs
// offline; RemoteExtractor calls an HTTP extraction service. Whatever the
// backend returns, Miner guarantees one candidate per chunk: an empty or
// failed extraction becomes a single manual review condition.
package mining

import (
	"context"

	"github.com/solatis/priorauth/internal/rules"
	"github.com/solatis/priorauth/internal/types"
)

// Extraction is the structured rule proposed for one chunk of text.
type Extraction struct {
	RuleType    string                `json:"rule_type"`
	Conditions  []types.RuleCondition `json:"conditions"`
	Description string                `json:"description"`
}

// Empty reports whether the extraction proposes no conditions.
func (e *Extraction) Empty() bool {
	return e == nil || len(e.Conditions) == 0
}

// Extractor proposes a rule for a chunk of policy text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Extraction, error)
}

// ManualReviewCondition routes a rule to a human reviewer at evaluation
// time.
func ManualReviewCondition() types.RuleCondition {
	return types.RuleCondition{
		Parameter: rules.ParamManualReview,
		Operator:  string(rules.OpEquals),
		Value:     true,
	}
}

// Fallback is the extraction used when the extractor returns nothing.
func Fallback(text, ruleType string) *Extraction {
	if ruleType == "" {
		ruleType = types.DefaultRuleType
	}
	return &Extraction{
		RuleType:    ruleType,
		Conditions:  []types.RuleCondition{ManualReviewCondition()},
		Description: Describe(text),
	}
}

// Describe truncates text to DescriptionMaxLength runes plus "...".
// Shorter text is returned unchanged.
func Describe(text string) string {
	r := []rune(text)
	if len(r) <= types.DescriptionMaxLength {
		return text
	}
	return string(r[:types.DescriptionMaxLength]) + "..."
}
