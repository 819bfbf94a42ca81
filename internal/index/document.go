// Package index publishes approved rules to a searchable store and ranks
// them against free-text queries.
//
// Retrieval is lexical: a document matches a query by the share of query
// terms found in its description, type and logic. The index is a
// convenience for reviewers and providers looking up rules; evaluation
// never reads from it.
package index

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/solatis/priorauth/internal/types"
)

// Document is the indexed form of one approved rule.
type Document struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Logic       string `json:"logic"`
	Type        string `json:"rule_type"`
	PolicyID    string `json:"policy_id"`
	Required    bool   `json:"required"`
}

// Match is one ranked search hit.
type Match struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Logic       string  `json:"logic"`
	Type        string  `json:"type"`
}

// Index stores documents and answers ranked queries.
type Index interface {
	Index(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, k int) ([]Match, error)
}

// DocumentsFromRules converts approved rules into index documents. Logic is
// the JSON encoding of the rule's conditions.
func DocumentsFromRules(rules []types.Rule) ([]Document, error) {
	docs := make([]Document, 0, len(rules))
	for _, r := range rules {
		conditions := r.Conditions
		if conditions == nil {
			conditions = []types.RuleCondition{}
		}
		logic, err := json.Marshal(conditions)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			ID:          r.ID,
			Description: r.Description,
			Logic:       string(logic),
			Type:        r.Type,
			PolicyID:    r.PolicyID(),
			Required:    r.Required,
		})
	}
	return docs, nil
}

// logicKeys are the JSON field names present in every Logic string.
var logicKeys = map[string]struct{}{"parameter": {}, "operator": {}, "value": {}}

// terms returns the distinct lower-case tokens of s with at least two
// characters, in first-seen order.
func terms(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if len(f) < 2 {
			continue
		}
		if _, ok := logicKeys[f]; ok {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// documentTerms are the searchable tokens of d.
func documentTerms(d Document) []string {
	return terms(d.Description + " " + d.Type + " " + d.Logic)
}
