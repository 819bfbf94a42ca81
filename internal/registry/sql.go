package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/priorauth/internal/core/db"
	"github.com/solatis/priorauth/internal/types"
)

// SQLStore keeps candidates as rows keyed by candidate id.
// Every status change runs in one transaction that re-checks the DRAFT
// precondition and appends a row to candidate_transitions, so concurrent
// reviewers cannot both move the same candidate.
type SQLStore struct {
	queries *db.Queries
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore returns a store using migrated tables behind queries.
func NewSQLStore(queries *db.Queries) *SQLStore {
	return &SQLStore{
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Transition is one entry of the append-only review log.
type Transition struct {
	ID                 string             `db:"transition_id" json:"id"`
	CandidateID        string             `db:"candidate_id" json:"candidate_id"`
	From               types.ReviewStatus `db:"from_status" json:"from"`
	To                 types.ReviewStatus `db:"to_status" json:"to"`
	ConditionsReplaced bool               `db:"conditions_replaced" json:"conditions_replaced"`
	Reviewer           string             `db:"reviewer" json:"reviewer"`
	CreatedAt          string             `db:"created_at" json:"created_at"`
}

// candidateRow mirrors the candidates table; rule_data holds Rule JSON.
type candidateRow struct {
	ID            string  `db:"candidate_id"`
	SourceChunkID string  `db:"source_chunk_id"`
	SourceText    string  `db:"source_text"`
	Confidence    float64 `db:"confidence"`
	Status        string  `db:"status"`
	RuleData      string  `db:"rule_data"`
}

func (r candidateRow) candidate() (types.CandidateRule, error) {
	var rule types.Rule
	if err := json.Unmarshal([]byte(r.RuleData), &rule); err != nil {
		return types.CandidateRule{}, fmt.Errorf("%w: candidate %s: %v", types.ErrRegistryCorrupt, r.ID, err)
	}
	return types.CandidateRule{
		ID:            r.ID,
		SourceChunkID: r.SourceChunkID,
		SourceText:    r.SourceText,
		Confidence:    r.Confidence,
		Status:        types.ReviewStatus(r.Status),
		RuleData:      rule,
	}, nil
}

type policyRow struct {
	ID     string `db:"policy_id"`
	Status string `db:"status"`
}

func (s *SQLStore) AddCandidates(ctx context.Context, candidates []types.CandidateRule, policyID string) error {
	prepared, err := prepareCandidates(candidates, policyID)
	if err != nil {
		return err
	}

	return s.queries.InTx(ctx, func(tx *db.Queries) error {
		now := s.timestamp()
		if _, err := tx.ExecContext(ctx, "insert-policy-if-absent", policyID, types.PolicyStatusIngested, now); err != nil {
			return fmt.Errorf("failed to register policy %s: %w", policyID, err)
		}
		for _, c := range prepared {
			if err := s.insertCandidate(ctx, tx, c, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) ListByStatus(ctx context.Context, status types.ReviewStatus) ([]types.CandidateRule, error) {
	var rows []candidateRow
	if err := s.queries.SelectContext(ctx, "list-candidates-by-status", &rows, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return toCandidates(rows)
}

func (s *SQLStore) UpdateStatus(ctx context.Context, candidateID string, status types.ReviewStatus, conditions *[]types.RuleCondition) (types.CandidateRule, error) {
	var updated types.CandidateRule
	err := s.queries.InTx(ctx, func(tx *db.Queries) error {
		var row candidateRow
		err := tx.GetContext(ctx, "get-candidate", &row, candidateID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(candidateID)
		}
		if err != nil {
			return fmt.Errorf("failed to load candidate %s: %w", candidateID, err)
		}

		c, err := row.candidate()
		if err != nil {
			return err
		}
		from := c.Status
		if err := applyTransition(&c, status, conditions); err != nil {
			return err
		}

		ruleData, err := json.Marshal(c.RuleData)
		if err != nil {
			return fmt.Errorf("failed to encode rule: %w", err)
		}

		now := s.timestamp()
		res, err := tx.ExecContext(ctx, "transition-candidate", string(c.Status), string(ruleData), now, c.ID, string(from))
		if err != nil {
			return fmt.Errorf("failed to update candidate %s: %w", c.ID, err)
		}
		// A concurrent reviewer moved the row between the read and the update
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return &TransitionError{CandidateID: c.ID, From: from, To: status}
		}

		replaced := 0
		if conditions != nil {
			replaced = 1
		}
		if _, err := tx.ExecContext(ctx, "insert-transition",
			types.NewCandidateID(), c.ID, string(from), string(c.Status), replaced, ReviewerFromContext(ctx), now,
		); err != nil {
			return fmt.Errorf("failed to record transition for %s: %w", c.ID, err)
		}

		updated = c
		return nil
	})
	return updated, err
}

func (s *SQLStore) ApprovedRules(ctx context.Context, policyID string) ([]types.Rule, error) {
	var data []string
	var err error
	if policyID == "" {
		err = s.queries.SelectContext(ctx, "list-approved-rules", &data)
	} else {
		err = s.queries.SelectContext(ctx, "list-approved-rules-by-policy", &data, policyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list approved rules: %w", err)
	}

	rules := make([]types.Rule, 0, len(data))
	for _, d := range data {
		var rule types.Rule
		if err := json.Unmarshal([]byte(d), &rule); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrRegistryCorrupt, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s *SQLStore) Policies(ctx context.Context) ([]types.PolicyMeta, error) {
	var rows []policyRow
	if err := s.queries.SelectContext(ctx, "list-policies", &rows); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	out := make([]types.PolicyMeta, len(rows))
	for i, r := range rows {
		out[i] = types.PolicyMeta{ID: r.ID, Status: r.Status}
	}
	return out, nil
}

func (s *SQLStore) Snapshot(ctx context.Context) (*types.Registry, error) {
	policies, err := s.Policies(ctx)
	if err != nil {
		return nil, err
	}

	var rows []candidateRow
	if err := s.queries.SelectContext(ctx, "list-candidates", &rows); err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	candidates, err := toCandidates(rows)
	if err != nil {
		return nil, err
	}

	doc := types.NewRegistry()
	for _, p := range policies {
		doc.Policies[p.ID] = p
	}
	doc.Rules = candidates
	return doc, nil
}

func (s *SQLStore) Restore(ctx context.Context, doc *types.Registry) error {
	if err := validateRestore(doc); err != nil {
		return err
	}
	return s.queries.InTx(ctx, func(tx *db.Queries) error {
		now := s.timestamp()
		for _, p := range sortedPolicies(doc.Policies) {
			if _, err := tx.ExecContext(ctx, "insert-policy-if-absent", p.ID, p.Status, now); err != nil {
				return fmt.Errorf("failed to register policy %s: %w", p.ID, err)
			}
		}
		for _, c := range doc.Rules {
			policyID := c.RuleData.PolicyID()
			// Candidates may reference a policy the document never registered
			if _, ok := doc.Policies[policyID]; !ok {
				if _, err := tx.ExecContext(ctx, "insert-policy-if-absent", policyID, types.PolicyStatusIngested, now); err != nil {
					return fmt.Errorf("failed to register policy %s: %w", policyID, err)
				}
			}
			if err := s.insertCandidate(ctx, tx, c, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Transitions returns the review log of one candidate, oldest first.
func (s *SQLStore) Transitions(ctx context.Context, candidateID string) ([]Transition, error) {
	var out []Transition
	if err := s.queries.SelectContext(ctx, "list-transitions", &out, candidateID); err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return out, nil
}

func (s *SQLStore) insertCandidate(ctx context.Context, tx *db.Queries, c types.CandidateRule, now string) error {
	var existing candidateRow
	err := tx.GetContext(ctx, "get-candidate", &existing, c.ID)
	if err == nil {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCandidate, c.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check candidate %s: %w", c.ID, err)
	}

	ruleData, err := json.Marshal(c.RuleData)
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "insert-candidate",
		c.ID, c.RuleData.PolicyID(), c.SourceChunkID, c.SourceText, c.Confidence, string(c.Status), string(ruleData), now, now,
	); err != nil {
		return fmt.Errorf("failed to insert candidate %s: %w", c.ID, err)
	}
	return nil
}

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func (s *SQLStore) timestamp() string {
	return s.now().Format(timestampLayout)
}

func toCandidates(rows []candidateRow) ([]types.CandidateRule, error) {
	out := make([]types.CandidateRule, 0, len(rows))
	for _, r := range rows {
		c, err := r.candidate()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
