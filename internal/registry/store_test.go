package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/solatis/priorauth/internal/core/db"
	"github.com/solatis/priorauth/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"document": NewDocumentStore(filepath.Join(t.TempDir(), "registry.json")),
		"sql":      newTestSQLStore(t),
	}
}

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = db.MigrateUp(conn)
	require.NoError(t, err)
	queries, err := db.LoadQueries(conn)
	require.NoError(t, err)
	return NewSQLStore(queries)
}

func draft(ruleID string, conditions ...types.RuleCondition) types.CandidateRule {
	return types.CandidateRule{
		ID:            types.NewCandidateID(),
		SourceChunkID: "chunk-" + ruleID,
		SourceText:    "Patient must be 18 years of age or older.",
		Confidence:    types.DefaultConfidence,
		Status:        types.ReviewDraft,
		RuleData: types.Rule{
			ID:          ruleID,
			Type:        types.DefaultRuleType,
			Conditions:  conditions,
			Description: "Patient must be 18 years of age or older.",
			Required:    true,
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := draft("R-1", types.RuleCondition{Parameter: "age", Operator: "gte", Value: 18.0})

			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{c}, "P1"))

			drafts, err := store.ListByStatus(ctx, types.ReviewDraft)
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			assert.Equal(t, c.ID, drafts[0].ID)
			assert.Equal(t, "P1", drafts[0].RuleData.PolicyID())

			newConditions := []types.RuleCondition{{Parameter: "age", Operator: "gte", Value: 21.0}}
			updated, err := store.UpdateStatus(ctx, c.ID, types.ReviewApproved, &newConditions)
			require.NoError(t, err)
			assert.Equal(t, types.ReviewApproved, updated.Status)

			rules, err := store.ApprovedRules(ctx, "P1")
			require.NoError(t, err)
			require.Len(t, rules, 1)
			assert.Equal(t, newConditions, rules[0].Conditions)
			assert.Equal(t, "R-1", rules[0].ID)
			assert.True(t, rules[0].Required)

			drafts, err = store.ListByStatus(ctx, types.ReviewDraft)
			require.NoError(t, err)
			assert.Empty(t, drafts)
		})
	}
}

func TestStore_AddCandidatesRegistersPolicyOnce(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{draft("R-1")}, "P1"))
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{draft("R-2"), draft("R-3")}, "P1"))
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{draft("R-4")}, "P0"))

			policies, err := store.Policies(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.PolicyMeta{
				{ID: "P0", Status: types.PolicyStatusIngested},
				{ID: "P1", Status: types.PolicyStatusIngested},
			}, policies)

			drafts, err := store.ListByStatus(ctx, types.ReviewDraft)
			require.NoError(t, err)
			ids := make([]string, len(drafts))
			for i, c := range drafts {
				ids[i] = c.RuleData.ID
			}
			assert.Equal(t, []string{"R-1", "R-2", "R-3", "R-4"}, ids, "insertion order")
		})
	}
}

func TestStore_AddCandidatesValidation(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := store.AddCandidates(ctx, []types.CandidateRule{draft("R-1")}, "")
			assert.ErrorIs(t, err, types.ErrEmptyPolicyID)

			c := draft("R-1")
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{c}, "P1"))
			err = store.AddCandidates(ctx, []types.CandidateRule{c}, "P1")
			assert.ErrorIs(t, err, types.ErrDuplicateCandidate)

			drafts, err := store.ListByStatus(ctx, types.ReviewDraft)
			require.NoError(t, err)
			assert.Len(t, drafts, 1, "failed batch must not be persisted")
		})
	}
}

func TestStore_AddCandidatesFillsDefaults(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := draft("R-1")
			c.ID = ""
			c.Status = ""
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{c}, "P1"))

			drafts, err := store.ListByStatus(ctx, types.ReviewDraft)
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			_, err = types.ParseCandidateID(drafts[0].ID)
			assert.NoError(t, err)
		})
	}
}

func TestStore_UpdateStatusNotFound(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := draft("R-1")
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{c}, "P1"))

			_, err := store.UpdateStatus(ctx, "R-1", types.ReviewApproved, nil)
			assert.ErrorIs(t, err, types.ErrCandidateNotFound, "rule id is not a candidate id")

			drafts, err := store.ListByStatus(ctx, types.ReviewDraft)
			require.NoError(t, err)
			assert.Len(t, drafts, 1, "miss must not mutate")
		})
	}
}

func TestStore_TerminalStatesRejectTransitions(t *testing.T) {
	tests := []struct {
		name  string
		first types.ReviewStatus
		then  types.ReviewStatus
	}{
		{name: "approved to rejected", first: types.ReviewApproved, then: types.ReviewRejected},
		{name: "rejected to approved", first: types.ReviewRejected, then: types.ReviewApproved},
		{name: "approved to draft", first: types.ReviewApproved, then: types.ReviewDraft},
	}

	for name, store := range backends(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				c := draft("R-1")
				require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{c}, "P-"+tt.name))

				_, err := store.UpdateStatus(ctx, c.ID, tt.first, nil)
				require.NoError(t, err)

				_, err = store.UpdateStatus(ctx, c.ID, tt.then, nil)
				assert.ErrorIs(t, err, types.ErrInvalidTransition)

				var terr *TransitionError
				require.True(t, errors.As(err, &terr))
				assert.Equal(t, tt.first, terr.From)

				still, err := store.ListByStatus(ctx, tt.first)
				require.NoError(t, err)
				found := false
				for _, s := range still {
					found = found || s.ID == c.ID
				}
				assert.True(t, found, "candidate must stay %s", tt.first)
			})
		}
	}
}

func TestStore_UpdateStatusInvalidName(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := draft("R-1")
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{c}, "P1"))

			_, err := store.UpdateStatus(ctx, c.ID, types.ReviewStatus("PENDING"), nil)
			assert.ErrorIs(t, err, types.ErrInvalidStatus)
		})
	}
}

func TestStore_ApprovedRulesFilter(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, b, rejected := draft("R-A"), draft("R-B"), draft("R-C")
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{a, rejected}, "P1"))
			require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{b}, "P2"))

			for _, id := range []string{a.ID, b.ID} {
				_, err := store.UpdateStatus(ctx, id, types.ReviewApproved, nil)
				require.NoError(t, err)
			}
			_, err := store.UpdateStatus(ctx, rejected.ID, types.ReviewRejected, nil)
			require.NoError(t, err)

			all, err := store.ApprovedRules(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			p2, err := store.ApprovedRules(ctx, "P2")
			require.NoError(t, err)
			require.Len(t, p2, 1)
			assert.Equal(t, "R-B", p2[0].ID)

			none, err := store.ApprovedRules(ctx, "P9")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	source := NewDocumentStore(filepath.Join(t.TempDir(), "source.json"))
	c1, c2 := draft("R-1"), draft("R-2")
	require.NoError(t, source.AddCandidates(ctx, []types.CandidateRule{c1, c2}, "P1"))
	_, err := source.UpdateStatus(ctx, c2.ID, types.ReviewApproved, nil)
	require.NoError(t, err)

	doc, err := source.Snapshot(ctx)
	require.NoError(t, err)

	for name, target := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, target.Restore(ctx, doc))

			got, err := target.Snapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, doc.Policies, got.Policies)
			require.Len(t, got.Rules, 2)
			assert.Equal(t, c1.ID, got.Rules[0].ID)
			assert.Equal(t, types.ReviewApproved, got.Rules[1].Status)

			err = target.Restore(ctx, doc)
			assert.ErrorIs(t, err, types.ErrDuplicateCandidate)
		})
	}
}

func TestStore_RestoreRejectsUnboundCandidate(t *testing.T) {
	doc := types.NewRegistry()
	doc.Rules = append(doc.Rules, draft("R-1"))

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Restore(context.Background(), doc)
			assert.ErrorIs(t, err, types.ErrEmptyPolicyID)
		})
	}
}

func TestDocumentStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"policies": {`), 0o644))

	store := NewDocumentStore(path)
	ctx := context.Background()

	_, err := store.ListByStatus(ctx, types.ReviewDraft)
	assert.ErrorIs(t, err, types.ErrRegistryCorrupt)

	err = store.AddCandidates(ctx, []types.CandidateRule{draft("R-1")}, "P1")
	assert.ErrorIs(t, err, types.ErrRegistryCorrupt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"policies": {`, string(data), "corrupt document must not be overwritten")
}

func TestDocumentStore_MissingAndEmptyFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	missing := NewDocumentStore(filepath.Join(dir, "nested", "registry.json"))
	drafts, err := missing.ListByStatus(ctx, types.ReviewDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)
	require.NoError(t, missing.AddCandidates(ctx, []types.CandidateRule{draft("R-1")}, "P1"))
	assert.FileExists(t, missing.Path())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	policies, err := NewDocumentStore(empty).Policies(ctx)
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestDocumentStore_LayoutAndNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	store := NewDocumentStore(path)
	ctx := context.Background()

	require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{draft("R-1")}, "P1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"policies"`)
	assert.Contains(t, string(data), `"rules"`)
	assert.Contains(t, string(data), `"parent_policy_id": "P1"`)
	assert.Contains(t, string(data), `"status": "INGESTED"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be renamed or removed")
}

func TestSQLStore_TransitionLog(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := WithReviewer(context.Background(), "reviewer-7")

	c := draft("R-1")
	require.NoError(t, store.AddCandidates(ctx, []types.CandidateRule{c}, "P1"))

	conditions := []types.RuleCondition{{Parameter: "age", Operator: "gte", Value: 21.0}}
	_, err := store.UpdateStatus(ctx, c.ID, types.ReviewApproved, &conditions)
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, c.ID, types.ReviewRejected, nil)
	require.ErrorIs(t, err, types.ErrInvalidTransition)

	log, err := store.Transitions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, log, 1, "failed transitions are not logged")
	assert.Equal(t, types.ReviewDraft, log[0].From)
	assert.Equal(t, types.ReviewApproved, log[0].To)
	assert.True(t, log[0].ConditionsReplaced)
	assert.Equal(t, "reviewer-7", log[0].Reviewer)
}
