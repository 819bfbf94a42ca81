package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/solatis/priorauth/internal/types"
)

// DocumentStore keeps the whole registry in one JSON document.
// Every mutation reads the document, applies the change and replaces the
// file via temp file + rename, so readers see either the old or the new
// document. Calls on one instance are serialized; concurrent writers in
// other processes are not coordinated.
type DocumentStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*DocumentStore)(nil)

// NewDocumentStore returns a store backed by the document at path.
// A missing file reads as an empty registry.
func NewDocumentStore(path string) *DocumentStore {
	return &DocumentStore{path: path}
}

// Path returns the document location.
func (s *DocumentStore) Path() string {
	return s.path
}

func (s *DocumentStore) AddCandidates(ctx context.Context, candidates []types.CandidateRule, policyID string) error {
	prepared, err := prepareCandidates(candidates, policyID)
	if err != nil {
		return err
	}

	return s.mutate(ctx, func(doc *types.Registry) error {
		if err := checkDuplicates(doc, prepared); err != nil {
			return err
		}
		if _, ok := doc.Policies[policyID]; !ok {
			doc.Policies[policyID] = types.PolicyMeta{ID: policyID, Status: types.PolicyStatusIngested}
		}
		doc.Rules = append(doc.Rules, prepared...)
		return nil
	})
}

func (s *DocumentStore) ListByStatus(ctx context.Context, status types.ReviewStatus) ([]types.CandidateRule, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	out := []types.CandidateRule{}
	for _, c := range doc.Rules {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, candidateID string, status types.ReviewStatus, conditions *[]types.RuleCondition) (types.CandidateRule, error) {
	var updated types.CandidateRule
	err := s.mutate(ctx, func(doc *types.Registry) error {
		for i := range doc.Rules {
			if doc.Rules[i].ID != candidateID {
				continue
			}
			if err := applyTransition(&doc.Rules[i], status, conditions); err != nil {
				return err
			}
			updated = doc.Rules[i]
			return nil
		}
		return notFound(candidateID)
	})
	return updated, err
}

func (s *DocumentStore) ApprovedRules(ctx context.Context, policyID string) ([]types.Rule, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	out := []types.Rule{}
	for _, c := range doc.Rules {
		if c.Status != types.ReviewApproved {
			continue
		}
		if policyID != "" && c.RuleData.PolicyID() != policyID {
			continue
		}
		out = append(out, c.ToRule())
	}
	return out, nil
}

func (s *DocumentStore) Policies(ctx context.Context) ([]types.PolicyMeta, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return sortedPolicies(doc.Policies), nil
}

func (s *DocumentStore) Snapshot(ctx context.Context) (*types.Registry, error) {
	return s.read(ctx)
}

func (s *DocumentStore) Restore(ctx context.Context, in *types.Registry) error {
	if err := validateRestore(in); err != nil {
		return err
	}
	return s.mutate(ctx, func(doc *types.Registry) error {
		if err := checkDuplicates(doc, in.Rules); err != nil {
			return err
		}
		for id, meta := range in.Policies {
			if _, ok := doc.Policies[id]; !ok {
				doc.Policies[id] = meta
			}
		}
		doc.Rules = append(doc.Rules, in.Rules...)
		return nil
	})
}

func (s *DocumentStore) read(ctx context.Context) (*types.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// mutate runs fn against the current document and persists the result.
// Nothing is written when fn fails.
func (s *DocumentStore) mutate(ctx context.Context, fn func(doc *types.Registry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *DocumentStore) load() (*types.Registry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open registry %s: %w", s.path, err)
	}
	defer f.Close()

	doc, err := DecodeDocument(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return doc, nil
}

func (s *DocumentStore) save(doc *types.Registry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp registry: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := EncodeDocument(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close registry: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set registry permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

// DecodeDocument parses a registry document. Empty input is an empty
// registry; anything unparsable wraps types.ErrRegistryCorrupt.
func DecodeDocument(r io.Reader) (*types.Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	doc := types.NewRegistry()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRegistryCorrupt, err)
	}
	if doc.Policies == nil {
		doc.Policies = make(map[string]types.PolicyMeta)
	}
	if doc.Rules == nil {
		doc.Rules = []types.CandidateRule{}
	}
	return doc, nil
}

// EncodeDocument writes doc as indented JSON.
func EncodeDocument(w io.Writer, doc *types.Registry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	return nil
}

func checkDuplicates(doc *types.Registry, incoming []types.CandidateRule) error {
	seen := make(map[string]struct{}, len(doc.Rules)+len(incoming))
	for _, c := range doc.Rules {
		seen[c.ID] = struct{}{}
	}
	for _, c := range incoming {
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("%w: %s", types.ErrDuplicateCandidate, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

func sortedPolicies(policies map[string]types.PolicyMeta) []types.PolicyMeta {
	out := make([]types.PolicyMeta, 0, len(policies))
	for _, meta := range policies {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
