package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/solatis/priorauth/internal/core/metrics"
	"github.com/solatis/priorauth/internal/rules"
	"github.com/solatis/priorauth/internal/types"
	"go.uber.org/zap"
)

// Registry wraps a Store with logging, metrics and the bulk review and
// document exchange operations used by the CLI and the API.
type Registry struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Collector
}

var _ Store = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for registry mutations.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the collector for registry metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Registry) {
		r.metrics = c
	}
}

// New wraps store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the wrapped backend.
func (r *Registry) Store() Store {
	return r.store
}

func (r *Registry) AddCandidates(ctx context.Context, candidates []types.CandidateRule, policyID string) error {
	if err := r.store.AddCandidates(ctx, candidates, policyID); err != nil {
		return err
	}
	r.metrics.RecordCandidatesAdded(len(candidates))
	r.logger.Info("candidates added",
		zap.String("policy_id", policyID),
		zap.Int("count", len(candidates)),
	)
	return nil
}

func (r *Registry) ListByStatus(ctx context.Context, status types.ReviewStatus) ([]types.CandidateRule, error) {
	return r.store.ListByStatus(ctx, status)
}

// UpdateStatus checks the structure of replacement conditions before
// delegating to the store. Conditions that will pend or fail at evaluation
// are stored as given and logged.
func (r *Registry) UpdateStatus(ctx context.Context, candidateID string, status types.ReviewStatus, conditions *[]types.RuleCondition) (types.CandidateRule, error) {
	if conditions != nil {
		if err := rules.ValidateConditions(*conditions); err != nil {
			return types.CandidateRule{}, err
		}
		for _, w := range rules.ConditionWarnings(*conditions) {
			r.logger.Warn("replacement condition will not pass as written",
				zap.String("candidate_id", candidateID),
				zap.String("warning", w),
			)
		}
	}

	c, err := r.store.UpdateStatus(ctx, candidateID, status, conditions)
	if err != nil {
		r.logger.Warn("candidate review rejected",
			zap.String("candidate_id", candidateID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return c, err
	}

	r.metrics.RecordTransition(string(status))
	r.logger.Info("candidate reviewed",
		zap.String("candidate_id", candidateID),
		zap.String("rule_id", c.RuleData.ID),
		zap.String("status", string(status)),
		zap.Bool("conditions_replaced", conditions != nil),
		zap.String("reviewer", ReviewerFromContext(ctx)),
	)
	return c, nil
}

func (r *Registry) ApprovedRules(ctx context.Context, policyID string) ([]types.Rule, error) {
	return r.store.ApprovedRules(ctx, policyID)
}

func (r *Registry) Policies(ctx context.Context) ([]types.PolicyMeta, error) {
	return r.store.Policies(ctx)
}

func (r *Registry) Snapshot(ctx context.Context) (*types.Registry, error) {
	return r.store.Snapshot(ctx)
}

func (r *Registry) Restore(ctx context.Context, doc *types.Registry) error {
	if err := r.store.Restore(ctx, doc); err != nil {
		return err
	}
	r.metrics.RecordCandidatesAdded(len(doc.Rules))
	r.logger.Info("registry restored",
		zap.Int("policies", len(doc.Policies)),
		zap.Int("candidates", len(doc.Rules)),
	)
	return nil
}

// AutoApprove approves every DRAFT candidate and returns how many moved.
// A candidate reviewed concurrently by someone else is skipped.
func (r *Registry) AutoApprove(ctx context.Context) (int, error) {
	drafts, err := r.store.ListByStatus(ctx, types.ReviewDraft)
	if err != nil {
		return 0, err
	}

	approved := 0
	for _, c := range drafts {
		_, err := r.UpdateStatus(ctx, c.ID, types.ReviewApproved, nil)
		if IsSkippable(err) {
			continue
		}
		if err != nil {
			return approved, err
		}
		approved++
	}
	return approved, nil
}

// Export writes the full registry as a document.
func (r *Registry) Export(ctx context.Context, w io.Writer) error {
	doc, err := r.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	return EncodeDocument(w, doc)
}

// Import reads a document and restores it into the wrapped store.
func (r *Registry) Import(ctx context.Context, rd io.Reader) (*types.Registry, error) {
	doc, err := DecodeDocument(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to import registry: %w", err)
	}
	if err := r.Restore(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
