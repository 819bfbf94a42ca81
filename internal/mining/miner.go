package mining

import (
	"context"

	"github.com/solatis/priorauth/internal/core/metrics"
	"github.com/solatis/priorauth/internal/types"
	"go.uber.org/zap"
)

// Fallback reasons recorded in metrics.
const (
	FallbackEmpty = "empty"
	FallbackError = "error"
)

// Miner wraps each chunk's extraction into a DRAFT candidate rule.
type Miner struct {
	extractor Extractor
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// Option configures a Miner.
type Option func(*Miner)

// WithLogger sets the miner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Miner) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the collector for fallback counts.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Miner) {
		m.metrics = c
	}
}

// NewMiner creates a miner around extractor.
func NewMiner(extractor Extractor, opts ...Option) *Miner {
	m := &Miner{extractor: extractor, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mine returns one candidate per chunk, in chunk order. Candidates are
// DRAFT, carry a fresh id and the placeholder confidence, and are not yet
// bound to a policy.
func (m *Miner) Mine(ctx context.Context, chunks []Chunk) []types.CandidateRule {
	candidates := make([]types.CandidateRule, 0, len(chunks))
	for _, chunk := range chunks {
		candidates = append(candidates, m.mineChunk(ctx, chunk))
	}
	return candidates
}

func (m *Miner) mineChunk(ctx context.Context, chunk Chunk) types.CandidateRule {
	category := chunk.Metadata.RuleType
	if category == "" {
		category = types.DefaultRuleType
	}

	extraction, err := m.extractor.Extract(ctx, chunk.Text)
	switch {
	case err != nil:
		m.logger.Warn("extraction failed, using manual review fallback",
			zap.String("chunk_id", chunk.ID),
			zap.Error(err),
		)
		m.metrics.RecordExtractionFallback(FallbackError)
		extraction = Fallback(chunk.Text, category)
	case extraction.Empty():
		m.logger.Info("extraction empty, using manual review fallback",
			zap.String("chunk_id", chunk.ID),
		)
		m.metrics.RecordExtractionFallback(FallbackEmpty)
		extraction = Fallback(chunk.Text, category)
	}

	ruleType := extraction.RuleType
	if ruleType == "" {
		ruleType = category
	}
	description := extraction.Description
	if description == "" {
		description = Describe(chunk.Text)
	}

	return types.CandidateRule{
		ID:            types.NewCandidateID(),
		SourceChunkID: chunk.ID,
		SourceText:    chunk.Text,
		Confidence:    types.DefaultConfidence,
		Status:        types.ReviewDraft,
		RuleData: types.Rule{
			ID:          types.NewRuleID(),
			Type:        ruleType,
			Conditions:  append([]types.RuleCondition{}, extraction.Conditions...),
			Description: description,
			Required:    true,
		},
	}
}
