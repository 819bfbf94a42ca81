package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/solatis/priorauth/internal/types"
	"go.uber.org/zap"
)

// RuleSource supplies the approved rules to index. *registry.Registry
// satisfies it.
type RuleSource interface {
	ApprovedRules(ctx context.Context, policyID string) ([]types.Rule, error)
}

// Refresh indexes every approved rule of policyID (all policies when empty)
// and returns how many documents were written. Approval is terminal, so
// upserting is enough to keep the index current.
func Refresh(ctx context.Context, source RuleSource, idx Index, policyID string) (int, error) {
	approved, err := source.ApprovedRules(ctx, policyID)
	if err != nil {
		return 0, fmt.Errorf("failed to load approved rules: %w", err)
	}
	docs, err := DocumentsFromRules(approved)
	if err != nil {
		return 0, err
	}
	if err := idx.Index(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Scheduler refreshes the index on a cron schedule.
type Scheduler struct {
	source   RuleSource
	index    Index
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	watcher sync.WaitGroup
}

// NewScheduler creates a scheduler for schedule, a standard five-field cron
// expression or descriptor such as "@every 5m". An empty schedule disables it.
func NewScheduler(source RuleSource, idx Index, schedule string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		source:   source,
		index:    idx,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start schedules refreshes until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("index refresh schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule index refresh: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.done = make(chan struct{})
	s.logger.Info("index refresh scheduler started", zap.String("schedule", s.schedule))

	done := s.done
	s.watcher.Add(1)
	go func() {
		defer s.watcher.Done()
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	n, err := Refresh(ctx, s.source, s.index, "")
	if err != nil {
		s.logger.Error("scheduled index refresh failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled index refresh completed", zap.Int("indexed", n))
}

// Stop halts scheduling and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		close(s.done)
		s.running = false
		s.logger.Info("index refresh scheduler stopped")
	}
}

// IsRunning reports whether refreshes are scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled refresh, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
