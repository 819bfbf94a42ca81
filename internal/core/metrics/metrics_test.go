package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordDecision("DENY", 2*time.Millisecond)
	c.RecordDecision("DENY", time.Millisecond)
	c.RecordDecision("PEND", time.Millisecond)
	c.RecordRuleResult("FAIL")
	c.RecordConditionReport("unknown_operator")
	c.RecordTransition("APPROVED")
	c.RecordCandidatesAdded(3)
	c.RecordExtractionFallback("empty")

	if got := testutil.ToFloat64(c.decisionsTotal.WithLabelValues("DENY")); got != 2 {
		t.Errorf("decisions_total{decision=DENY} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.candidatesAdded); got != 3 {
		t.Errorf("candidates_added_total = %v, want 3", got)
	}

	want := `
# HELP priorauth_registry_transitions_total Candidate review transitions by target status
# TYPE priorauth_registry_transitions_total counter
priorauth_registry_transitions_total{status="APPROVED"} 1
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(want), "priorauth_registry_transitions_total"); err != nil {
		t.Errorf("GatherAndCompare() error = %v, want nil", err)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.RecordDecision("APPROVE", time.Second)
	c.RecordRuleResult("PASS")
	c.RecordConditionReport("comparison_error")
	c.RecordTransition("REJECTED")
	c.RecordCandidatesAdded(1)
	c.RecordExtractionFallback("error")
	if c.Registry() != nil {
		t.Error("Registry() on nil collector is not nil")
	}
}

func TestNewCollector_NilRegistry(t *testing.T) {
	c := NewCollector(nil)
	if c.Registry() == nil {
		t.Fatal("NewCollector(nil).Registry() = nil, want fresh registry")
	}
}
