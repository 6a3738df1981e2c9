package metrics_test

import (
	"strings"
	"testing"

	"github.com/myrjola/petrcoach/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManager(t *testing.T) {
	m, reg := metrics.NewTestManagerAndRegistry()

	m.ObserveUser("nightly", "success")
	m.ObserveUser("nightly", "success")
	m.ObserveUser("nightly", "failure")
	m.ObserveNarrative("fallback")
	m.ObserveBatchDuration("nightly", 1.5)

	if got := testutil.ToFloat64(m.CounterBatchUsers.WithLabelValues("nightly", "success")); got != 2 {
		t.Errorf("succeeded users = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CounterBatchUsers.WithLabelValues("nightly", "failure")); got != 1 {
		t.Errorf("failed users = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CounterNarratives.WithLabelValues("fallback")); got != 1 {
		t.Errorf("fallback narratives = %v, want 1", got)
	}

	expected := `
# HELP petrcoach_narratives_total The total number of weekly report narratives by source
# TYPE petrcoach_narratives_total counter
petrcoach_narratives_total{source="fallback"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "petrcoach_narratives_total"); err != nil {
		t.Error(err)
	}
	if count := testutil.CollectAndCount(m.HistBatchDuration, "petrcoach_batch_duration_seconds"); count != 1 {
		t.Errorf("histogram series = %d, want 1", count)
	}
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *metrics.Manager
	m.ObserveUser("weekly", "failure")
	m.ObserveNarrative("llm")
	m.ObserveBatchDuration("weekly", 1)
}
