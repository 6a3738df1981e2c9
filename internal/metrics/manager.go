// Package metrics exposes Prometheus metrics of the coaching batch jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterBatchUsers *prometheus.CounterVec
	CounterNarratives *prometheus.CounterVec

	// histograms
	HistBatchDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("petrcoach", "", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("petrcoach", "", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterBatchUsers := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "batch_users_total",
		Help:      "The total number of users processed by batch jobs",
	}, []string{"job", "outcome"})
	counterNarratives := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "narratives_total",
		Help:      "The total number of weekly report narratives by source",
	}, []string{"source"})

	histBatchDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.01, 0.1, 0.5, 1, 5, 10,
				30, 60, 120, 300, 600, 1800,
			},
			Name: "batch_duration_seconds",
			Help: "Total duration of a batch job run in seconds",
		},
		[]string{"job"},
	)

	return &Manager{
		CounterBatchUsers: counterBatchUsers,
		CounterNarratives: counterNarratives,
		HistBatchDuration: histBatchDuration,
	}
}

// ObserveUser counts one processed user. It is a no-op on a nil Manager.
func (m *Manager) ObserveUser(job, outcome string) {
	if m == nil {
		return
	}
	m.CounterBatchUsers.WithLabelValues(job, outcome).Inc()
}

// ObserveNarrative counts one weekly narrative. It is a no-op on a nil Manager.
func (m *Manager) ObserveNarrative(source string) {
	if m == nil {
		return
	}
	m.CounterNarratives.WithLabelValues(source).Inc()
}

// ObserveBatchDuration records how long one batch run took. It is a no-op on a nil Manager.
func (m *Manager) ObserveBatchDuration(job string, seconds float64) {
	if m == nil {
		return
	}
	m.HistBatchDuration.WithLabelValues(job).Observe(seconds)
}
