package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initConsolidationMetrics initializes importance-memory pipeline metrics.
func (m *Manager) initConsolidationMetrics(cfg Config) {
	m.consolidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemo_consolidations_total",
			Help: "Total number of consolidation runs by outcome",
		},
		[]string{"outcome"},
	)

	m.consolidationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mnemo_consolidation_duration_seconds",
			Help:    "Consolidation run duration in seconds",
			Buckets: cfg.ConsolidationDurationBuckets,
		},
		[]string{},
	)

	m.registry.MustRegister(m.consolidations)
	m.registry.MustRegister(m.consolidationDuration)
}

// RecordConsolidation records a consolidation run outcome.
func (m *Manager) RecordConsolidation(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.consolidations.WithLabelValues(outcome).Inc()
	m.consolidationDuration.WithLabelValues().Observe(duration.Seconds())
}
