package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initStoreMetrics initializes cache, vector, and SQL tier metrics.
func (m *Manager) initStoreMetrics(cfg Config) {
	m.cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemo_cache_operations_total",
			Help: "Total number of cache operations by operation and status",
		},
		[]string{"op", "status"},
	)

	m.cacheLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mnemo_cache_operation_duration_seconds",
			Help:    "Cache operation duration in seconds",
			Buckets: cfg.StoreLatencyBuckets,
		},
		[]string{"op"},
	)

	m.vectorOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemo_vector_operations_total",
			Help: "Total number of vector store operations by operation and status",
		},
		[]string{"op", "status"},
	)

	m.vectorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mnemo_vector_operation_duration_seconds",
			Help:    "Vector store operation duration in seconds",
			Buckets: cfg.StoreLatencyBuckets,
		},
		[]string{"op"},
	)

	m.sqlOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemo_sql_transactions_total",
			Help: "Total number of SQL transactions by status",
		},
		[]string{"status"},
	)

	m.sqlLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mnemo_sql_transaction_duration_seconds",
			Help:    "SQL transaction duration in seconds",
			Buckets: cfg.StoreLatencyBuckets,
		},
		[]string{},
	)

	m.registry.MustRegister(m.cacheOps)
	m.registry.MustRegister(m.cacheLatency)
	m.registry.MustRegister(m.vectorOps)
	m.registry.MustRegister(m.vectorLatency)
	m.registry.MustRegister(m.sqlOps)
	m.registry.MustRegister(m.sqlLatency)
}

// RecordCacheOp records a cache operation outcome.
func (m *Manager) RecordCacheOp(op, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.cacheOps.WithLabelValues(op, status).Inc()
	m.cacheLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordVectorOp records a vector store operation outcome.
func (m *Manager) RecordVectorOp(op, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.vectorOps.WithLabelValues(op, status).Inc()
	m.vectorLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordSQLOp records a SQL transaction outcome.
func (m *Manager) RecordSQLOp(status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.sqlOps.WithLabelValues(status).Inc()
	m.sqlLatency.WithLabelValues().Observe(duration.Seconds())
}
