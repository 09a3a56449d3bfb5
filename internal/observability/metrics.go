package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rebound_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rebound_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ToggleTotal counts toggle operations by subject kind and resulting state.
	ToggleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rebound_interaction_toggles_total",
		Help: "Total number of reaction and bookmark toggles by subject and result",
	}, []string{"subject", "result"})

	// ToggleRaceResolved counts inserts that found the row already present and
	// were reported as success.
	ToggleRaceResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rebound_toggle_race_resolved_total",
		Help: "Total number of concurrent toggle-on races resolved as already present",
	}, []string{"subject"})

	// StorageRetries counts transparent retries after transient storage failures.
	StorageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rebound_storage_retries_total",
		Help: "Total number of operations retried after a transient storage failure",
	}, []string{"operation"})

	// CommentDeletes counts comment deletions by mode (soft or hard).
	CommentDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rebound_comment_deletes_total",
		Help: "Total number of comment deletions by mode",
	}, []string{"mode"})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rebound_cache_lookups_total",
		Help: "Total number of cache-aside lookups by result",
	}, []string{"result"})
)

// DatabaseMetrics records query latency for one table.
type DatabaseMetrics struct {
	table string
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance for table.
func NewDatabaseMetrics(table string) *DatabaseMetrics {
	return &DatabaseMetrics{table: table}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, m.table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, start)
	}
}
