package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tally_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// NotificationDeliveryDrops counts notification payloads dropped because
	// the receiving websocket client could not keep up.
	NotificationDeliveryDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_notification_delivery_drops_total",
		Help: "Total number of notification payloads dropped due to backpressure",
	}, []string{"reason"})

	// LedgerOperations counts ledger state transitions by entity and operation.
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_ledger_operations_total",
		Help: "Total number of ledger state transitions",
	}, []string{"entity", "operation"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
