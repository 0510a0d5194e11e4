package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal counts connections accepted since process
	// start. The live connection gauge is middleware.ActiveWebSockets.
	WebSocketConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_websocket_connections_total",
		Help: "Total number of WebSocket connections accepted",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts events dropped because a client's send
	// buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket events dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MessagesTotal counts direct message send attempts by outcome
	// (persisted, denied, failed).
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_messages_total",
		Help: "Total number of direct message send attempts by outcome",
	}, []string{"outcome"})

	// MessageDeliveries counts live deliveries by event type and channel
	// fate (delivered, offline).
	MessageDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_message_deliveries_total",
		Help: "Total number of live event deliveries by event type and fate",
	}, []string{"event_type", "fate"})

	// PasswordResetEmails counts password reset emails by result.
	PasswordResetEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_password_reset_emails_total",
		Help: "Total number of password reset emails by result",
	}, []string{"result"})
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
