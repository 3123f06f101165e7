package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency in milliseconds.
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	MQMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_messages_total",
			Help: "Total number of consumed MQ messages by result",
		},
		[]string{"queue", "result"}, // result: ack, requeue, dead_letter
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	DBSlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	RemindersEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_emitted_total",
			Help: "Total number of reminder messages published",
		},
		[]string{"source"}, // source: emitter, sweeper
	)

	ReminderOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_outcomes_total",
			Help: "Total number of processed reminder messages by result",
		},
		[]string{"result"}, // result: sent, suppressed, failed
	)

	ActivityRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_records_total",
			Help: "Total number of processed activity messages by status",
		},
		[]string{"status"}, // status: success, failed
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half open)",
		},
		[]string{"name"},
	)

	ReminderSweepScanned = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_sweep_scanned",
			Help: "Number of candidate tasks scanned by the last reminder sweep",
		},
	)
)

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func IncrementMQMessage(queue, result string) {
	MQMessages.WithLabelValues(queue, result).Inc()
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery counts a slow query. The SQL text is not used as a label
// to keep cardinality bounded.
func IncrementSlowQuery(_ string, _ time.Duration) {
	DBSlowQueries.Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementReminderEmitted(source string) {
	RemindersEmitted.WithLabelValues(source).Inc()
}

func IncrementReminderOutcome(result string) {
	ReminderOutcomes.WithLabelValues(result).Inc()
}

func IncrementActivityRecord(status string) {
	ActivityRecords.WithLabelValues(status).Inc()
}

func SetReminderSweepScanned(n int) {
	ReminderSweepScanned.Set(float64(n))
}

func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
