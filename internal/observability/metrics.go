// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	MessagesPolled   prometheus.Counter
	SignalsParsed    *prometheus.CounterVec
	SignalsRecorded  prometheus.Counter
	SignalsDuplicate prometheus.Counter
	PollErrors       prometheus.Counter

	// Decision metrics
	DecisionOutcomes *prometheus.CounterVec

	// Execution metrics
	ExecutionAttempts  *prometheus.CounterVec
	ExecutionsFinished *prometheus.CounterVec
	PriorityFee        prometheus.Histogram
	ConfirmLatency     prometheus.Histogram
	QueueDepth         prometheus.Gauge

	// Health metrics
	LastSignalTimestamp prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "copy_trade"
	}

	return &Metrics{
		MessagesPolled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "messages_polled_total",
			Help:      "Total number of channel messages fetched",
		}),
		SignalsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signals_parsed_total",
			Help:      "Total number of messages parsed into signals, by kind",
		}, []string{"kind"}),
		SignalsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signals_recorded_total",
			Help:      "Total number of signals stored for the first time",
		}),
		SignalsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signals_duplicate_total",
			Help:      "Total number of re-delivered signals skipped",
		}),
		PollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "poll_errors_total",
			Help:      "Total number of failed channel polls",
		}),

		DecisionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "outcomes_total",
			Help:      "Total number of decision outcomes by type",
		}, []string{"outcome"}),

		ExecutionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "attempts_total",
			Help:      "Total number of swap attempts by outcome",
		}, []string{"outcome"}),
		ExecutionsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "finished_total",
			Help:      "Total number of executions reaching a terminal status",
		}, []string{"status"}),
		PriorityFee: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "priority_fee_micro_lamports",
			Help:      "Priority fee attached to submitted transactions",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 10),
		}),
		ConfirmLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "confirm_latency_seconds",
			Help:      "Time from submission to confirmation",
			Buckets:   prometheus.DefBuckets,
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "queue_depth",
			Help:      "Current number of executions waiting for a worker",
		}),

		LastSignalTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_signal_timestamp_seconds",
			Help:      "Unix time of the most recently processed signal",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordMessagesPolled adds to the fetched message counter.
func RecordMessagesPolled(n int) {
	DefaultMetrics.MessagesPolled.Add(float64(n))
}

// RecordSignalParsed increments the parsed signal counter for a kind.
func RecordSignalParsed(kind string) {
	DefaultMetrics.SignalsParsed.WithLabelValues(kind).Inc()
}

// RecordSignalRecorded increments the stored signal counter and refreshes
// the health timestamp.
func RecordSignalRecorded(unixSeconds int64) {
	DefaultMetrics.SignalsRecorded.Inc()
	DefaultMetrics.LastSignalTimestamp.Set(float64(unixSeconds))
}

// RecordSignalDuplicate increments the re-delivery counter.
func RecordSignalDuplicate() {
	DefaultMetrics.SignalsDuplicate.Inc()
}

// RecordPollError increments the failed poll counter.
func RecordPollError() {
	DefaultMetrics.PollErrors.Inc()
}

// RecordDecision increments the decision outcome counter.
func RecordDecision(outcome string) {
	DefaultMetrics.DecisionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordAttempt records one swap attempt with its priority fee.
func RecordAttempt(outcome string, priorityFee uint64) {
	DefaultMetrics.ExecutionAttempts.WithLabelValues(outcome).Inc()
	DefaultMetrics.PriorityFee.Observe(float64(priorityFee))
}

// RecordExecutionFinished increments the terminal status counter.
func RecordExecutionFinished(status string) {
	DefaultMetrics.ExecutionsFinished.WithLabelValues(status).Inc()
}

// RecordConfirmLatency records submit-to-confirm latency.
func RecordConfirmLatency(seconds float64) {
	DefaultMetrics.ConfirmLatency.Observe(seconds)
}

// SetQueueDepth updates the worker queue gauge.
func SetQueueDepth(depth int) {
	DefaultMetrics.QueueDepth.Set(float64(depth))
}
