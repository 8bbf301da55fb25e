package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec

	// Outbox
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec
	OutboxPurged            prometheus.Counter

	// Scheduled jobs
	JobRuns *prometheus.CounterVec

	// Notifications
	NotificationsSent *prometheus.CounterVec

	// Database
	DatabaseOperations *prometheus.CounterVec
}

// New creates the metrics and registers them on reg (the default registerer when nil).
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path", "status"}),
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		OutboxEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of outbox events that exhausted their retries",
		}),
		OutboxProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing one outbox batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
		OutboxPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_purged_total",
			Help:      "Processed outbox events removed after retention",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs by job and result",
		}, []string{"job", "status"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notifications handed to a delivery channel",
		}, []string{"channel", "status"}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}

	reg.MustRegister(
		m.RequestDuration,
		m.RequestTotal,
		m.OutboxEventsProcessed,
		m.OutboxEventsFailed,
		m.OutboxProcessingLatency,
		m.OutboxRetries,
		m.OutboxPurged,
		m.JobRuns,
		m.NotificationsSent,
		m.DatabaseOperations,
	)
	return m
}

// NewNop returns metrics registered on a private registry, for tests and tools.
func NewNop() *Metrics {
	return New("test", prometheus.NewRegistry())
}
