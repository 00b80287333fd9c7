package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduler metrics
	TicksTotal     *prometheus.CounterVec
	TickDuration   *prometheus.HistogramVec
	TicksSkipped   *prometheus.CounterVec
	LeadsEvaluated *prometheus.CounterVec
	LeadErrors     *prometheus.CounterVec
	BreachesMarked prometheus.Counter

	// Notification metrics
	NotificationsSent       *prometheus.CounterVec
	NotificationsFailed     *prometheus.CounterVec
	NotificationsSuppressed *prometheus.CounterVec
	DispatchRetries         *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// New creates the metric set without registering it, so tests can build
// as many as they need.
func New(namespace string) *Metrics {
	return &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks by check and outcome",
		}, []string{"check", "status"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Time spent running one scheduler tick",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"check"}),
		TicksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_skipped_total",
			Help:      "Ticks skipped because a previous tick of the same check was still running",
		}, []string{"check", "reason"}),
		LeadsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "leads_evaluated_total",
			Help:      "Total number of leads evaluated by check",
		}, []string{"check"}),
		LeadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "lead_errors_total",
			Help:      "Per-lead failures caught during a scan",
		}, []string{"check"}),
		BreachesMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "breaches_marked_total",
			Help:      "Total number of leads transitioned to sla_breached",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Notifications delivered by message type",
		}, []string{"message_type"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "failed_total",
			Help:      "Notifications abandoned after the retry budget",
		}, []string{"message_type"}),
		NotificationsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "suppressed_total",
			Help:      "Notifications skipped because one was already sent",
		}, []string{"message_type"}),
		DispatchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "retry_attempts_total",
			Help:      "Total number of transport retry attempts",
		}, []string{"message_type"}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.TicksSkipped,
		m.LeadsEvaluated,
		m.LeadErrors,
		m.BreachesMarked,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.NotificationsSuppressed,
		m.DispatchRetries,
		m.DatabaseOperations,
		m.DatabaseLatency,
	)
}

// ObserveDB records the outcome of one database operation.
func (m *Metrics) ObserveDB(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DatabaseOperations.WithLabelValues(operation, status).Inc()
}
