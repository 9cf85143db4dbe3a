// Package metrics provides Prometheus metrics for the reminder engine.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values shared by the recorders
const (
	StatusScheduled = "scheduled"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"

	DecisionShow     = "show"
	DecisionSuppress = "suppress"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ReminderMetrics contains all Prometheus metrics related to reminder
// scheduling and delivery.
// A nil *ReminderMetrics is valid and records nothing.
type ReminderMetrics struct {
	ScheduledTotal    *prometheus.CounterVec // Scheduling attempts by kind and status
	DecisionsTotal    *prometheus.CounterVec // Fire-time decisions by payload type and decision
	ActionsTotal      *prometheus.CounterVec // Notification responses by action and result
	CancelledTotal    prometheus.Counter     // Notifications withdrawn
	FollowUpsPending  prometheus.Gauge       // Pending follow-ups in memory
	Orphans           *prometheus.GaugeVec   // Orphans found by the last reconciliation, by direction
	RescheduleSeconds prometheus.Histogram   // Duration of full reschedules
	ResponseErrors    *prometheus.CounterVec // Recovered response handler failures by action

	registry *prometheus.Registry
}

// NewReminderMetrics creates a new instance of ReminderMetrics and
// registers it with registry.
func NewReminderMetrics(registry *prometheus.Registry) (*ReminderMetrics, error) {
	m := &ReminderMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register reminder metrics: %w", err)
	}
	return m, nil
}

func (m *ReminderMetrics) initMetrics() {
	m.ScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_scheduled_total",
			Help: "Total number of reminder scheduling attempts by notification kind and status",
		},
		[]string{"kind", "status"}, // status: scheduled, skipped, failed
	)

	m.DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_decisions_total",
			Help: "Total number of fire-time display decisions by payload type and decision",
		},
		[]string{"payload_type", "decision"},
	)

	m.ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_actions_total",
			Help: "Total number of notification responses by action and result",
		},
		[]string{"action", "result"},
	)

	m.CancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_cancelled_total",
			Help: "Total number of scheduled notifications withdrawn",
		},
	)

	m.FollowUpsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminders_followups_pending",
			Help: "Number of follow-up notifications currently pending",
		},
	)

	m.Orphans = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reminders_orphans",
			Help: "Orphans found by the most recent reconciliation (mapping=mapping without notification, notification=notification without mapping)",
		},
		[]string{"direction"},
	)

	m.RescheduleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminders_reschedule_all_duration_seconds",
			Help:    "Time taken to cancel and reschedule every reminder",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
	)

	m.ResponseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_response_errors_total",
			Help: "Total number of recovered notification response failures by action",
		},
		[]string{"action"},
	)
}

// RecordScheduled records a scheduling attempt
func (m *ReminderMetrics) RecordScheduled(kind, status string) {
	if m == nil {
		return
	}
	m.ScheduledTotal.WithLabelValues(kind, status).Inc()
}

// RecordDecision records a fire-time decision
func (m *ReminderMetrics) RecordDecision(payloadType string, shown bool) {
	if m == nil {
		return
	}
	decision := DecisionSuppress
	if shown {
		decision = DecisionShow
	}
	m.DecisionsTotal.WithLabelValues(payloadType, decision).Inc()
}

// RecordAction records a handled notification response
func (m *ReminderMetrics) RecordAction(action string, ok bool) {
	if m == nil {
		return
	}
	result := ResultFailure
	if ok {
		result = ResultSuccess
	}
	m.ActionsTotal.WithLabelValues(action, result).Inc()
}

// RecordCancelled counts withdrawn notifications
func (m *ReminderMetrics) RecordCancelled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CancelledTotal.Add(float64(n))
}

// SetFollowUpsPending sets the pending follow-up gauge
func (m *ReminderMetrics) SetFollowUpsPending(n int) {
	if m == nil {
		return
	}
	m.FollowUpsPending.Set(float64(n))
}

// SetOrphans records the result of a reconciliation
func (m *ReminderMetrics) SetOrphans(mappings, notifications int) {
	if m == nil {
		return
	}
	m.Orphans.WithLabelValues("mapping").Set(float64(mappings))
	m.Orphans.WithLabelValues("notification").Set(float64(notifications))
}

// ObserveReschedule records how long a full reschedule took
func (m *ReminderMetrics) ObserveReschedule(d time.Duration) {
	if m == nil {
		return
	}
	m.RescheduleSeconds.Observe(d.Seconds())
}

// RecordResponseError counts a recovered response handler failure
func (m *ReminderMetrics) RecordResponseError(action string) {
	if m == nil {
		return
	}
	m.ResponseErrors.WithLabelValues(action).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *ReminderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ScheduledTotal.Collect(ch)
	m.DecisionsTotal.Collect(ch)
	m.ActionsTotal.Collect(ch)
	m.CancelledTotal.Collect(ch)
	m.FollowUpsPending.Collect(ch)
	m.Orphans.Collect(ch)
	m.RescheduleSeconds.Collect(ch)
	m.ResponseErrors.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *ReminderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ScheduledTotal.Describe(ch)
	m.DecisionsTotal.Describe(ch)
	m.ActionsTotal.Describe(ch)
	m.CancelledTotal.Describe(ch)
	m.FollowUpsPending.Describe(ch)
	m.Orphans.Describe(ch)
	m.RescheduleSeconds.Describe(ch)
	m.ResponseErrors.Describe(ch)
}
