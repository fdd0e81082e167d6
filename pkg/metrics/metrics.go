// Package metrics exposes the Prometheus counters for staffing and reminders.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every counter the engine updates
type Metrics struct {
	reg *prometheus.Registry

	CapacityRejections  prometheus.Counter
	CapacityInvariant   prometheus.Counter
	RemindersScheduled  prometheus.Counter
	RemindersDispatched prometheus.Counter
	RemindersStale      prometheus.Counter
	DispatchFailures    *prometheus.CounterVec
	EscalationsSent     prometheus.Counter
	EscalationsSkipped  *prometheus.CounterVec
	EscalationFailures  *prometheus.CounterVec
	QueueWriteFailures  *prometheus.CounterVec
}

// New registers the counters on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		CapacityRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "staffing_capacity_rejections_total",
			Help: "Reservations refused because the job slot had no openings.",
		}),
		CapacityInvariant: f.NewCounter(prometheus.CounterOpts{
			Name: "staffing_capacity_invariant_violations_total",
			Help: "Releases that would have pushed openings above slots.",
		}),
		RemindersScheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "staffing_reminders_scheduled_total",
			Help: "Reminder entries written to the timer queue.",
		}),
		RemindersDispatched: f.NewCounter(prometheus.CounterOpts{
			Name: "staffing_reminders_dispatched_total",
			Help: "Reminders turned into worker notifications.",
		}),
		RemindersStale: f.NewCounter(prometheus.CounterOpts{
			Name: "staffing_reminders_stale_total",
			Help: "Reminders dropped because their event or assignment is gone.",
		}),
		DispatchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "staffing_reminder_dispatch_failures_total",
			Help: "Reminder entries that failed to dispatch, by stage.",
		}, []string{"stage"}),
		EscalationsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "staffing_escalations_sent_total",
			Help: "Manager notifications created for unconfirmed reminders.",
		}),
		EscalationsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "staffing_escalations_skipped_total",
			Help: "Escalation checks that did nothing, by reason.",
		}, []string{"reason"}),
		EscalationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "staffing_escalation_failures_total",
			Help: "Escalation checks that could not complete, by reason.",
		}, []string{"reason"}),
		QueueWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "staffing_timer_queue_write_failures_total",
			Help: "Timer queue writes that failed, by operation.",
		}, []string{"op"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry, e.g. for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
