// Package metrics exposes prometheus collectors for the ledger server.
//
// All recording methods are safe to call on a nil *Metrics, so components can
// run without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "splitledger"

// Metrics holds every collector the server records to.
type Metrics struct {
	transactionsPosted      *prometheus.CounterVec
	schedulesProcessed      *prometheus.CounterVec
	occurrencesMaterialized prometheus.Counter
	notificationsSent       prometheus.Counter
	notificationsDropped    prometheus.Counter
	rpcDuration             *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactionsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_posted_total",
			Help:      "Transactions written to the ledger, by type.",
		}, []string{"type"}),
		schedulesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_processed_total",
			Help:      "Due schedules handled by the processor, by outcome.",
		}, []string{"outcome"}),
		occurrencesMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_occurrences_materialized_total",
			Help:      "Transactions created from schedule occurrences.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notification batches handed to the sender.",
		}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notification batches dropped because the queue was full.",
		}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC handling latency, by procedure and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}

	reg.MustRegister(
		m.transactionsPosted,
		m.schedulesProcessed,
		m.occurrencesMaterialized,
		m.notificationsSent,
		m.notificationsDropped,
		m.rpcDuration,
	)
	return m
}

func (m *Metrics) TransactionPosted(txType string) {
	if m == nil {
		return
	}
	m.transactionsPosted.WithLabelValues(txType).Inc()
}

func (m *Metrics) ScheduleSucceeded(occurrences int) {
	if m == nil {
		return
	}
	m.schedulesProcessed.WithLabelValues("succeeded").Inc()
	m.occurrencesMaterialized.Add(float64(occurrences))
}

func (m *Metrics) ScheduleFailed() {
	if m == nil {
		return
	}
	m.schedulesProcessed.WithLabelValues("failed").Inc()
}

func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.notificationsSent.Inc()
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}

// ObserveRPC records how long one RPC took.
func (m *Metrics) ObserveRPC(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(procedure, code).Observe(elapsed.Seconds())
}
