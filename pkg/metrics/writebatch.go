package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const writeBatchSubsystem = "writebatch"

const flushKindLabelKey = "kind"

type writeBatchMetrics struct {
	flushDuration      *prometheus.HistogramVec
	appliedActions     prometheus.Counter
	droppedActions     prometheus.Counter
	failedTransactions prometheus.Counter
}

func newWriteBatchMetrics() writeBatchMetrics {
	return writeBatchMetrics{
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: writeBatchSubsystem,
			Name:      "flush_time",
			Help:      "Write batch flush handling time",
		}, []string{flushKindLabelKey}),
		appliedActions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: writeBatchSubsystem,
			Name:      "applied_writes",
			Help:      "Number of committed queued writes",
		}),
		droppedActions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: writeBatchSubsystem,
			Name:      "dropped_writes",
			Help:      "Number of lost queued writes",
		}),
		failedTransactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: writeBatchSubsystem,
			Name:      "failed_transactions",
			Help:      "Number of rolled back write transactions",
		}),
	}
}

func (m writeBatchMetrics) register() {
	prometheus.MustRegister(m.flushDuration)
	prometheus.MustRegister(m.appliedActions)
	prometheus.MustRegister(m.droppedActions)
	prometheus.MustRegister(m.failedTransactions)
}

func (m writeBatchMetrics) AddFlushDuration(kind string, d time.Duration) {
	m.flushDuration.With(prometheus.Labels{flushKindLabelKey: kind}).Observe(d.Seconds())
}

func (m writeBatchMetrics) AddAppliedActions(n int) {
	m.appliedActions.Add(float64(n))
}

func (m writeBatchMetrics) AddDroppedActions(n int) {
	m.droppedActions.Add(float64(n))
}

func (m writeBatchMetrics) IncFailedTransactions() {
	m.failedTransactions.Inc()
}
