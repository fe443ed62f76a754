package metrics

import "github.com/prometheus/client_golang/prometheus"

const storageSubsystem = "storage"

const reasonLabelKey = "reason"

type storageMetrics struct {
	openBackends prometheus.Gauge
	openFailures prometheus.Counter
	noopHandles  *prometheus.CounterVec
}

func newStorageMetrics() storageMetrics {
	return storageMetrics{
		openBackends: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: storageSubsystem,
			Name:      "open_backends",
			Help:      "Number of open root backends",
		}),
		openFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: storageSubsystem,
			Name:      "open_failures",
			Help:      "Number of failed backend open attempts",
		}),
		noopHandles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: storageSubsystem,
			Name:      "noop_handles",
			Help:      "Number of storage handles served without persistence",
		}, []string{reasonLabelKey}),
	}
}

func (m storageMetrics) register() {
	prometheus.MustRegister(m.openBackends)
	prometheus.MustRegister(m.openFailures)
	prometheus.MustRegister(m.noopHandles)
}

func (m storageMetrics) SetOpenBackends(n int) {
	m.openBackends.Set(float64(n))
}

func (m storageMetrics) IncOpenFailures() {
	m.openFailures.Inc()
}

func (m storageMetrics) IncNoopHandles(reason string) {
	m.noopHandles.With(prometheus.Labels{reasonLabelKey: reason}).Inc()
}
