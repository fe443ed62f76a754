package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const storeSubsystem = "store"

const (
	methodLabelKey = "method"
	hitLabelKey    = "hit"
)

type storeMetrics struct {
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
}

func newStoreMetrics() storeMetrics {
	return storeMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: storeSubsystem,
			Name:      "request_time",
			Help:      "Blob store request handling time",
		}, []string{methodLabelKey}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: storeSubsystem,
			Name:      "requests",
			Help:      "Number of blob store requests by result",
		}, []string{methodLabelKey, hitLabelKey}),
	}
}

func (m storeMetrics) register() {
	prometheus.MustRegister(m.requestDuration)
	prometheus.MustRegister(m.requests)
}

func (m storeMetrics) AddRequest(method string, hit bool, d time.Duration) {
	m.requestDuration.With(prometheus.Labels{methodLabelKey: method}).Observe(d.Seconds())
	m.requests.With(prometheus.Labels{
		methodLabelKey: method,
		hitLabelKey:    strconv.FormatBool(hit),
	}).Inc()
}
