package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const serverSubsystem = "server"

const codeLabelKey = "code"

type serverMetrics struct {
	requestDuration *prometheus.HistogramVec
}

func newServerMetrics() serverMetrics {
	return serverMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serverSubsystem,
			Name:      "request_time",
			Help:      "Remote cache RPC handling time",
		}, []string{methodLabelKey, codeLabelKey}),
	}
}

func (m serverMetrics) register() {
	prometheus.MustRegister(m.requestDuration)
}

func (m serverMetrics) AddServerRequest(method string, code string, d time.Duration) {
	m.requestDuration.With(prometheus.Labels{
		methodLabelKey: method,
		codeLabelKey:   code,
	}).Observe(d.Seconds())
}
