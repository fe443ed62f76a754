package writebatch

import (
	"time"

	"go.uber.org/zap"
)

// DefaultDelay is a default coalescing window.
const DefaultDelay = 500 * time.Millisecond

// Option represents Batcher configuration option.
type Option func(*options)

// Metrics is an interface of Batcher metrics collector.
type Metrics interface {
	// AddFlushDuration records duration of a flush of given kind: "all" for
	// full flushes and "key" for single-key ones.
	AddFlushDuration(kind string, d time.Duration)
	// AddAppliedActions records number of committed actions.
	AddAppliedActions(n int)
	// AddDroppedActions records number of actions lost due to failures or
	// shutdown.
	AddDroppedActions(n int)
	// IncFailedTransactions records rolled back transaction.
	IncFailedTransactions()
}

type options struct {
	log     *zap.Logger
	delay   time.Duration
	metrics Metrics
}

func defaultOptions() options {
	return options{
		log:     zap.NewNop(),
		delay:   DefaultDelay,
		metrics: noopMetrics{},
	}
}

// WithLogger sets logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithDelay sets coalescing window. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithMetrics sets metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) AddFlushDuration(string, time.Duration) {}
func (noopMetrics) AddAppliedActions(int)                  {}
func (noopMetrics) AddDroppedActions(int)                  {}
func (noopMetrics) IncFailedTransactions()                 {}
