package blobstore

import (
	"time"

	"github.com/nspcc-dev/persistcache/pkg/blobstore/compression"
	"github.com/nspcc-dev/persistcache/pkg/writebatch"
	"go.uber.org/zap"
)

// Option represents Batched constructor option.
type Option func(*options)

// Metrics collects Batched store statistics.
type Metrics interface {
	writebatch.Metrics

	// AddRequest registers Store method call with its result and duration.
	AddRequest(method string, hit bool, d time.Duration)
}

type options struct {
	log        *zap.Logger
	delay      time.Duration
	metrics    Metrics
	compressor *compression.Config
}

func defaultOptions() options {
	return options{
		log:     zap.NewNop(),
		delay:   writebatch.DefaultDelay,
		metrics: noopMetrics{},
	}
}

// WithLogger returns option to set Batched logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithCoalescingWindow returns option to set delay between the first queued
// write and the flush of everything queued.
func WithCoalescingWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithMetrics returns option to set Batched metrics.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCompressor returns option to set payload compressor. c MUST be
// initialized and is not closed by Batched.
func WithCompressor(c *compression.Config) Option {
	return func(o *options) {
		o.compressor = c
	}
}

type noopMetrics struct{}

func (noopMetrics) AddFlushDuration(string, time.Duration) {}
func (noopMetrics) AddAppliedActions(int)                  {}
func (noopMetrics) AddDroppedActions(int)                  {}
func (noopMetrics) IncFailedTransactions()                 {}
func (noopMetrics) AddRequest(string, bool, time.Duration) {}
