package storage

import (
	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/util"
	"go.uber.org/zap"
)

// Option is an option of NewManager.
type Option func(*cfg)

// Metrics collects Manager statistics.
type Metrics interface {
	// SetOpenBackends sets number of currently open backends.
	SetOpenBackends(n int)
	// IncOpenFailures registers failed backend open attempt.
	IncOpenFailures()
	// IncNoopHandles registers handle served by no-op store for the reason.
	IncNoopHandles(reason string)
}

type cfg struct {
	log          *zap.Logger
	opener       Opener
	metrics      Metrics
	storeMetrics blobstore.Metrics
	teardownPool util.WorkerPool
}

func defaultCfg() *cfg {
	return &cfg{
		log:     zap.NewNop(),
		metrics: noopMetrics{},
	}
}

// WithLogger returns an option to specify Manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithOpener returns an option to override Opener constructed from Config.
func WithOpener(o Opener) Option {
	return func(c *cfg) {
		c.opener = o
	}
}

// WithMetrics returns an option to specify Manager metrics.
func WithMetrics(m Metrics) Option {
	return func(c *cfg) {
		c.metrics = m
	}
}

// WithStoreMetrics returns an option to specify metrics of stores served by
// Manager.
func WithStoreMetrics(m blobstore.Metrics) Option {
	return func(c *cfg) {
		c.storeMetrics = m
	}
}

// WithTeardownPool returns an option to specify pool closing backends in
// background. Manager releases the pool on Close. Config.TeardownWorkers is
// ignored.
func WithTeardownPool(p util.WorkerPool) Option {
	return func(c *cfg) {
		c.teardownPool = p
	}
}

type noopMetrics struct{}

func (noopMetrics) SetOpenBackends(int)   {}
func (noopMetrics) IncOpenFailures()      {}
func (noopMetrics) IncNoopHandles(string) {}
