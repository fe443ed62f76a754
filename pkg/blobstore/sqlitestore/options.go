package sqlitestore

import (
	"time"

	"go.uber.org/zap"
)

// Option is an option of Open.
type Option func(*cfg)

type cfg struct {
	log         *zap.Logger
	busyTimeout time.Duration
	maxConns    int
	noSync      bool
}

const (
	defaultBusyTimeout = 5 * time.Second
	defaultMaxConns    = 4
)

func defaultCfg() *cfg {
	return &cfg{
		log:         zap.NewNop(),
		busyTimeout: defaultBusyTimeout,
		maxConns:    defaultMaxConns,
	}
}

// WithLogger returns an option to specify logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithBusyTimeout returns an option to specify how long queries wait for
// the database locked by another connection.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *cfg) {
		c.busyTimeout = d
	}
}

// WithMaxConnections returns an option to limit number of open connections.
func WithMaxConnections(n int) Option {
	return func(c *cfg) {
		if n > 0 {
			c.maxConns = n
		}
	}
}

// WithNoSync returns an option to disable fsync. Use only for tests and
// disposable caches.
func WithNoSync(noSync bool) Option {
	return func(c *cfg) {
		c.noSync = noSync
	}
}
