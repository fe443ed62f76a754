package boltstore

import (
	"io/fs"
	"time"

	"go.uber.org/zap"
)

// Option is an option of Open.
type Option func(*cfg)

type cfg struct {
	log         *zap.Logger
	perm        fs.FileMode
	lockTimeout time.Duration
	noSync      bool
}

const (
	defaultPerm        = 0o600
	defaultLockTimeout = time.Second
)

func defaultCfg() *cfg {
	return &cfg{
		log:         zap.NewNop(),
		perm:        defaultPerm,
		lockTimeout: defaultLockTimeout,
	}
}

// WithLogger returns an option to specify logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithPermissions returns an option to specify permission bits of the
// database file.
func WithPermissions(perm fs.FileMode) Option {
	return func(c *cfg) {
		c.perm = perm
	}
}

// WithLockTimeout returns an option to specify how long Open waits for the
// file lock held by another process.
func WithLockTimeout(d time.Duration) Option {
	return func(c *cfg) {
		c.lockTimeout = d
	}
}

// WithNoSync returns an option to skip fsync after each commit. Use only for
// tests and disposable caches.
func WithNoSync(noSync bool) Option {
	return func(c *cfg) {
		c.noSync = noSync
	}
}
