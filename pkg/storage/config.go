package storage

import (
	"time"

	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
)

// Backend kinds.
const (
	BackendEmbedded = "embedded-db"
	BackendRemote   = "remote-cache"
	BackendDisabled = "disabled"
)

// Embedded database engines.
const (
	EngineBolt   = "bolt"
	EngineSQLite = "sqlite"
)

// DefaultSizeThreshold is a default minimum approximate size of the root
// contents the backend is opened for.
const DefaultSizeThreshold = 50 << 20

// Config groups Manager parameters.
type Config struct {
	// Backend is one of BackendEmbedded, BackendRemote or BackendDisabled.
	Backend string
	// Engine is one of EngineBolt or EngineSQLite. Used by BackendEmbedded.
	Engine string
	// Dir is a directory of embedded database files. Empty means root's
	// working directory.
	Dir string
	// SizeThreshold is a minimum approximate size of the root contents
	// for which the backend is created.
	SizeThreshold int64
	// CoalescingWindow is a delay between the first queued write and the
	// batched flush.
	CoalescingWindow time.Duration
	// Compression configures payload compression.
	Compression CompressionConfig
	// Remote configures remote cache connection. Used by BackendRemote.
	Remote remote.Config
	// TeardownWorkers limits number of backends closed in background.
	TeardownWorkers int
}

// CompressionConfig groups payload compression parameters.
type CompressionConfig struct {
	Enabled bool
	MinSize int
}

const defaultTeardownWorkers = 4
