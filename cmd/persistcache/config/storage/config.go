package storageconfig

import (
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/compression"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/storage"
)

const (
	subsection            = "storage"
	compressionSubsection = "compression"
	checksumSubsection    = "checksum"

	// BackendDefault is a default backend kind.
	BackendDefault = storage.BackendEmbedded

	// EngineDefault is a default embedded database engine.
	EngineDefault = storage.EngineBolt

	// SizeThresholdDefault is a default minimum size of the root contents.
	SizeThresholdDefault = storage.DefaultSizeThreshold

	// CoalescingWindowDefault is a default delay of the batched flush.
	CoalescingWindowDefault = 500 * time.Millisecond

	// CompressionMinSizeDefault is a default minimum size of compressed
	// payloads.
	CompressionMinSizeDefault = compression.DefaultMinSize

	// ChecksumAlgorithmDefault is a default hashing algorithm.
	ChecksumAlgorithmDefault = checksum.AlgorithmBLAKE3
)

// Backend returns the value of "backend" config parameter
// from "storage" section.
//
// Returns BackendDefault if the value is not set.
func Backend(c *config.Config) string {
	v := config.StringSafe(c.Sub(subsection), "backend")
	if v != "" {
		return v
	}

	return BackendDefault
}

// Engine returns the value of "engine" config parameter
// from "storage" section.
//
// Returns EngineDefault if the value is not set.
func Engine(c *config.Config) string {
	v := config.StringSafe(c.Sub(subsection), "engine")
	if v != "" {
		return v
	}

	return EngineDefault
}

// Path returns the value of "path" config parameter
// from "storage" section with "~" expanded.
//
// Returns empty string if the value is not set, databases are placed in
// root working directories then.
func Path(c *config.Config) (string, error) {
	return homedir.Expand(config.StringSafe(c.Sub(subsection), "path"))
}

// SizeThreshold returns the value of "size_threshold" config parameter
// from "storage" section.
//
// Returns SizeThresholdDefault if the value is not positive.
func SizeThreshold(c *config.Config) int64 {
	v := config.SizeInBytesSafe(c.Sub(subsection), "size_threshold")
	if v > 0 && v <= 1<<62 {
		return int64(v)
	}

	return SizeThresholdDefault
}

// CoalescingWindow returns the value of "coalescing_window" config
// parameter from "storage" section.
//
// Returns CoalescingWindowDefault if the value is not set. Zero and
// negative values are returned as is and disable deferred flushes.
func CoalescingWindow(c *config.Config) time.Duration {
	s := c.Sub(subsection)
	if s.Value("coalescing_window") == nil {
		return CoalescingWindowDefault
	}

	return config.DurationSafe(s, "coalescing_window")
}

// TeardownWorkers returns the value of "teardown_workers" config parameter
// from "storage" section.
//
// Returns 0 if the value is not set, Manager picks its own default.
func TeardownWorkers(c *config.Config) int {
	return int(config.IntSafe(c.Sub(subsection), "teardown_workers"))
}

// CompressionEnabled returns the value of "enabled" config parameter
// from "storage.compression" section.
//
// Returns true if the value is missing.
func CompressionEnabled(c *config.Config) bool {
	v := config.BoolPtr(c.Sub(subsection).Sub(compressionSubsection), "enabled")
	return v == nil || *v
}

// CompressionMinSize returns the value of "min_size" config parameter
// from "storage.compression" section.
//
// Returns CompressionMinSizeDefault if the value is not positive.
func CompressionMinSize(c *config.Config) int {
	v := config.SizeInBytesSafe(c.Sub(subsection).Sub(compressionSubsection), "min_size")
	if v > 0 && v <= 1<<31 {
		return int(v)
	}

	return CompressionMinSizeDefault
}

// ChecksumAlgorithm returns the value of "algorithm" config parameter
// from "checksum" section.
//
// Returns ChecksumAlgorithmDefault if the value is not set.
func ChecksumAlgorithm(c *config.Config) string {
	v := config.StringSafe(c.Sub(checksumSubsection), "algorithm")
	if v != "" {
		return v
	}

	return ChecksumAlgorithmDefault
}
