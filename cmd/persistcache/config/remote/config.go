package remoteconfig

import (
	"time"

	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
)

const (
	subsection = "remote"

	// DialTimeoutDefault is a default timeout of connection to a single
	// endpoint.
	DialTimeoutDefault = 5 * time.Second

	// ChunkSizeDefault is a default size of payload chunks.
	ChunkSizeDefault = remote.DefaultChunkSize

	// CommitTimeoutDefault is a default timeout of a single commit.
	CommitTimeoutDefault = time.Minute
)

// Endpoints returns the value of "endpoints" config parameter
// from "remote" section.
//
// Returns nil if the value is missing or invalid.
func Endpoints(c *config.Config) []string {
	return config.StringSliceSafe(c.Sub(subsection), "endpoints")
}

// DialTimeout returns the value of "dial_timeout" config parameter
// from "remote" section.
//
// Returns DialTimeoutDefault if the value is not positive duration.
func DialTimeout(c *config.Config) time.Duration {
	v := config.DurationSafe(c.Sub(subsection), "dial_timeout")
	if v > 0 {
		return v
	}

	return DialTimeoutDefault
}

// ChunkSize returns the value of "chunk_size" config parameter
// from "remote" section.
//
// Returns ChunkSizeDefault if the value is not positive.
func ChunkSize(c *config.Config) int {
	v := config.SizeInBytesSafe(c.Sub(subsection), "chunk_size")
	if v > 0 && v <= 1<<31 {
		return int(v)
	}

	return ChunkSizeDefault
}

// CommitTimeout returns the value of "commit_timeout" config parameter
// from "remote" section.
//
// Returns CommitTimeoutDefault if the value is not positive duration.
func CommitTimeout(c *config.Config) time.Duration {
	v := config.DurationSafe(c.Sub(subsection), "commit_timeout")
	if v > 0 {
		return v
	}

	return CommitTimeoutDefault
}
