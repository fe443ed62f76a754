package serverconfig

import (
	"github.com/mitchellh/go-homedir"
	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
	"github.com/nspcc-dev/persistcache/pkg/storage"
)

const (
	subsection = "server"

	// AddressDefault is a default address of the remote cache server.
	AddressDefault = "localhost:7070"

	// EngineDefault is a default database engine of the server.
	EngineDefault = storage.EngineBolt

	// ChunkSizeDefault is a default size of payload chunks.
	ChunkSizeDefault = remote.DefaultChunkSize
)

// Address returns the value of "address" config parameter
// from "server" section.
//
// Returns AddressDefault if the value is not set.
func Address(c *config.Config) string {
	v := config.StringSafe(c.Sub(subsection), "address")
	if v != "" {
		return v
	}

	return AddressDefault
}

// Path returns the value of "path" config parameter from "server" section
// with "~" expanded.
//
// Returns empty string if the value is not set.
func Path(c *config.Config) (string, error) {
	return homedir.Expand(config.StringSafe(c.Sub(subsection), "path"))
}

// Engine returns the value of "engine" config parameter
// from "server" section.
//
// Returns EngineDefault if the value is not set.
func Engine(c *config.Config) string {
	v := config.StringSafe(c.Sub(subsection), "engine")
	if v != "" {
		return v
	}

	return EngineDefault
}

// ChunkSize returns the value of "chunk_size" config parameter
// from "server" section.
//
// Returns ChunkSizeDefault if the value is not positive.
func ChunkSize(c *config.Config) int {
	v := config.SizeInBytesSafe(c.Sub(subsection), "chunk_size")
	if v > 0 && v <= 1<<31 {
		return int(v)
	}

	return ChunkSizeDefault
}
