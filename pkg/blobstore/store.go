package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/writebatch"
)

// ErrNotFound is returned by Backend methods when requested entry is missing.
var ErrNotFound = errors.New("entry not found")

// ErrShuttingDown is returned by Backend.Begin when the backend is closing.
var ErrShuttingDown = writebatch.ErrShuttingDown

// Store is a persistent storage of named blobs scoped to workspace entities.
//
// Store methods treat storage failures as cache misses and return errors of
// the caller only: context errors and failures of the written stream.
type Store interface {
	// ChecksumMatches checks whether blob with the given name is stored in
	// the scope with the given checksum without reading its payload.
	// checksum.Null matches any stored blob with this name.
	ChecksumMatches(ctx context.Context, scope Scope, name string, sum checksum.Checksum) (bool, error)

	// ReadStream returns reader of the named blob stored in the scope with
	// the given checksum. checksum.Null matches any stored blob with this
	// name. Returns nil reader on miss. Caller MUST close the non-nil reader.
	ReadStream(ctx context.Context, scope Scope, name string, sum checksum.Checksum) (io.ReadCloser, error)

	// WriteStream stores r contents as the named blob in the scope with the
	// given checksum. Returns false if the scope is unavailable. True means
	// that the blob is accepted: it may be persisted later, but it is
	// observed by the subsequent reads from the same Store. r is read
	// entirely into memory before the call returns, so unlike ReadStream
	// memory usage grows with the blob size.
	WriteStream(ctx context.Context, scope Scope, name string, r io.Reader, sum checksum.Checksum) (bool, error)
}

// Backend is a raw transactional storage of blobs by binary keys. Keys are
// produced by EntryKey.Bytes. Each entry holds payload and checksum it was
// written with.
//
// Backend MUST be safe for concurrent use. Reads are served from the committed
// state and do not require transactions.
type Backend interface {
	// Checksum returns checksum stored along with the entry. Returns
	// ErrNotFound if entry is missing.
	Checksum(ctx context.Context, key []byte) (checksum.Checksum, error)

	// Open returns reader of the entry payload and its checksum. Returns
	// ErrNotFound if entry is missing. Caller MUST close the reader.
	Open(ctx context.Context, key []byte) (io.ReadCloser, checksum.Checksum, error)

	// Begin starts write transaction. Returns ErrShuttingDown if Backend is
	// being closed.
	Begin(ctx context.Context) (Tx, error)

	// Close closes Backend. Transactions started after Close is called fail
	// with ErrShuttingDown.
	Close() error
}

// Tx is a Backend write transaction. Tx is not safe for concurrent use.
type Tx interface {
	writebatch.Tx

	// Put saves the entry overwriting the existing one.
	Put(key []byte, sum checksum.Checksum, data []byte) error
}

// EntryInfo describes stored entry.
type EntryInfo struct {
	Key      []byte
	Checksum checksum.Checksum
	// Size is a size of the stored payload, probably compressed.
	Size int
}

// Lister is implemented by Backends which can list stored entries.
type Lister interface {
	// Iterate calls f for each stored entry in key order. Errors returned
	// by f are returned as is.
	Iterate(ctx context.Context, f func(EntryInfo) error) error
}

// ErrUnavailable is returned by Backend constructors when the storage is
// temporarily inaccessible, e.g. locked by another process. Unlike other
// construction failures, it does not indicate that the stored data is
// broken.
var ErrUnavailable = errors.New("backend is unavailable")
