package storage

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
)

// Handle is a reference to the root storage. Handle MUST be released by
// Release exactly once; using released Handle causes panic.
type Handle struct {
	m        *Manager
	st       *state
	store    blobstore.Store
	released atomic.Bool
}

var _ blobstore.Store = (*Handle)(nil)

func newHandle(m *Manager, st *state, s blobstore.Store) *Handle {
	return &Handle{m: m, st: st, store: s}
}

func (h *Handle) checkReleased() {
	if h.released.Load() {
		panic("use of released storage handle")
	}
}

// IsNoop checks whether h is served by no-op store.
func (h *Handle) IsNoop() bool {
	h.checkReleased()
	return h.st == nil
}

// ChecksumMatches implements blobstore.Store.
func (h *Handle) ChecksumMatches(ctx context.Context, scope blobstore.Scope, name string, sum checksum.Checksum) (bool, error) {
	h.checkReleased()
	return h.store.ChecksumMatches(ctx, scope, name, sum)
}

// ReadStream implements blobstore.Store.
func (h *Handle) ReadStream(ctx context.Context, scope blobstore.Scope, name string, sum checksum.Checksum) (io.ReadCloser, error) {
	h.checkReleased()
	return h.store.ReadStream(ctx, scope, name, sum)
}

// WriteStream implements blobstore.Store.
func (h *Handle) WriteStream(ctx context.Context, scope blobstore.Scope, name string, r io.Reader, sum checksum.Checksum) (bool, error) {
	h.checkReleased()
	return h.store.WriteStream(ctx, scope, name, r, sum)
}

// Release drops the reference. Backend is closed when its last handle is
// released.
func (h *Handle) Release() {
	if h.released.Swap(true) {
		panic("storage handle is released twice")
	}

	if h.st != nil {
		h.m.release(h.st)
	}
}
