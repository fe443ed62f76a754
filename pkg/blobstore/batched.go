package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/writebatch"
	"go.uber.org/zap"
)

// Store method names used in metrics and logs.
const (
	methodChecksumMatches = "checksum_matches"
	methodReadStream      = "read_stream"
	methodWriteStream     = "write_stream"
)

// Batched is a Store over a Backend. Writes are queued and applied in
// batched transactions after the coalescing window. Reads and existence
// checks force pending writes of the requested entry first.
type Batched struct {
	options

	backend Backend
	batcher *writebatch.Batcher[string, Tx]
}

var _ Store = (*Batched)(nil)

// New constructs Batched store over the Backend. Batched does not own the
// Backend: it must be closed by the caller after Batched.Close.
func New(b Backend, opts ...Option) *Batched {
	s := &Batched{
		options: defaultOptions(),
		backend: b,
	}

	for i := range opts {
		opts[i](&s.options)
	}

	s.batcher = writebatch.New[string](b.Begin,
		writebatch.WithLogger(s.log),
		writebatch.WithDelay(s.delay),
		writebatch.WithMetrics(s.metrics),
	)

	return s
}

// ChecksumMatches implements Store.
func (s *Batched) ChecksumMatches(ctx context.Context, scope Scope, name string, sum checksum.Checksum) (bool, error) {
	if !scope.Valid() {
		return false, ctx.Err()
	}

	var (
		start = time.Now()
		key   = EntryKey{Scope: scope, Name: name}.Bytes()
		match bool
	)
	defer func() {
		s.metrics.AddRequest(methodChecksumMatches, match, time.Since(start))
	}()

	if err := s.batcher.Flush(ctx, string(key)); err != nil {
		return false, err
	}

	stored, err := s.backend.Checksum(ctx, key)
	if err != nil {
		return false, s.handleReadError(ctx, methodChecksumMatches, scope, name, err)
	}

	match = sum.IsNull() || stored == sum
	return match, nil
}

// ReadStream implements Store.
func (s *Batched) ReadStream(ctx context.Context, scope Scope, name string, sum checksum.Checksum) (io.ReadCloser, error) {
	if !scope.Valid() {
		return nil, ctx.Err()
	}

	var (
		start = time.Now()
		key   = EntryKey{Scope: scope, Name: name}.Bytes()
		hit   bool
	)
	defer func() {
		s.metrics.AddRequest(methodReadStream, hit, time.Since(start))
	}()

	if err := s.batcher.Flush(ctx, string(key)); err != nil {
		return nil, err
	}

	r, stored, err := s.backend.Open(ctx, key)
	if err != nil {
		return nil, s.handleReadError(ctx, methodReadStream, scope, name, err)
	}

	if !sum.IsNull() && stored != sum {
		_ = r.Close()
		return nil, nil
	}

	if s.compressor != nil {
		r, err = s.compressor.DecompressReader(r)
		if err != nil {
			return nil, s.handleReadError(ctx, methodReadStream, scope, name, err)
		}
	}

	hit = true
	return r, nil
}

func (s *Batched) handleReadError(ctx context.Context, method string, scope Scope, name string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if !errors.Is(err, ErrNotFound) {
		s.log.Warn("blob storage failure, treating as a miss",
			zap.String("method", method),
			zap.Stringer("scope", scope),
			zap.String("name", name),
			zap.Error(err))
	}

	return nil
}

// WriteStream implements Store. r is buffered entirely until the queued
// write is committed.
func (s *Batched) WriteStream(ctx context.Context, scope Scope, name string, r io.Reader, sum checksum.Checksum) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if !scope.Valid() {
		return false, nil
	}

	var (
		start    = time.Now()
		accepted bool
	)
	defer func() {
		s.metrics.AddRequest(methodWriteStream, accepted, time.Since(start))
	}()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return false, fmt.Errorf("read blob stream: %w", err)
	}

	data := buf.Bytes()
	if s.compressor != nil {
		data = s.compressor.Compress(data)
	}

	key := EntryKey{Scope: scope, Name: name}.Bytes()
	accepted = s.batcher.Enqueue(string(key), func(tx Tx) error {
		return tx.Put(key, sum, data)
	})

	return accepted, nil
}

// Flush applies all pending writes.
func (s *Batched) Flush(ctx context.Context) error {
	return s.batcher.FlushAll(ctx)
}

// Pending returns number of writes not applied yet.
func (s *Batched) Pending() int {
	return s.batcher.Pending()
}

// Close flushes pending writes and stops accepting new ones: WriteStream
// returns false after Close.
func (s *Batched) Close(ctx context.Context) error {
	return s.batcher.Close(ctx)
}
