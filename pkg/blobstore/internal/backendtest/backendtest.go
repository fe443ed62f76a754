// Package backendtest contains tests shared by all blobstore.Backend
// implementations.
package backendtest

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/containerkey"
	"github.com/stretchr/testify/require"
)

// Constructor constructs Backend. Each call must create a Backend using
// different storage.
type Constructor = func(t *testing.T) blobstore.Backend

// entry is a helper structure describing single stored blob.
type entry struct {
	key  []byte
	sum  checksum.Checksum
	data []byte
}

// TestAll runs all shared tests against Backends constructed by cons.
func TestAll(t *testing.T, cons Constructor) {
	t.Run("put and get", func(t *testing.T) {
		TestPutGet(t, cons)
	})
	t.Run("rollback", func(t *testing.T) {
		TestRollback(t, cons)
	})
	t.Run("overwrite", func(t *testing.T) {
		TestOverwrite(t, cons)
	})
	t.Run("close", func(t *testing.T) {
		TestClose(t, cons)
	})
	t.Run("cancel", func(t *testing.T) {
		TestCancel(t, cons)
	})
	t.Run("iterate", func(t *testing.T) {
		TestIterate(t, cons)
	})
}

func prepare(t *testing.T, count int, b blobstore.Backend) []entry {
	h := checksum.DefaultHasher()
	entries := make([]entry, count)

	for i := range entries {
		data := make([]byte, 1+i*1024)
		_, _ = rand.Read(data)

		entries[i] = entry{
			key: blobstore.EntryKey{
				Scope: blobstore.LeafScope(containerkey.Key{
					RootID:     "/root",
					BranchPath: "/root/branch",
					LeafPath:   fmt.Sprintf("/root/branch/leaf%d", i),
				}),
				Name: "payload",
			}.Bytes(),
			sum:  h.Sum(data),
			data: data,
		}
	}

	tx, err := b.Begin(context.Background())
	require.NoError(t, err)
	for i := range entries {
		require.NoError(t, tx.Put(entries[i].key, entries[i].sum, entries[i].data))
	}
	require.NoError(t, tx.Commit())

	return entries
}

func checkEntry(t *testing.T, b blobstore.Backend, e entry) {
	ctx := context.Background()

	sum, err := b.Checksum(ctx, e.key)
	require.NoError(t, err)
	require.Equal(t, e.sum, sum)

	r, sum, err := b.Open(ctx, e.key)
	require.NoError(t, err)
	require.Equal(t, e.sum, sum)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.True(t, bytes.Equal(e.data, data), "payload mismatch for %x", e.key)
}

func checkMissing(t *testing.T, b blobstore.Backend, key []byte) {
	ctx := context.Background()

	_, err := b.Checksum(ctx, key)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	_, _, err = b.Open(ctx, key)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

// TestPutGet checks that committed entries are readable.
func TestPutGet(t *testing.T, cons Constructor) {
	b := cons(t)

	entries := prepare(t, 5, b)
	for i := range entries {
		checkEntry(t, b, entries[i])
	}

	checkMissing(t, b, []byte("missing"))
}

// TestRollback checks that rolled back entries are not stored.
func TestRollback(t *testing.T, cons Constructor) {
	b := cons(t)

	tx, err := b.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("key"), checksum.Null, []byte("data")))
	require.NoError(t, tx.Rollback())

	checkMissing(t, b, []byte("key"))

	// backend is usable after rollback
	entries := prepare(t, 1, b)
	checkEntry(t, b, entries[0])
}

// TestOverwrite checks that the latest committed entry wins.
func TestOverwrite(t *testing.T, cons Constructor) {
	b := cons(t)
	h := checksum.DefaultHasher()

	e := entry{key: []byte("key"), sum: h.Sum([]byte("v1")), data: []byte("v1")}
	for _, next := range []entry{e, {key: e.key, sum: h.Sum([]byte("v2")), data: []byte("v2")}} {
		tx, err := b.Begin(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Put(next.key, next.sum, next.data))
		require.NoError(t, tx.Commit())

		checkEntry(t, b, next)
	}

	t.Run("empty payload", func(t *testing.T) {
		empty := entry{key: []byte("empty"), sum: checksum.Null, data: []byte{}}

		tx, err := b.Begin(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Put(empty.key, empty.sum, empty.data))
		require.NoError(t, tx.Commit())

		checkEntry(t, b, empty)
	})
}

// TestClose checks that closed Backend rejects new transactions.
func TestClose(t *testing.T, cons Constructor) {
	b := cons(t)

	require.NoError(t, b.Close())

	_, err := b.Begin(context.Background())
	require.ErrorIs(t, err, blobstore.ErrShuttingDown)
}

// TestCancel checks that Backend methods respect context.
func TestCancel(t *testing.T, cons Constructor) {
	b := cons(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Checksum(ctx, []byte("key"))
	require.ErrorIs(t, err, context.Canceled)

	_, _, err = b.Open(ctx, []byte("key"))
	require.ErrorIs(t, err, context.Canceled)

	_, err = b.Begin(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// TestIterate checks listing of Backends implementing blobstore.Lister.
func TestIterate(t *testing.T, cons Constructor) {
	b := cons(t)

	l, ok := b.(blobstore.Lister)
	if !ok {
		t.Skip("backend does not support listing")
	}

	entries := prepare(t, 10, b)
	seen := make(map[string]blobstore.EntryInfo)

	var prev []byte
	err := l.Iterate(context.Background(), func(info blobstore.EntryInfo) error {
		require.Negative(t, bytes.Compare(prev, info.Key))
		prev = info.Key
		seen[string(info.Key)] = info
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, len(entries))

	for i := range entries {
		info, ok := seen[string(entries[i].key)]
		require.True(t, ok)
		require.Equal(t, entries[i].sum, info.Checksum)
		require.Equal(t, len(entries[i].data), info.Size)
	}

	t.Run("interrupt", func(t *testing.T) {
		errStop := errors.New("stop")
		var n int
		err := l.Iterate(context.Background(), func(blobstore.EntryInfo) error {
			n++
			return errStop
		})
		require.ErrorIs(t, err, errStop)
		require.Equal(t, 1, n)
	})
}
