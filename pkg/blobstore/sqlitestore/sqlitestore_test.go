package sqlitestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/internal/backendtest"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/sqlitestore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newStore(t *testing.T) blobstore.Backend {
	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "cache"+sqlitestore.FileExtension),
		sqlitestore.WithLogger(zaptest.NewLogger(t)),
		sqlitestore.WithNoSync(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGeneric(t *testing.T) {
	backendtest.TestAll(t, newStore)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cache.sqlite")
	sum := checksum.DefaultHasher().Sum([]byte("data"))

	s, err := sqlitestore.Open(path)
	require.NoError(t, err)
	require.Equal(t, path, s.Path())

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("key"), sum, []byte("data")))
	require.NoError(t, tx.Commit())
	require.NoError(t, s.Close())

	s, err = sqlitestore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	res, err := s.Checksum(context.Background(), []byte("key"))
	require.NoError(t, err)
	require.Equal(t, sum, res)
}

func TestOpen_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	_, err := sqlitestore.Open(path)
	require.Error(t, err)
	require.NotErrorIs(t, err, blobstore.ErrUnavailable)

	require.NoError(t, os.WriteFile(path+"-wal", garbage, 0o600))
	require.NoError(t, sqlitestore.Remove(path))
	require.NoError(t, sqlitestore.Remove(path))
	require.NoFileExists(t, path+"-wal")

	s, err := sqlitestore.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestTxSurvivesCancel(t *testing.T) {
	s := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	cancel()

	require.NoError(t, tx.Put([]byte("key"), checksum.Null, []byte("data")))
	require.NoError(t, tx.Commit())

	_, err = s.Checksum(context.Background(), []byte("key"))
	require.NoError(t, err)
}
