// Package sqlitestore implements blobstore.Backend over a single SQLite
// database file.
package sqlitestore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/util"
	"go.uber.org/zap"
)

// FileExtension is an extension of SQLite files created by Open.
const FileExtension = ".sqlite"

// version contains current schema version stored as user_version.
const version = 1

const schema = `CREATE TABLE IF NOT EXISTS entries (
	key      BLOB PRIMARY KEY,
	checksum BLOB NOT NULL,
	data     BLOB NOT NULL
) WITHOUT ROWID`

// Store is a SQLite-backed blobstore.Backend.
type Store struct {
	*cfg

	path    string
	db      *sql.DB
	closing atomic.Bool
}

var (
	_ blobstore.Backend = (*Store)(nil)
	_ blobstore.Lister  = (*Store)(nil)
)

// Open opens or creates SQLite database at path. Returns
// blobstore.ErrUnavailable if the database stays locked by another process
// for longer than the configured busy timeout.
func Open(path string, opts ...Option) (*Store, error) {
	c := defaultCfg()
	for i := range opts {
		opts[i](c)
	}

	err := util.MkdirAllX(filepath.Dir(path), 0o700)
	if err != nil {
		return nil, fmt.Errorf("can't create dir for %s: %w", path, err)
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(wal)")
	if c.noSync {
		q.Add("_pragma", "synchronous(off)")
	} else {
		q.Add("_pragma", "synchronous(normal)")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("can't open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(c.maxConns)

	s := &Store{cfg: c, path: path, db: db}

	err = s.init()
	if err != nil {
		_ = db.Close()
		if errors.Is(err, sqlite3.BUSY) || errors.Is(err, sqlite3.LOCKED) {
			return nil, fmt.Errorf("%w: %s is locked: %w", blobstore.ErrUnavailable, path, err)
		}
		return nil, fmt.Errorf("init SQLite database: %w", err)
	}

	c.log.Debug("opened SQLite database", zap.String("path", path))

	return s, nil
}

func (s *Store) init() error {
	var stored int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&stored)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	switch stored {
	case 0:
		if _, err = s.db.Exec(schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			return fmt.Errorf("write version: %w", err)
		}
	case version:
	default:
		return fmt.Errorf("invalid version: expected=%d, stored=%d", version, stored)
	}

	return nil
}

// Path returns path to the SQLite file.
func (s *Store) Path() string {
	return s.path
}

func scanChecksum(v []byte) (checksum.Checksum, error) {
	sum, err := checksum.FromBytes(v)
	if err != nil {
		return checksum.Null, fmt.Errorf("invalid stored checksum: %w", err)
	}
	return sum, nil
}

// Checksum implements blobstore.Backend.
func (s *Store) Checksum(ctx context.Context, key []byte) (checksum.Checksum, error) {
	var v []byte

	err := s.db.QueryRowContext(ctx, "SELECT checksum FROM entries WHERE key = ?", key).Scan(&v)
	if err != nil {
		return checksum.Null, s.convertError(ctx, err)
	}

	return scanChecksum(v)
}

// Open implements blobstore.Backend.
func (s *Store) Open(ctx context.Context, key []byte) (io.ReadCloser, checksum.Checksum, error) {
	var v, data []byte

	err := s.db.QueryRowContext(ctx, "SELECT checksum, data FROM entries WHERE key = ?", key).Scan(&v, &data)
	if err != nil {
		return nil, checksum.Null, s.convertError(ctx, err)
	}

	sum, err := scanChecksum(v)
	if err != nil {
		return nil, sum, err
	}

	return io.NopCloser(bytes.NewReader(data)), sum, nil
}

func (s *Store) convertError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return blobstore.ErrNotFound
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}

// Begin implements blobstore.Backend. Cancellation of ctx after Begin
// returns does not affect the transaction: it is finished by Commit or
// Rollback only.
func (s *Store) Begin(ctx context.Context) (blobstore.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.closing.Load() {
		return nil, blobstore.ErrShuttingDown
	}

	stx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		if s.closing.Load() {
			return nil, blobstore.ErrShuttingDown
		}
		return nil, fmt.Errorf("begin SQLite transaction: %w", err)
	}

	return &tx{tx: stx}, nil
}

// Iterate implements blobstore.Lister.
func (s *Store) Iterate(ctx context.Context, f func(blobstore.EntryInfo) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT key, checksum, length(data) FROM entries ORDER BY key")
	if err != nil {
		return s.convertError(ctx, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			info blobstore.EntryInfo
			v    []byte
		)

		if err = rows.Scan(&info.Key, &v, &info.Size); err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}

		if info.Checksum, err = scanChecksum(v); err != nil {
			return fmt.Errorf("entry %x: %w", info.Key, err)
		}

		if err = f(info); err != nil {
			return err
		}
	}

	return s.convertError(ctx, rows.Err())
}

// Close implements blobstore.Backend.
func (s *Store) Close() error {
	if s.closing.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Remove removes SQLite database at path along with its journal files, if
// any.
func Remove(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		err := os.Remove(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Put(key []byte, sum checksum.Checksum, data []byte) error {
	if data == nil {
		data = []byte{}
	}

	_, err := t.tx.Exec("INSERT OR REPLACE INTO entries (key, checksum, data) VALUES (?, ?, ?)", key, sum.Bytes(), data)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (t *tx) Commit() error {
	return t.tx.Commit()
}

func (t *tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
