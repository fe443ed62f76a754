// Package boltstore implements blobstore.Backend over a single BoltDB file.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/util"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// FileExtension is an extension of BoltDB files created by Open.
const FileExtension = ".bolt"

// version contains current storage format version.
const version = 1

var (
	sumsBucket = []byte("sums")
	dataBucket = []byte("data")
	metaBucket = []byte("meta")

	versionKey = []byte("version")
)

// Store is a BoltDB-backed blobstore.Backend.
type Store struct {
	*cfg

	path    string
	db      *bbolt.DB
	closing atomic.Bool
}

var (
	_ blobstore.Backend = (*Store)(nil)
	_ blobstore.Lister  = (*Store)(nil)
)

// Open opens or creates BoltDB file at path. Returns blobstore.ErrUnavailable
// if the file is locked by another process for longer than the configured
// timeout.
func Open(path string, opts ...Option) (s *Store, err error) {
	c := defaultCfg()
	for i := range opts {
		opts[i](c)
	}

	err = util.MkdirAllX(filepath.Dir(path), c.perm|0o700)
	if err != nil {
		return nil, fmt.Errorf("can't create dir for %s: %w", path, err)
	}

	defer fatalHandler(&err)

	boltOpts := *bbolt.DefaultOptions
	boltOpts.Timeout = c.lockTimeout
	boltOpts.NoSync = c.noSync

	db, err := bbolt.Open(path, c.perm, &boltOpts)
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s is locked", blobstore.ErrUnavailable, path)
		}
		return nil, fmt.Errorf("can't open BoltDB database: %w", err)
	}

	c.log.Debug("opened BoltDB instance", zap.String("path", path))

	err = db.Update(initBuckets)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init BoltDB database: %w", err)
	}

	return &Store{cfg: c, path: path, db: db}, nil
}

func initBuckets(tx *bbolt.Tx) error {
	meta, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return fmt.Errorf("can't create meta bucket: %w", err)
	}

	if data := meta.Get(versionKey); data != nil {
		if len(data) != 8 {
			return fmt.Errorf("invalid version length %d", len(data))
		}
		if stored := binary.LittleEndian.Uint64(data); stored != version {
			return fmt.Errorf("invalid version: expected=%d, stored=%d", version, stored)
		}
	} else {
		data = make([]byte, 8)
		binary.LittleEndian.PutUint64(data, version)
		if err = meta.Put(versionKey, data); err != nil {
			return fmt.Errorf("can't write version: %w", err)
		}
	}

	for _, name := range [][]byte{sumsBucket, dataBucket} {
		if _, err = tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("can't create bucket %s: %w", name, err)
		}
	}

	return nil
}

// Path returns path to the BoltDB file.
func (s *Store) Path() string {
	return s.path
}

// Checksum implements blobstore.Backend.
func (s *Store) Checksum(ctx context.Context, key []byte) (sum checksum.Checksum, err error) {
	if err = ctx.Err(); err != nil {
		return sum, err
	}

	defer fatalHandler(&err)

	err = s.db.View(func(tx *bbolt.Tx) error {
		sum, err = getChecksum(tx, key)
		return err
	})
	return sum, err
}

func getChecksum(tx *bbolt.Tx, key []byte) (checksum.Checksum, error) {
	v := tx.Bucket(sumsBucket).Get(key)
	if v == nil {
		return checksum.Null, blobstore.ErrNotFound
	}

	sum, err := checksum.FromBytes(v)
	if err != nil {
		return checksum.Null, fmt.Errorf("invalid stored checksum: %w", err)
	}
	return sum, nil
}

// Open implements blobstore.Backend. Payload is copied out of the database,
// so the reader stays valid after Close.
func (s *Store) Open(ctx context.Context, key []byte) (_ io.ReadCloser, sum checksum.Checksum, err error) {
	if err = ctx.Err(); err != nil {
		return nil, sum, err
	}

	defer fatalHandler(&err)

	var data []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		sum, err = getChecksum(tx, key)
		if err != nil {
			return err
		}

		v := tx.Bucket(dataBucket).Get(key)
		if v == nil {
			return fmt.Errorf("missing payload of the stored checksum %s", sum)
		}
		data = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, sum, err
	}

	return io.NopCloser(bytes.NewReader(data)), sum, nil
}

// Begin implements blobstore.Backend.
func (s *Store) Begin(ctx context.Context) (_ blobstore.Tx, err error) {
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	if s.closing.Load() {
		return nil, blobstore.ErrShuttingDown
	}

	defer fatalHandler(&err)

	btx, err := s.db.Begin(true)
	if err != nil {
		if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
			return nil, blobstore.ErrShuttingDown
		}
		return nil, fmt.Errorf("begin BoltDB transaction: %w", err)
	}

	return &tx{tx: btx, start: time.Now(), log: s.log}, nil
}

// Iterate implements blobstore.Lister.
func (s *Store) Iterate(ctx context.Context, f func(blobstore.EntryInfo) error) (err error) {
	defer fatalHandler(&err)

	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(dataBucket)
		c := tx.Bucket(sumsBucket).Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			sum, err := checksum.FromBytes(v)
			if err != nil {
				return fmt.Errorf("invalid stored checksum of %x: %w", k, err)
			}

			err = f(blobstore.EntryInfo{
				Key:      bytes.Clone(k),
				Checksum: sum,
				Size:     len(data.Get(k)),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements blobstore.Backend. Close waits for the active transaction
// to finish.
func (s *Store) Close() error {
	s.closing.Store(true)
	return s.db.Close()
}

// Remove removes BoltDB file at path, if any.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type tx struct {
	tx    *bbolt.Tx
	start time.Time
	log   *zap.Logger
}

func (t *tx) Put(key []byte, sum checksum.Checksum, data []byte) (err error) {
	defer fatalHandler(&err)

	if err = t.tx.Bucket(sumsBucket).Put(key, sum.Bytes()); err != nil {
		return fmt.Errorf("put checksum: %w", err)
	}
	if err = t.tx.Bucket(dataBucket).Put(key, data); err != nil {
		return fmt.Errorf("put payload: %w", err)
	}
	return nil
}

func (t *tx) Commit() (err error) {
	defer fatalHandler(&err)

	err = t.tx.Commit()
	if err == nil {
		t.log.Debug("committed BoltDB transaction", zap.Duration("took", time.Since(t.start)))
	}
	return err
}

func (t *tx) Rollback() (err error) {
	defer fatalHandler(&err)

	err = t.tx.Rollback()
	if errors.Is(err, bbolt.ErrTxClosed) {
		return nil
	}
	return err
}

// fatalHandler catches BoltDB panic and wraps it into error. It is intended
// to be executed in defer of all BoltDB-related routines.
func fatalHandler(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("BoltDB panic: %v", r)
	}
}
