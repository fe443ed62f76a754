package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/boltstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/sqlitestore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"go.uber.org/zap"
)

// Opener opens backends of roots.
type Opener interface {
	// Open opens backend of the root creating it if needed.
	Open(ctx context.Context, root RootInfo) (blobstore.Backend, error)
	// Exists checks whether backend of the root has been created before.
	Exists(root RootInfo) bool
	// Remove removes broken backend of the root.
	Remove(root RootInfo) error
}

// NewOpener returns Opener of the configured backends. Returns nil for
// BackendDisabled.
func NewOpener(cfg Config, log *zap.Logger) (Opener, error) {
	switch cfg.Backend {
	case BackendDisabled:
		return nil, nil
	case BackendRemote:
		return &remoteOpener{cfg: cfg.Remote, log: log}, nil
	case BackendEmbedded, "":
		switch cfg.Engine {
		case EngineBolt, "":
			return &fileOpener{dir: cfg.Dir, ext: boltstore.FileExtension, log: log,
				open: func(path string, log *zap.Logger) (blobstore.Backend, error) {
					return boltstore.Open(path, boltstore.WithLogger(log))
				},
				remove: boltstore.Remove,
			}, nil
		case EngineSQLite:
			return &fileOpener{dir: cfg.Dir, ext: sqlitestore.FileExtension, log: log,
				open: func(path string, log *zap.Logger) (blobstore.Backend, error) {
					return sqlitestore.Open(path, sqlitestore.WithLogger(log))
				},
				remove: sqlitestore.Remove,
			}, nil
		default:
			return nil, fmt.Errorf("unknown embedded engine %q", cfg.Engine)
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// fileOpener opens embedded databases, one file per root.
type fileOpener struct {
	dir    string
	ext    string
	log    *zap.Logger
	open   func(path string, log *zap.Logger) (blobstore.Backend, error)
	remove func(path string) error
}

// FileName returns name of the database file of the root: it is derived
// from the root path and working directory.
func FileName(root RootInfo) string {
	return checksum.DefaultHasher().Sum([]byte(root.Path), []byte(root.WorkingDir)).String()
}

func (o *fileOpener) path(root RootInfo) string {
	dir := o.dir
	if dir == "" {
		dir = filepath.Join(root.WorkingDir, ".persistcache")
	}
	return filepath.Join(dir, FileName(root)+o.ext)
}

func (o *fileOpener) Open(ctx context.Context, root RootInfo) (blobstore.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := o.path(root)
	return o.open(path, o.log.With(zap.String("path", path)))
}

func (o *fileOpener) Exists(root RootInfo) bool {
	_, err := os.Stat(o.path(root))
	return err == nil
}

func (o *fileOpener) Remove(root RootInfo) error {
	return o.remove(o.path(root))
}

// remoteOpener connects to remote cache servers.
type remoteOpener struct {
	cfg remote.Config
	log *zap.Logger
}

func (o *remoteOpener) Open(ctx context.Context, root RootInfo) (blobstore.Backend, error) {
	return remote.Dial(ctx, root.ID, o.cfg, remote.WithLogger(o.log))
}

// Exists always returns false: remote storage is shared and its presence
// says nothing about the root.
func (o *remoteOpener) Exists(RootInfo) bool {
	return false
}

func (o *remoteOpener) Remove(RootInfo) error {
	return nil
}
