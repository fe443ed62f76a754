package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/persistcache/cmd/internal/cmderr"
	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	loggerconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/logger"
	remoteconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/remote"
	storageconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/storage"
	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/boltstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/sqlitestore"
	"github.com/nspcc-dev/persistcache/pkg/storage"
	"github.com/nspcc-dev/persistcache/pkg/util/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func readConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(configFlag)

	c, err := config.New(config.Prm{}, config.WithConfigFile(path))
	return c, cmderr.Wrap(cmderr.CodeConfig, err)
}

func newLogger(c *config.Config) (*zap.Logger, error) {
	l, err := logger.NewLogger(logger.Prm{
		Level:     loggerconfig.Level(c),
		Encoding:  loggerconfig.Encoding(c),
		Timestamp: loggerconfig.Timestamp(c),
	})
	return l, cmderr.Wrap(cmderr.CodeConfig, err)
}

func storageConfig(c *config.Config) (storage.Config, error) {
	dir, err := storageconfig.Path(c)
	if err != nil {
		return storage.Config{}, cmderr.Wrap(cmderr.CodeConfig, fmt.Errorf("storage path: %w", err))
	}

	return storage.Config{
		Backend:          storageconfig.Backend(c),
		Engine:           storageconfig.Engine(c),
		Dir:              dir,
		SizeThreshold:    storageconfig.SizeThreshold(c),
		CoalescingWindow: storageconfig.CoalescingWindow(c),
		Compression: storage.CompressionConfig{
			Enabled: storageconfig.CompressionEnabled(c),
			MinSize: storageconfig.CompressionMinSize(c),
		},
		Remote: remote.Config{
			Endpoints:     remoteconfig.Endpoints(c),
			DialTimeout:   remoteconfig.DialTimeout(c),
			ChunkSize:     remoteconfig.ChunkSize(c),
			CommitTimeout: remoteconfig.CommitTimeout(c),
		},
		TeardownWorkers: storageconfig.TeardownWorkers(c),
	}, nil
}

var errUnknownEngine = errors.New("unknown database engine")

// openDatabase opens embedded database file of the engine. Empty engine is
// resolved by the file extension.
func openDatabase(engine, path string, log *zap.Logger) (blobstore.Backend, error) {
	if engine == "" {
		switch {
		case strings.HasSuffix(path, sqlitestore.FileExtension):
			engine = storage.EngineSQLite
		default:
			engine = storage.EngineBolt
		}
	}

	switch engine {
	case storage.EngineBolt:
		return boltstore.Open(path, boltstore.WithLogger(log))
	case storage.EngineSQLite:
		return sqlitestore.Open(path, sqlitestore.WithLogger(log))
	default:
		return nil, cmderr.Wrap(cmderr.CodeConfig, fmt.Errorf("%w %q", errUnknownEngine, engine))
	}
}
