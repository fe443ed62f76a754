package main

import (
	"errors"
	"fmt"
	"net"

	"github.com/nspcc-dev/persistcache/cmd/internal/cmderr"
	"github.com/nspcc-dev/persistcache/cmd/persistcache/config"
	metricsconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/metrics"
	serverconfig "github.com/nspcc-dev/persistcache/cmd/persistcache/config/server"
	"github.com/nspcc-dev/persistcache/misc"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
	"github.com/nspcc-dev/persistcache/pkg/metrics"
	"github.com/nspcc-dev/persistcache/pkg/util/grace"
	httputil "github.com/nspcc-dev/persistcache/pkg/util/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run remote cache server",
		Long: `Run remote cache server over the embedded database configured in "server"
section. Clients connect with "remote-cache" storage backend.`,
		Args: cobra.NoArgs,
		RunE: serveFunc,
	}
}

func serveFunc(cmd *cobra.Command, _ []string) error {
	c, err := readConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	path, err := serverconfig.Path(c)
	if err != nil {
		return cmderr.Wrap(cmderr.CodeConfig, fmt.Errorf("server path: %w", err))
	}
	if path == "" {
		return cmderr.Wrap(cmderr.CodeConfig, errors.New("server database path is not set"))
	}

	b, err := openDatabase(serverconfig.Engine(c), path, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("can't close database", zap.Error(err))
		}
	}()

	var opts []grpc.ServerOption
	opts = append(opts, remote.ServerCodec())

	if metricsconfig.Enabled(c) {
		m := metrics.NewCacheMetrics(misc.Version)
		opts = append(opts, remote.MetricsInterceptors(m)...)

		stop := serveMetrics(c, log)
		defer stop()
	}

	lis, err := net.Listen("tcp", serverconfig.Address(c))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	gSrv := grpc.NewServer(opts...)
	remote.NewServer(b,
		remote.WithServerLogger(log),
		remote.WithServerChunkSize(serverconfig.ChunkSize(c)),
	).Register(gSrv)

	ctx := grace.NewGracefulContext(cmd.Context(), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gSrv.Serve(lis)
	}()

	log.Info("remote cache server started",
		zap.String("address", lis.Addr().String()),
		zap.String("database", path),
		zap.String("version", misc.Version))

	select {
	case <-ctx.Done():
		log.Info("stopping remote cache server")
		gSrv.GracefulStop()
		return nil
	case err = <-errCh:
		return fmt.Errorf("serve: %w", err)
	}
}

// serveMetrics starts Prometheus HTTP endpoint in background and returns its
// shutdown function.
func serveMetrics(c *config.Config, log *zap.Logger) func() {
	addr := metricsconfig.Address(c)

	srv := httputil.New(httputil.HTTPSrvPrm{
		Address: addr,
		Handler: promhttp.Handler(),
	}, httputil.WithShutdownTimeout(metricsconfig.ShutdownTimeout(c)))

	go func() {
		if err := srv.Serve(); err != nil {
			log.Error("metrics server failed", zap.String("address", addr), zap.Error(err))
		}
	}()

	log.Info("metrics server started", zap.String("address", addr))

	return func() {
		if err := srv.Shutdown(); err != nil {
			log.Warn("can't shutdown metrics server", zap.Error(err))
		}
	}
}
