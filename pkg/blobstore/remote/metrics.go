package remote

import (
	"context"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ServerMetrics collects remote cache server statistics.
type ServerMetrics interface {
	// AddServerRequest registers handled RPC with its gRPC status code name.
	AddServerRequest(method string, code string, d time.Duration)
}

// MetricsInterceptors returns gRPC server options recording handling time
// and status of each RPC.
func MetricsInterceptors(m ServerMetrics) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			start := time.Now()
			resp, err := handler(ctx, req)
			m.AddServerRequest(path.Base(info.FullMethod), status.Code(err).String(), time.Since(start))
			return resp, err
		}),
		grpc.ChainStreamInterceptor(func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			start := time.Now()
			err := handler(srv, ss)
			m.AddServerRequest(path.Base(info.FullMethod), status.Code(err).String(), time.Since(start))
			return err
		}),
	}
}
