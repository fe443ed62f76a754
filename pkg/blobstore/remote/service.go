package remote

import (
	"context"

	iprotobuf "github.com/nspcc-dev/persistcache/internal/protobuf"
	"google.golang.org/grpc"
)

const serviceName = "persistcache.Cache"

const (
	methodChecksum = "/" + serviceName + "/Checksum"
	methodRead     = "/" + serviceName + "/Read"
	methodCommit   = "/" + serviceName + "/Commit"
)

// service is implemented by Server. It is used as gRPC handler type.
type service interface {
	checksum(context.Context, *keyRequest) (*entryResponse, error)
	read(grpc.ServerStream) error
	commit(grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*service)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Checksum",
		Handler:    checksumHandler,
	}},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Read",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(service).read(stream) },
			ServerStreams: true,
		},
		{
			StreamName:    "Commit",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(service).commit(stream) },
			ClientStreams: true,
		},
	},
}

var (
	readStreamDesc   = &serviceDesc.Streams[0]
	commitStreamDesc = &serviceDesc.Streams[1]
)

func checksumHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(keyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(service).checksum(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodChecksum,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(service).checksum(ctx, req.(*keyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServerCodec returns gRPC server option required to serve remote cache
// messages.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(iprotobuf.Codec{})
}

func clientCodec() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.ForceCodec(iprotobuf.Codec{}))
}
