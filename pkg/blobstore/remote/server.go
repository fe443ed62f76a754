package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultChunkSize is a default size of payload chunks transferred in
// streams.
const DefaultChunkSize = 64 << 10

// Server serves remote cache RPCs over the local Backend.
type Server struct {
	log       *zap.Logger
	backend   blobstore.Backend
	chunkSize int
}

// ServerOption is an option of NewServer.
type ServerOption func(*Server)

// WithServerLogger returns an option to specify Server logger.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithServerChunkSize returns an option to specify size of payload chunks
// sent to clients.
func WithServerChunkSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewServer constructs Server over the Backend. The Backend is not closed by
// the Server.
func NewServer(b blobstore.Backend, opts ...ServerOption) *Server {
	s := &Server{
		log:       zap.NewNop(),
		backend:   b,
		chunkSize: DefaultChunkSize,
	}

	for i := range opts {
		opts[i](s)
	}

	return s
}

// Register registers Server on gRPC server. gRPC server MUST be created with
// ServerCodec option.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

func backendStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, blobstore.ErrShuttingDown):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *Server) checksum(ctx context.Context, req *keyRequest) (*entryResponse, error) {
	sum, err := s.backend.Checksum(ctx, req.key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return new(entryResponse), nil
		}
		return nil, backendStatus(err)
	}

	return &entryResponse{found: true, checksum: sum.Bytes()}, nil
}

func (s *Server) read(stream grpc.ServerStream) error {
	var req keyRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	r, sum, err := s.backend.Open(stream.Context(), req.key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return stream.SendMsg(new(entryResponse))
		}
		return backendStatus(err)
	}
	defer r.Close()

	resp := entryResponse{found: true, checksum: sum.Bytes()}
	buf := make([]byte, s.chunkSize)

	for {
		n, err := io.ReadFull(r, buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return backendStatus(fmt.Errorf("read payload: %w", err))
		}

		if n > 0 || resp.found {
			resp.data = buf[:n]
			if sErr := stream.SendMsg(&resp); sErr != nil {
				return sErr
			}
			resp = entryResponse{}
		}

		if err != nil {
			return nil
		}
	}
}

type pendingEntry struct {
	key  []byte
	sum  checksum.Checksum
	data []byte
}

func (s *Server) commit(stream grpc.ServerStream) error {
	var (
		session string
		entries []pendingEntry
	)

	for {
		var req commitRequest
		err := stream.RecvMsg(&req)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if session == "" {
			session = req.session
		}

		if len(req.key) == 0 {
			if len(entries) == 0 {
				return status.Error(codes.InvalidArgument, "payload chunk without entry key")
			}
			last := &entries[len(entries)-1]
			last.data = append(last.data, req.data...)
			continue
		}

		sum, err := checksum.FromBytes(req.checksum)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "entry %x: %v", req.key, err)
		}

		entries = append(entries, pendingEntry{key: req.key, sum: sum, data: req.data})
	}

	err := s.apply(stream.Context(), entries)
	if err != nil {
		s.log.Warn("remote commit failed",
			zap.String("session", session), zap.Int("entries", len(entries)), zap.Error(err))
		return backendStatus(err)
	}

	s.log.Debug("remote commit applied", zap.String("session", session), zap.Int("entries", len(entries)))

	return stream.SendMsg(&commitResponse{entries: uint64(len(entries))})
}

func (s *Server) apply(ctx context.Context, entries []pendingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.backend.Begin(ctx)
	if err != nil {
		return err
	}

	for i := range entries {
		if err = tx.Put(entries[i].key, entries[i].sum, entries[i].data); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("put entry %x: %w", entries[i].key, err)
		}
	}

	return tx.Commit()
}
