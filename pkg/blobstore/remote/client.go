// Package remote implements blobstore.Backend served by a remote cache
// service over gRPC. Payloads are transferred in chunks both ways, so the
// client never buffers whole blobs on the read path.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/hrw"
	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Config groups remote cache connection parameters.
type Config struct {
	// Endpoints of remote cache servers in host:port form.
	Endpoints []string
	// DialTimeout limits connection to a single endpoint.
	DialTimeout time.Duration
	// ChunkSize is a size of payload chunks sent to the server.
	ChunkSize int
	// CommitTimeout limits single commit.
	CommitTimeout time.Duration
}

const (
	defaultDialTimeout   = 5 * time.Second
	defaultCommitTimeout = time.Minute
)

// Option is an option of Dial.
type Option func(*clientCfg)

type clientCfg struct {
	log    *zap.Logger
	dialer func(context.Context, string) (net.Conn, error)
}

// WithLogger returns an option to specify Client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientCfg) {
		c.log = l
	}
}

// WithDialer returns an option to specify custom network dialer.
func WithDialer(d func(ctx context.Context, addr string) (net.Conn, error)) Option {
	return func(c *clientCfg) {
		c.dialer = d
	}
}

// Client is a blobstore.Backend connected to the remote cache server.
type Client struct {
	clientCfg

	conn          *grpc.ClientConn
	endpoint      string
	chunkSize     int
	commitTimeout time.Duration

	closing atomic.Bool
}

var _ blobstore.Backend = (*Client)(nil)

// OrderEndpoints returns endpoints sorted by rendezvous hashing against the
// root id. Each root prefers its own endpoint, so load spreads over servers
// while each root sticks to the same one.
func OrderEndpoints(rootID string, endpoints []string) []string {
	res := slices.Clone(endpoints)
	hrw.SortSliceByValue(res, hrw.Hash([]byte(rootID)))
	return res
}

// Dial connects to the first reachable endpoint in the root's order. Returns
// blobstore.ErrUnavailable if none is reachable.
func Dial(ctx context.Context, rootID string, cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		clientCfg:     clientCfg{log: zap.NewNop()},
		chunkSize:     cfg.ChunkSize,
		commitTimeout: cfg.CommitTimeout,
	}
	for i := range opts {
		opts[i](&c.clientCfg)
	}

	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.commitTimeout <= 0 {
		c.commitTimeout = defaultCommitTimeout
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: no remote endpoints", blobstore.ErrUnavailable)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.FailOnNonTempDialError(true),
		clientCodec(),
	}
	if c.dialer != nil {
		dialOpts = append(dialOpts, grpc.WithContextDialer(c.dialer))
	}

	var errs []error
	for _, endpoint := range OrderEndpoints(rootID, cfg.Endpoints) {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := grpc.DialContext(dialCtx, endpoint, dialOpts...)
		cancel()
		if err == nil {
			c.conn, c.endpoint = conn, endpoint
			c.log.Debug("connected to remote cache", zap.String("endpoint", endpoint))
			return c, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.log.Info("remote cache endpoint is unreachable", zap.String("endpoint", endpoint), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
	}

	return nil, fmt.Errorf("%w: %w", blobstore.ErrUnavailable, errors.Join(errs...))
}

// Endpoint returns address of the connected server.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func convertError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%w: %w", blobstore.ErrUnavailable, err)
	}
	return err
}

// Checksum implements blobstore.Backend.
func (c *Client) Checksum(ctx context.Context, key []byte) (checksum.Checksum, error) {
	if err := ctx.Err(); err != nil {
		return checksum.Null, err
	}

	var resp entryResponse

	err := c.conn.Invoke(ctx, methodChecksum, &keyRequest{key: key}, &resp)
	if err != nil {
		return checksum.Null, convertError(ctx, err)
	}

	if !resp.found {
		return checksum.Null, blobstore.ErrNotFound
	}

	return checksum.FromBytes(resp.checksum)
}

// Open implements blobstore.Backend. Payload is received in the background
// while the returned reader is consumed. Cancellation of ctx interrupts the
// transfer.
func (c *Client) Open(ctx context.Context, key []byte) (io.ReadCloser, checksum.Checksum, error) {
	if err := ctx.Err(); err != nil {
		return nil, checksum.Null, err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := c.conn.NewStream(streamCtx, readStreamDesc, methodRead)
	if err == nil {
		err = stream.SendMsg(&keyRequest{key: key})
	}
	if err == nil {
		err = stream.CloseSend()
	}

	var first entryResponse
	if err == nil {
		err = stream.RecvMsg(&first)
	}

	if err != nil {
		cancel()
		if errors.Is(err, io.EOF) {
			err = errors.New("read stream closed without response")
		}
		return nil, checksum.Null, convertError(ctx, err)
	}

	if !first.found {
		cancel()
		return nil, checksum.Null, blobstore.ErrNotFound
	}

	sum, err := checksum.FromBytes(first.checksum)
	if err != nil {
		cancel()
		return nil, checksum.Null, err
	}

	pr, pw := io.Pipe()

	go func() {
		chunk := first.data
		for {
			if len(chunk) > 0 {
				if _, err := pw.Write(chunk); err != nil {
					// reader is closed
					return
				}
			}

			var next entryResponse
			err := stream.RecvMsg(&next)
			if errors.Is(err, io.EOF) {
				_ = pw.Close()
				return
			}
			if err != nil {
				_ = pw.CloseWithError(convertError(ctx, err))
				return
			}
			chunk = next.data
		}
	}()

	return &streamReader{PipeReader: pr, cancel: cancel}, sum, nil
}

type streamReader struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (r *streamReader) Close() error {
	err := r.PipeReader.Close()
	r.cancel()
	return err
}

// Begin implements blobstore.Backend. Entries are buffered by the returned
// transaction and streamed to the server on commit.
func (c *Client) Begin(ctx context.Context) (blobstore.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.closing.Load() {
		return nil, blobstore.ErrShuttingDown
	}

	return &clientTx{c: c}, nil
}

// Close implements blobstore.Backend.
func (c *Client) Close() error {
	if c.closing.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

type clientTx struct {
	c       *Client
	entries []pendingEntry
}

func (t *clientTx) Put(key []byte, sum checksum.Checksum, data []byte) error {
	t.entries = append(t.entries, pendingEntry{key: key, sum: sum, data: data})
	return nil
}

func (t *clientTx) Rollback() error {
	t.entries = nil
	return nil
}

func (t *clientTx) Commit() error {
	if len(t.entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.c.commitTimeout)
	defer cancel()

	stream, err := t.c.conn.NewStream(ctx, commitStreamDesc, methodCommit)
	if err != nil {
		return fmt.Errorf("open commit stream: %w", convertError(ctx, err))
	}

	session := uuid.NewString()

	for i := range t.entries {
		e := t.entries[i]
		req := commitRequest{key: e.key, checksum: e.sum.Bytes()}
		if i == 0 {
			req.session = session
		}

		for off := 0; ; {
			end := min(off+t.c.chunkSize, len(e.data))
			req.data = e.data[off:end]

			if err = stream.SendMsg(&req); err != nil {
				if errors.Is(err, io.EOF) {
					// actual status is returned by RecvMsg
					break
				}
				return fmt.Errorf("send entry %x: %w", e.key, convertError(ctx, err))
			}

			off = end
			if off >= len(e.data) {
				break
			}
			req = commitRequest{}
		}

		if err != nil {
			break
		}
	}

	if err == nil {
		err = stream.CloseSend()
		if err != nil {
			return fmt.Errorf("close commit stream: %w", err)
		}
	}

	var resp commitResponse
	if err = stream.RecvMsg(&resp); err != nil {
		return fmt.Errorf("commit %s: %w", session, convertError(ctx, err))
	}

	if resp.entries != uint64(len(t.entries)) {
		return fmt.Errorf("commit %s: server applied %d entries of %d", session, resp.entries, len(t.entries))
	}

	t.entries = nil
	return nil
}
