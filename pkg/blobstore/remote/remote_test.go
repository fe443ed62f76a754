package remote_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/boltstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/internal/backendtest"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const (
	testEndpoint  = "cache.local:7070"
	testChunkSize = 1000
)

type testServer struct {
	backend blobstore.Backend
	lis     *bufconn.Listener
	metrics *testMetrics
}

type testMetrics struct {
	mtx   sync.Mutex
	calls map[string]int // method/code -> number
}

func (m *testMetrics) AddServerRequest(method string, code string, _ time.Duration) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.calls[method+"/"+code]++
}

func (m *testMetrics) count(key string) int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.calls[key]
}

func serve(t *testing.T) *testServer {
	b, err := boltstore.Open(filepath.Join(t.TempDir(), "server.bolt"), boltstore.WithNoSync(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	lis := bufconn.Listen(1 << 20)

	m := &testMetrics{calls: make(map[string]int)}

	gSrv := grpc.NewServer(append(remote.MetricsInterceptors(m), remote.ServerCodec())...)
	remote.NewServer(b,
		remote.WithServerLogger(zaptest.NewLogger(t)),
		remote.WithServerChunkSize(testChunkSize),
	).Register(gSrv)

	t.Cleanup(gSrv.Stop)

	go func() {
		_ = gSrv.Serve(lis)
	}()

	return &testServer{backend: b, lis: lis, metrics: m}
}

// dialer routes testEndpoint into the listener and fails for anything else.
func (s *testServer) dialer(ctx context.Context, addr string) (net.Conn, error) {
	if addr != testEndpoint {
		return nil, errors.New("no route to host")
	}
	return s.lis.DialContext(ctx)
}

func dial(t *testing.T, s *testServer, endpoints ...string) *remote.Client {
	if len(endpoints) == 0 {
		endpoints = []string{testEndpoint}
	}

	c, err := remote.Dial(context.Background(), "/work/root", remote.Config{
		Endpoints:   endpoints,
		DialTimeout: time.Second,
		ChunkSize:   testChunkSize,
	}, remote.WithDialer(s.dialer), remote.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestGeneric(t *testing.T) {
	backendtest.TestAll(t, func(t *testing.T) blobstore.Backend {
		return dial(t, serve(t))
	})
}

func TestLargePayload(t *testing.T) {
	s := serve(t)
	c := dial(t, s)
	ctx := context.Background()

	data := bytes.Repeat([]byte("0123456789abcdef"), 10*testChunkSize)
	sum := checksum.DefaultHasher().Sum(data)

	tx, err := c.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("big"), sum, data))
	require.NoError(t, tx.Put([]byte("small"), checksum.Null, []byte("x")))
	require.NoError(t, tx.Commit())
	require.Eventually(t, func() bool { return s.metrics.count("Commit/OK") == 1 }, 5*time.Second, 10*time.Millisecond)

	_, err = c.Checksum(ctx, []byte("missing"))
	require.ErrorIs(t, err, blobstore.ErrNotFound)
	require.Equal(t, 1, s.metrics.count("Checksum/OK"))

	// server-side storage holds the reassembled payload
	r, stored, err := s.backend.Open(ctx, []byte("big"))
	require.NoError(t, err)
	require.Equal(t, sum, stored)
	res, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, res)

	r, stored, err = c.Open(ctx, []byte("big"))
	require.NoError(t, err)
	require.Equal(t, sum, stored)

	// partial read and close interrupts the transfer
	head := make([]byte, 10)
	_, err = io.ReadFull(r, head)
	require.NoError(t, err)
	require.Equal(t, data[:10], head)
	require.NoError(t, r.Close())

	r, _, err = c.Open(ctx, []byte("big"))
	require.NoError(t, err)
	res, err = io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, data, res)
}

func TestDial(t *testing.T) {
	t.Run("skip unreachable", func(t *testing.T) {
		s := serve(t)
		c := dial(t, s, "down1.local:7070", testEndpoint, "down2.local:7070")
		require.Equal(t, testEndpoint, c.Endpoint())
	})

	t.Run("all unreachable", func(t *testing.T) {
		s := serve(t)
		_, err := remote.Dial(context.Background(), "/work/root", remote.Config{
			Endpoints:   []string{"down1.local:7070", "down2.local:7070"},
			DialTimeout: 100 * time.Millisecond,
		}, remote.WithDialer(s.dialer))
		require.ErrorIs(t, err, blobstore.ErrUnavailable)
	})

	t.Run("no endpoints", func(t *testing.T) {
		_, err := remote.Dial(context.Background(), "/work/root", remote.Config{})
		require.ErrorIs(t, err, blobstore.ErrUnavailable)
	})
}

func TestOrderEndpoints(t *testing.T) {
	endpoints := []string{"a:1", "b:1", "c:1", "d:1", "e:1"}

	o1 := remote.OrderEndpoints("/root/one", endpoints)
	require.ElementsMatch(t, endpoints, o1)
	require.Equal(t, o1, remote.OrderEndpoints("/root/one", endpoints))
	require.Equal(t, []string{"a:1", "b:1", "c:1", "d:1", "e:1"}, endpoints, "input must not be modified")

	// different roots do not prefer the same endpoint
	firsts := make(map[string]struct{})
	for _, root := range []string{"/r1", "/r2", "/r3", "/r4", "/r5", "/r6", "/r7", "/r8", "/r9", "/r10"} {
		firsts[remote.OrderEndpoints(root, endpoints)[0]] = struct{}{}
	}
	require.Greater(t, len(firsts), 1)
}

func TestServerShuttingDown(t *testing.T) {
	s := serve(t)
	c := dial(t, s)

	require.NoError(t, s.backend.Close())

	tx, err := c.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("key"), checksum.Null, []byte("data")))
	require.ErrorIs(t, tx.Commit(), blobstore.ErrUnavailable)
}
