package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/persistcache/pkg/blobstore/remote"
	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/stretchr/testify/require"
)

func freeAddress(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServe(t *testing.T) {
	var (
		dir         = t.TempDir()
		addr        = freeAddress(t)
		metricsAddr = freeAddress(t)
		cfgPath     = filepath.Join(dir, "config.yaml")
	)

	writeFile(t, cfgPath, fmt.Sprintf(`
logger:
  level: error
server:
  address: %s
  path: %s
  engine: sqlite
metrics:
  enabled: true
  address: %s
`, addr, filepath.Join(dir, "server.sqlite"), metricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"serve", "--config", cfgPath})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var c *remote.Client
	require.Eventually(t, func() bool {
		var err error
		c, err = remote.Dial(ctx, dir, remote.Config{
			Endpoints:   []string{addr},
			DialTimeout: 100 * time.Millisecond,
		})
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)

	data := []byte("payload")
	sum := checksum.DefaultHasher().Sum(data)

	tx, err := c.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("key"), sum, data))
	require.NoError(t, tx.Commit())

	r, stored, err := c.Open(ctx, []byte("key"))
	require.NoError(t, err)
	require.Equal(t, sum, stored)
	res, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, data, res)
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + metricsAddr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		return err == nil && bytes.Contains(body, []byte("persistcache_server_request_time"))
	}, 10*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server is not stopped")
	}
}
