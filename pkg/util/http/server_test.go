package httputil_test

import (
	"net"
	"net/http"
	"testing"
	"time"

	httputil "github.com/nspcc-dev/persistcache/pkg/util/http"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	h := http.NotFoundHandler()

	require.Panics(t, func() { httputil.New(httputil.HTTPSrvPrm{Handler: h}) })
	require.Panics(t, func() { httputil.New(httputil.HTTPSrvPrm{Address: "localhost:0"}) })
	require.Panics(t, func() {
		httputil.New(httputil.HTTPSrvPrm{Address: "localhost:0", Handler: h}, httputil.WithShutdownTimeout(0))
	})
}

func TestServer_ServeShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := httputil.New(httputil.HTTPSrvPrm{
		Address: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	}, httputil.WithShutdownTimeout(time.Second))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Shutdown())
	require.NoError(t, <-errCh)
}
