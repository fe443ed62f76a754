package writebatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testBackend struct {
	mtx       sync.Mutex
	committed []string
	begins    int
	rollbacks int

	beginHook func(context.Context) error
}

type testTx struct {
	b   *testBackend
	ops []string
}

func (b *testBackend) begin(ctx context.Context) (*testTx, error) {
	if b.beginHook != nil {
		if err := b.beginHook(ctx); err != nil {
			return nil, err
		}
	}

	b.mtx.Lock()
	b.begins++
	b.mtx.Unlock()

	return &testTx{b: b}, nil
}

func (b *testBackend) snapshot() ([]string, int, int) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return append([]string(nil), b.committed...), b.begins, b.rollbacks
}

func (tx *testTx) Commit() error {
	tx.b.mtx.Lock()
	tx.b.committed = append(tx.b.committed, tx.ops...)
	tx.b.mtx.Unlock()
	return nil
}

func (tx *testTx) Rollback() error {
	tx.b.mtx.Lock()
	tx.b.rollbacks++
	tx.b.mtx.Unlock()
	return nil
}

func put(v string) Action[*testTx] {
	return func(tx *testTx) error {
		tx.ops = append(tx.ops, v)
		return nil
	}
}

func newTestBatcher(t *testing.T, be *testBackend, opts ...Option) *Batcher[string, *testTx] {
	// long delay prevents background flushes unless a test wants them
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithDelay(time.Hour)}, opts...)
	b := New[string](be.begin, opts...)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestBatcher_DeferredFlush(t *testing.T) {
	be := new(testBackend)
	b := newTestBatcher(t, be, WithDelay(10*time.Millisecond))

	require.True(t, b.Enqueue("k1", put("a")))
	require.True(t, b.Enqueue("k2", put("b")))
	require.True(t, b.Enqueue("k1", put("c")))

	require.Eventually(t, func() bool {
		committed, _, _ := be.snapshot()
		return len(committed) == 3
	}, time.Second, 5*time.Millisecond)

	committed, begins, _ := be.snapshot()
	require.Equal(t, 1, begins)
	require.ElementsMatch(t, []string{"a", "b", "c"}, committed)
	require.Zero(t, b.Pending())

	// next write schedules a new flush
	require.True(t, b.Enqueue("k1", put("d")))
	require.Eventually(t, func() bool {
		committed, _, _ := be.snapshot()
		return len(committed) == 4
	}, time.Second, 5*time.Millisecond)
}

func TestBatcher_FlushAll(t *testing.T) {
	be := new(testBackend)
	b := newTestBatcher(t, be)

	for _, v := range []string{"a", "b", "c"} {
		b.Enqueue("k", put(v))
	}
	require.Equal(t, 3, b.Pending())

	require.NoError(t, b.FlushAll(context.Background()))

	committed, begins, _ := be.snapshot()
	require.Equal(t, []string{"a", "b", "c"}, committed)
	require.Equal(t, 1, begins)

	// nothing to flush, no transaction
	require.NoError(t, b.FlushAll(context.Background()))
	_, begins, _ = be.snapshot()
	require.Equal(t, 1, begins)
}

func TestBatcher_Flush(t *testing.T) {
	be := new(testBackend)
	b := newTestBatcher(t, be)

	b.Enqueue("k1", put("a"))
	b.Enqueue("k2", put("b"))
	b.Enqueue("k1", put("c"))

	require.NoError(t, b.Flush(context.Background(), "k1"))

	committed, _, _ := be.snapshot()
	require.Equal(t, []string{"a", "c"}, committed)
	require.Equal(t, 1, b.Pending())

	// no pending writes for the key
	require.NoError(t, b.Flush(context.Background(), "k1"))
	_, begins, _ := be.snapshot()
	require.Equal(t, 1, begins)
}

func TestBatcher_FlushRendezvous(t *testing.T) {
	const n = 16

	var (
		started = make(chan struct{})
		unblock = make(chan struct{})
		once    sync.Once
	)

	be := &testBackend{beginHook: func(context.Context) error {
		once.Do(func() { close(started) })
		<-unblock
		return nil
	}}
	b := newTestBatcher(t, be)

	b.Enqueue("k", put("a"))
	b.Enqueue("k", put("b"))

	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = b.Flush(context.Background(), "k")
	}()

	<-started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = b.Flush(context.Background(), "k")
		}()
	}

	require.Eventually(t, func() bool {
		b.mtx.Lock()
		defer b.mtx.Unlock()
		r, ok := b.inflight["k"]
		return ok && r.count == n
	}, time.Second, time.Millisecond)

	committed, _, _ := be.snapshot()
	require.Empty(t, committed)

	close(unblock)
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
	}

	committed, begins, _ := be.snapshot()
	require.Equal(t, 1, begins)
	require.Equal(t, []string{"a", "b"}, committed)

	b.mtx.Lock()
	require.Empty(t, b.inflight)
	b.mtx.Unlock()
}

func TestBatcher_FlushWaitsForFlushAll(t *testing.T) {
	var (
		started = make(chan struct{})
		unblock = make(chan struct{})
		once    sync.Once
	)

	be := &testBackend{beginHook: func(context.Context) error {
		once.Do(func() {
			close(started)
			<-unblock
		})
		return nil
	}}
	b := newTestBatcher(t, be)

	b.Enqueue("k", put("a"))

	flushAllDone := make(chan error)
	go func() { flushAllDone <- b.FlushAll(context.Background()) }()
	<-started

	flushDone := make(chan error)
	go func() { flushDone <- b.Flush(context.Background(), "k") }()

	select {
	case <-flushDone:
		t.Fatal("key flush returned before its write was committed")
	case <-time.After(20 * time.Millisecond):
	}

	close(unblock)
	require.NoError(t, <-flushAllDone)
	require.NoError(t, <-flushDone)

	committed, begins, _ := be.snapshot()
	require.Equal(t, []string{"a"}, committed)
	require.Equal(t, 1, begins)
}

func TestBatcher_FailedAction(t *testing.T) {
	be := new(testBackend)
	b := newTestBatcher(t, be)

	b.Enqueue("k1", put("a"))
	b.Enqueue("k1", func(*testTx) error { return errors.New("broken write") })
	require.NoError(t, b.FlushAll(context.Background()))

	committed, _, rollbacks := be.snapshot()
	require.Empty(t, committed)
	require.Equal(t, 1, rollbacks)

	b.Enqueue("k2", put("b"))
	require.NoError(t, b.Flush(context.Background(), "k2"))

	committed, _, _ = be.snapshot()
	require.Equal(t, []string{"b"}, committed)

	t.Run("panic", func(t *testing.T) {
		b.Enqueue("k3", func(*testTx) error { panic("unexpected") })
		require.NoError(t, b.FlushAll(context.Background()))

		_, _, rollbacks := be.snapshot()
		require.Equal(t, 2, rollbacks)
	})
}

func TestBatcher_Cancel(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		be := new(testBackend)
		b := newTestBatcher(t, be)
		b.Enqueue("k", put("a"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, b.FlushAll(ctx), context.Canceled)
		require.ErrorIs(t, b.Flush(ctx, "k"), context.Canceled)
		require.Equal(t, 1, b.Pending())
	})

	t.Run("while opening transaction", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		be := &testBackend{beginHook: func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		}}
		b := newTestBatcher(t, be)
		b.Enqueue("k", put("a"))
		b.Enqueue("k", put("b"))

		require.ErrorIs(t, b.FlushAll(ctx), context.Canceled)
		require.Equal(t, 2, b.Pending())

		be.beginHook = nil
		b.Enqueue("k", put("c"))
		require.NoError(t, b.Flush(context.Background(), "k"))

		committed, _, _ := be.snapshot()
		require.Equal(t, []string{"a", "b", "c"}, committed)
	})
}

func TestBatcher_ShuttingDown(t *testing.T) {
	be := &testBackend{beginHook: func(context.Context) error { return ErrShuttingDown }}
	b := newTestBatcher(t, be)

	b.Enqueue("k", put("a"))
	require.NoError(t, b.FlushAll(context.Background()))
	require.Zero(t, b.Pending())

	committed, _, _ := be.snapshot()
	require.Empty(t, committed)
}

func TestBatcher_Close(t *testing.T) {
	be := new(testBackend)
	b := New[string](be.begin, WithDelay(time.Hour))

	b.Enqueue("k", put("a"))
	require.NoError(t, b.Close(context.Background()))

	committed, _, _ := be.snapshot()
	require.Equal(t, []string{"a"}, committed)

	require.False(t, b.Enqueue("k", put("b")))
	require.Zero(t, b.Pending())
}
