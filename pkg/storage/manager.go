package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/blobstore/compression"
	"github.com/nspcc-dev/persistcache/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotPrimary is a reason of the panic on unregistering root which is not
// the registered primary one.
var ErrNotPrimary = errors.New("root is not the registered primary")

// Reasons of serving handles by no-op store.
const (
	noopDisabled       = "disabled"
	noopClosed         = "closed"
	noopNotPrimary     = "not_primary"
	noopBelowThreshold = "below_threshold"
	noopOpenFailed     = "open_failed"
)

// Manager owns backends of workspace roots. Manager is safe for concurrent
// use.
type Manager struct {
	*cfg

	threshold  int64
	storeOpts  []blobstore.Option
	compressor *compression.Config
	pool       util.WorkerPool

	opening singleflight.Group
	// teardowns tracks backends closed in background.
	teardowns sync.WaitGroup

	mtx        sync.Mutex
	primary    string
	hasPrimary bool
	states     map[string]*state
	// closing holds states being torn down by keys.
	closing map[string]*state
	// failed holds keys of roots which backends failed to open.
	failed map[string]struct{}
	closed bool
}

// state is an open backend of a root shared by all its handles.
type state struct {
	key     string
	backend blobstore.Backend
	store   *blobstore.Batched
	refs    int
	// done is closed when backend is closed.
	done chan struct{}
}

// NewManager constructs Manager. No backend is opened until the primary
// root is registered and requested.
func NewManager(c Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:       defaultCfg(),
		threshold: c.SizeThreshold,
		states:    make(map[string]*state),
		closing:   make(map[string]*state),
		failed:    make(map[string]struct{}),
	}

	for i := range opts {
		opts[i](m.cfg)
	}

	if m.opener == nil && c.Backend != BackendDisabled {
		var err error
		m.opener, err = NewOpener(c, m.log)
		if err != nil {
			return nil, err
		}
	}

	m.compressor = &compression.Config{
		Enabled: c.Compression.Enabled,
		MinSize: c.Compression.MinSize,
	}
	if err := m.compressor.Init(); err != nil {
		return nil, fmt.Errorf("init compression: %w", err)
	}

	m.pool = m.teardownPool
	if m.pool == nil {
		workers := c.TeardownWorkers
		if workers <= 0 {
			workers = defaultTeardownWorkers
		}

		var err error
		m.pool, err = util.NewWorkerPool(workers)
		if err != nil {
			_ = m.compressor.Close()
			return nil, fmt.Errorf("can't create teardown pool: %w", err)
		}
	}

	m.storeOpts = []blobstore.Option{
		blobstore.WithLogger(m.log),
		blobstore.WithCoalescingWindow(c.CoalescingWindow),
		blobstore.WithCompressor(m.compressor),
	}
	if m.storeMetrics != nil {
		m.storeOpts = append(m.storeOpts, blobstore.WithMetrics(m.storeMetrics))
	}

	return m, nil
}

// RegisterPrimary makes root with the given id the primary one. Backends are
// opened for the primary root only. No I/O is performed.
//
// Registering another root while the primary one is registered is a caller
// bug and causes panic.
func (m *Manager) RegisterPrimary(id string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.hasPrimary && m.primary != id {
		panic(fmt.Sprintf("registering primary root %q while %q is registered", id, m.primary))
	}

	m.primary, m.hasPrimary = id, true

	m.log.Debug("registered primary root", zap.String("id", id))
}

// UnregisterPrimary resets the primary root and closes its backends. If wait
// is false, backends are closed in background. Handles acquired before stay
// usable but no longer persist anything.
//
// Unregistering root which is not the registered primary one, including
// repeated unregistering, is a caller bug and causes panic with
// ErrNotPrimary.
func (m *Manager) UnregisterPrimary(id string, wait bool) {
	m.mtx.Lock()

	if !m.hasPrimary || m.primary != id {
		m.mtx.Unlock()
		panic(fmt.Errorf("%w: %q", ErrNotPrimary, id))
	}

	m.primary, m.hasPrimary = "", false
	clear(m.failed)
	detached := m.detachAllLocked()

	m.mtx.Unlock()

	m.log.Debug("unregistered primary root", zap.String("id", id), zap.Int("backends", len(detached)))

	for _, st := range detached {
		if wait {
			m.teardown(st)
			continue
		}

		m.teardowns.Add(1)
		err := m.pool.Submit(func() {
			defer m.teardowns.Done()
			m.teardown(st)
		})
		if err != nil {
			m.teardowns.Done()
			m.log.Debug("can't close backend in background", zap.Error(err))
			m.teardown(st)
		}
	}
}

// detachAllLocked removes all states from the registry and marks them as
// closing. MUST be called with mtx held.
func (m *Manager) detachAllLocked() []*state {
	res := make([]*state, 0, len(m.states))
	for key, st := range m.states {
		delete(m.states, key)
		m.closing[key] = st
		res = append(res, st)
	}
	m.metrics.SetOpenBackends(0)
	return res
}

// GetStorage returns handle of the root storage. Handle MUST be released
// when no longer needed.
//
// Backend is opened on the first request of the registered primary root if
// its ApproxSize reaches the threshold or the backend already exists.
// Concurrent requests share single open. Otherwise, and if the backend
// can't be opened, the handle is backed by no-op store. GetStorage returns
// errors of ctx only.
func (m *Manager) GetStorage(ctx context.Context, root RootInfo) (*Handle, error) {
	key := root.key()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m.mtx.Lock()

		if reason := m.noopReasonLocked(root, key); reason != "" {
			m.mtx.Unlock()
			return m.noop(root, reason), nil
		}

		if st, ok := m.states[key]; ok {
			st.refs++
			m.mtx.Unlock()
			return newHandle(m, st, st.store), nil
		}

		m.mtx.Unlock()

		if root.ApproxSize < m.threshold && !m.opener.Exists(root) {
			return m.noop(root, noopBelowThreshold), nil
		}

		openCtx := context.WithoutCancel(ctx)
		ch := m.opening.DoChan(key, func() (any, error) {
			return m.open(openCtx, root, key)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			go m.dropUnclaimed(ch)
			return nil, ctx.Err()
		case res = <-ch:
		}

		if res.Err != nil {
			if errors.Is(res.Err, ErrNotPrimary) {
				return m.noop(root, noopNotPrimary), nil
			}
			return m.noop(root, noopOpenFailed), nil
		}

		st := res.Val.(*state)

		m.mtx.Lock()
		if m.states[key] == st {
			st.refs++
			m.mtx.Unlock()
			return newHandle(m, st, st.store), nil
		}
		m.mtx.Unlock()

		// released or detached before we got it, start over
	}
}

func (m *Manager) noopReasonLocked(root RootInfo, key string) string {
	switch {
	case m.opener == nil:
		return noopDisabled
	case m.closed:
		return noopClosed
	case !m.hasPrimary || m.primary != root.ID:
		return noopNotPrimary
	}
	if _, ok := m.failed[key]; ok {
		return noopOpenFailed
	}
	return ""
}

func (m *Manager) noop(root RootInfo, reason string) *Handle {
	m.metrics.IncNoopHandles(reason)
	return newHandle(m, nil, blobstore.Noop{})
}

// open opens backend of the root and registers its state.
func (m *Manager) open(ctx context.Context, root RootInfo, key string) (*state, error) {
	m.mtx.Lock()
	if st, ok := m.states[key]; ok {
		m.mtx.Unlock()
		return st, nil
	}
	closing := m.closing[key]
	m.mtx.Unlock()

	if closing != nil {
		// previous backend of the root may still hold the file
		<-closing.done
	}

	log := m.log.With(zap.String("root", root.ID), zap.String("path", root.Path))

	b, err := m.openBackend(ctx, root, log)

	m.mtx.Lock()

	if reason := m.noopReasonLocked(root, key); reason == noopNotPrimary || reason == noopClosed {
		m.mtx.Unlock()
		if b != nil {
			_ = b.Close()
		}
		return nil, fmt.Errorf("%w: %q", ErrNotPrimary, root.ID)
	}

	if err != nil {
		m.failed[key] = struct{}{}
		m.mtx.Unlock()
		log.Warn("persistent cache is disabled for the root", zap.Error(err))
		return nil, err
	}

	st := &state{
		key:     key,
		backend: b,
		store:   blobstore.New(b, m.storeOpts...),
		done:    make(chan struct{}),
	}
	m.states[key] = st
	m.metrics.SetOpenBackends(len(m.states))

	m.mtx.Unlock()

	log.Debug("opened persistent cache")

	return st, nil
}

// openBackend opens backend retrying once after removal of the broken one.
func (m *Manager) openBackend(ctx context.Context, root RootInfo, log *zap.Logger) (blobstore.Backend, error) {
	b, err := m.opener.Open(ctx, root)
	if err == nil {
		return b, nil
	}

	m.metrics.IncOpenFailures()

	if errors.Is(err, blobstore.ErrUnavailable) {
		log.Info("persistent cache is unavailable, retrying", zap.Error(err))
	} else {
		log.Info("can't open persistent cache, recreating", zap.Error(err))

		if rErr := m.opener.Remove(root); rErr != nil {
			return nil, fmt.Errorf("remove broken storage: %w (open: %w)", rErr, err)
		}
	}

	b, err = m.opener.Open(ctx, root)
	if err != nil {
		m.metrics.IncOpenFailures()
		return nil, fmt.Errorf("retry open: %w", err)
	}

	return b, nil
}

// release drops the reference to st and closes its backend if it was the
// last one.
func (m *Manager) release(st *state) {
	m.mtx.Lock()
	st.refs--
	m.closeUnusedLocked(st)
}

// dropUnclaimed waits for the open abandoned by a cancelled GetStorage call
// and closes the backend unless another caller has acquired it.
func (m *Manager) dropUnclaimed(ch <-chan singleflight.Result) {
	res := <-ch
	if res.Err != nil {
		return
	}

	m.mtx.Lock()
	m.closeUnusedLocked(res.Val.(*state))
}

// closeUnusedLocked detaches and closes st if it is registered and has no
// references. MUST be called with mtx held, unlocks it.
func (m *Manager) closeUnusedLocked(st *state) {
	if st.refs > 0 || m.states[st.key] != st {
		m.mtx.Unlock()
		return
	}

	delete(m.states, st.key)
	m.closing[st.key] = st
	m.metrics.SetOpenBackends(len(m.states))

	m.mtx.Unlock()

	m.teardown(st)
}

// teardown flushes and closes backend of st.
func (m *Manager) teardown(st *state) {
	if err := st.store.Close(context.Background()); err != nil {
		m.log.Warn("can't flush persistent cache", zap.Error(err))
	}

	if err := st.backend.Close(); err != nil {
		m.log.Warn("can't close persistent cache", zap.Error(err))
	}

	m.mtx.Lock()
	if m.closing[st.key] == st {
		delete(m.closing, st.key)
	}
	m.mtx.Unlock()

	close(st.done)
}

// Close closes all backends and waits for background teardowns. Subsequent
// GetStorage calls return no-op handles.
func (m *Manager) Close() error {
	m.mtx.Lock()
	if m.closed {
		m.mtx.Unlock()
		return nil
	}
	m.closed = true
	detached := m.detachAllLocked()
	m.mtx.Unlock()

	for _, st := range detached {
		m.teardown(st)
	}

	m.teardowns.Wait()
	m.pool.Release()

	return m.compressor.Close()
}
