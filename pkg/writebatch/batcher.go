package writebatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrShuttingDown MUST be returned by transaction constructors of backends
// that are being closed. Batcher silently drops queued actions in this case.
var ErrShuttingDown = errors.New("backend is shutting down")

// Tx is a backend transaction.
type Tx interface {
	Commit() error
	Rollback() error
}

// Action is a single queued write applied within a transaction.
type Action[T Tx] func(T) error

// BeginFunc opens new backend transaction.
type BeginFunc[T Tx] func(context.Context) (T, error)

const (
	flushKindAll = "all"
	flushKindKey = "key"
)

// Batcher coalesces actions queued by keys of type K into transactions of
// type T.
type Batcher[K comparable, T Tx] struct {
	options

	begin BeginFunc[T]

	// applyMtx serializes transactions so that per-key order holds when
	// full and single-key flushes race. It is never taken under mtx.
	applyMtx sync.Mutex

	// mtx is the gate protecting all fields below. It is held for map
	// operations only, never across I/O.
	mtx      sync.Mutex
	queue    map[K][]Action[T]
	applying map[K]struct{}
	inflight map[K]*rendezvous
	timer    *time.Timer
	closed   bool
}

// rendezvous is an in-flight single-key flush shared by all concurrent
// callers flushing the same key.
type rendezvous struct {
	count int
	done  chan struct{}
}

// New constructs Batcher over the backend transaction constructor.
func New[K comparable, T Tx](begin BeginFunc[T], opts ...Option) *Batcher[K, T] {
	b := &Batcher[K, T]{
		options:  defaultOptions(),
		begin:    begin,
		queue:    make(map[K][]Action[T]),
		applying: make(map[K]struct{}),
		inflight: make(map[K]*rendezvous),
	}

	for i := range opts {
		opts[i](&b.options)
	}

	return b
}

// Enqueue queues action for the key and schedules deferred flush if none is
// pending. Returns false if Batcher is closed and the action is discarded.
func (b *Batcher[K, T]) Enqueue(key K, action Action[T]) bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.closed {
		return false
	}

	b.queue[key] = append(b.queue[key], action)
	b.scheduleLocked()

	return true
}

// Pending returns number of queued actions.
func (b *Batcher[K, T]) Pending() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	var n int
	for _, acts := range b.queue {
		n += len(acts)
	}
	return n
}

func (b *Batcher[K, T]) scheduleLocked() {
	if b.timer == nil && !b.closed && len(b.queue) > 0 {
		b.timer = time.AfterFunc(b.delay, b.runScheduled)
	}
}

func (b *Batcher[K, T]) runScheduled() {
	_ = b.FlushAll(context.Background())

	b.mtx.Lock()
	b.timer = nil
	// actions queued while flushing did not schedule anything
	b.scheduleLocked()
	b.mtx.Unlock()
}

// FlushAll applies all queued actions in a single transaction.
//
// Cancellation before the transaction starts leaves the actions queued and
// returns the context error. Failures of the actions and the backend are
// logged and not returned: the affected actions are lost.
func (b *Batcher[K, T]) FlushAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.applyMtx.Lock()
	defer b.applyMtx.Unlock()

	b.mtx.Lock()
	if len(b.queue) == 0 {
		b.mtx.Unlock()
		return nil
	}

	batch := b.queue
	b.queue = make(map[K][]Action[T])
	for k := range batch {
		b.applying[k] = struct{}{}
	}
	b.mtx.Unlock()

	defer func() {
		b.mtx.Lock()
		for k := range batch {
			delete(b.applying, k)
		}
		b.mtx.Unlock()
	}()

	return b.apply(ctx, flushKindAll, batch)
}

// Flush applies queued actions of the given key and returns after they are
// committed, including ones that are being applied by a concurrent flush.
//
// Concurrent callers for the same key share a single apply. Cancellation
// stops waiting; actions that have not been started stay queued.
func (b *Batcher[K, T]) Flush(ctx context.Context, key K) error {
	for {
		b.mtx.Lock()

		if r, ok := b.inflight[key]; ok {
			r.count++
			b.mtx.Unlock()

			select {
			case <-r.done:
			case <-ctx.Done():
				b.release(key, r)
				return ctx.Err()
			}

			b.release(key, r)

			// actions queued after the in-flight snapshot are ours to flush
			b.mtx.Lock()
			_, applying := b.applying[key]
			pending := len(b.queue[key]) > 0 || applying
			b.mtx.Unlock()

			if !pending {
				return nil
			}
			continue
		}

		_, applying := b.applying[key]
		if len(b.queue[key]) == 0 && !applying {
			b.mtx.Unlock()
			return nil
		}

		r := &rendezvous{count: 1, done: make(chan struct{})}
		b.inflight[key] = r
		b.mtx.Unlock()

		err := b.flushKey(ctx, key)

		close(r.done)
		b.release(key, r)

		return err
	}
}

// release decrements rendezvous counter and removes it from the map when it
// reaches zero unless another rendezvous has already replaced it.
func (b *Batcher[K, T]) release(key K, r *rendezvous) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	r.count--
	if r.count == 0 && b.inflight[key] == r {
		delete(b.inflight, key)
	}
}

func (b *Batcher[K, T]) flushKey(ctx context.Context, key K) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// waits for a concurrent full flush holding the key, if any
	b.applyMtx.Lock()
	defer b.applyMtx.Unlock()

	b.mtx.Lock()
	acts := b.queue[key]
	delete(b.queue, key)
	b.mtx.Unlock()

	if len(acts) == 0 {
		return nil
	}

	return b.apply(ctx, flushKindKey, map[K][]Action[T]{key: acts})
}

// apply runs batch in one transaction. MUST be called with applyMtx held.
func (b *Batcher[K, T]) apply(ctx context.Context, kind string, batch map[K][]Action[T]) error {
	start := time.Now()
	defer func() {
		b.metrics.AddFlushDuration(kind, time.Since(start))
	}()

	var n int
	for _, acts := range batch {
		n += len(acts)
	}

	tx, err := b.begin(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrShuttingDown):
			b.log.Debug("backend is shutting down, dropping queued writes", zap.Int("actions", n))
		case ctx.Err() != nil:
			b.requeue(batch)
			return ctx.Err()
		default:
			b.log.Error("can't start write transaction, dropping queued writes",
				zap.Int("actions", n), zap.Error(err))
		}

		b.metrics.AddDroppedActions(n)
		return nil
	}

	err = applyAll(tx, batch)
	if err == nil {
		err = tx.Commit()
		if err != nil {
			err = fmt.Errorf("commit: %w", err)
		}
	} else if rErr := tx.Rollback(); rErr != nil {
		b.log.Warn("can't roll back write transaction", zap.Error(rErr))
	}

	if err != nil {
		b.log.Error("write transaction failed, queued writes are lost",
			zap.String("flush", kind), zap.Int("actions", n), zap.Error(err))
		b.metrics.IncFailedTransactions()
		b.metrics.AddDroppedActions(n)
		return nil
	}

	b.metrics.AddAppliedActions(n)
	return nil
}

func applyAll[K comparable, T Tx](tx T, batch map[K][]Action[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write action panicked: %v", r)
		}
	}()

	for _, acts := range batch {
		for i := range acts {
			if err := acts[i](tx); err != nil {
				return err
			}
		}
	}
	return nil
}

// requeue puts batch back before actions queued meanwhile.
func (b *Batcher[K, T]) requeue(batch map[K][]Action[T]) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for k, acts := range batch {
		b.queue[k] = append(acts, b.queue[k]...)
	}
	b.scheduleLocked()
}

// Close stops scheduling and flushes everything queued. Subsequent Enqueue
// calls discard actions.
func (b *Batcher[K, T]) Close(ctx context.Context) error {
	b.mtx.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mtx.Unlock()

	return b.FlushAll(ctx)
}
