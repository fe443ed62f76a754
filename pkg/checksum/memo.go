package checksum

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Memo is a lazily filled slot holding a memoized Checksum of an immutable
// object. Zero value is an empty slot ready to use.
//
// Memo is safe for concurrent use. Concurrent first computations are allowed
// to race: the first stored value wins and all later Store calls return it.
type Memo struct {
	v atomic.Pointer[Checksum]
}

// Load returns memoized value if any.
func (m *Memo) Load() (Checksum, bool) {
	p := m.v.Load()
	if p == nil {
		return Null, false
	}
	return *p, true
}

// Store memoizes c unless some value is already present and returns the
// value held by the slot after the call.
//
// Storing a value that differs from an already memoized one is a bug in the
// hashing code: such call panics in debug builds (see "debug" build tag).
func (m *Memo) Store(c Checksum) Checksum {
	if m.v.CompareAndSwap(nil, &c) {
		return c
	}

	prev := *m.v.Load()
	if debug && prev != c {
		panic(fmt.Sprintf("memoized checksum mismatch: %s != %s", prev, c))
	}

	return prev
}

// Filled checks whether the slot holds a value.
func (m *Memo) Filled() bool {
	return m.v.Load() != nil
}

// MemoTable is a set of Memo slots of a single immutable object keyed by the
// parameters of the computation, e.g. hashing algorithm. Zero value is an
// empty table ready to use.
type MemoTable struct {
	m sync.Map // string -> *Memo
}

// Slot returns Memo slot for the given key creating it if needed.
func (t *MemoTable) Slot(key string) *Memo {
	if m, ok := t.m.Load(key); ok {
		return m.(*Memo)
	}

	m, _ := t.m.LoadOrStore(key, new(Memo))
	return m.(*Memo)
}
