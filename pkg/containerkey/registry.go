package containerkey

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nspcc-dev/persistcache/pkg/workspace"
)

// DefaultCapacity is a default number of Branch instances Registry keeps
// keys for.
const DefaultCapacity = 4096

// Registry derives and caches Keys of Branches and Leaves of one Root.
//
// Keys are cached per Branch instance in a bounded side table indexed by
// Branch arena IDs, so Registry never keeps Branch instances alive. Keys are
// pure functions of Branch identity, thus an evicted entry is recomputed
// bit-identically.
type Registry struct {
	rootID string

	cache *lru.Cache[uint64, *entry]
}

type entry struct {
	key Key

	mtx    sync.Mutex
	leaves map[string]Key
}

// NewRegistry constructs Registry for the Root with the given identity.
// Non-positive capacity means DefaultCapacity.
func NewRegistry(rootID string, capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c, err := lru.New[uint64, *entry](capacity)
	if err != nil {
		// only non-positive size is an error
		panic(err)
	}

	return &Registry{
		rootID: rootID,
		cache:  c,
	}
}

// RootID returns Root identity of the Registry.
func (r *Registry) RootID() string {
	return r.rootID
}

// GetOrCreate returns Key of the Branch.
func (r *Registry) GetOrCreate(b *workspace.Branch) Key {
	return r.entry(b).key
}

// GetOrCreateLeaf returns Key of the Leaf within the Branch.
func (r *Registry) GetOrCreateLeaf(b *workspace.Branch, l *workspace.Leaf) Key {
	e := r.entry(b)

	e.mtx.Lock()
	defer e.mtx.Unlock()

	if k, ok := e.leaves[l.ID()]; ok && k.LeafName == l.Name() {
		return k
	}

	k := e.key
	k.LeafPath = l.Path()
	k.LeafName = l.Name()

	if e.leaves == nil {
		e.leaves = make(map[string]Key)
	}
	e.leaves[l.ID()] = k

	return k
}

// Evict drops cached keys of the Branch instance.
func (r *Registry) Evict(b *workspace.Branch) {
	r.cache.Remove(b.ArenaID())
}

// Len returns number of Branch instances with cached keys.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) entry(b *workspace.Branch) *entry {
	id := b.ArenaID()
	if e, ok := r.cache.Get(id); ok {
		return e
	}

	e := &entry{key: Key{
		RootID:      r.rootID,
		BranchPath:  b.Path(),
		BranchName:  b.Name(),
		Fingerprint: string(b.Fingerprint()),
	}}

	// concurrent callers may race here, both entries hold equal keys
	if prev, ok, _ := r.cache.PeekOrAdd(id, e); ok {
		return prev
	}

	return e
}
