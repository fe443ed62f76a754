package checksumtree

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nspcc-dev/persistcache/pkg/checksum"
	"github.com/nspcc-dev/persistcache/pkg/workspace"
	"go.uber.org/zap"
)

// DependencyGraph provides transitively-referenced Branches for scoped
// checksum computation.
type DependencyGraph interface {
	// Dependencies returns IDs of Branches directly referenced by the given
	// one.
	Dependencies(branchID string) ([]string, error)
}

// Scope limits Root checksum to the given Branch and Branches transitively
// reachable from it.
type Scope struct {
	Branch string
}

// Tree computes memoized checksums of workspace nodes.
//
// Checksums are memoized on nodes under the hashing algorithm name, so Trees
// with different hashers never observe each other's values. Scoped Root
// checksums are additionally keyed by the resolved dependency closure.
type Tree struct {
	*cfg
}

// Option is a Tree option.
type Option func(*cfg)

type cfg struct {
	log    *zap.Logger
	hasher checksum.Hasher
	deps   DependencyGraph
}

func defaultCfg() *cfg {
	return &cfg{
		log:    zap.NewNop(),
		hasher: checksum.DefaultHasher(),
	}
}

// WithLogger returns option to set Tree logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithHasher returns option to set hashing primitive.
func WithHasher(h checksum.Hasher) Option {
	return func(c *cfg) {
		c.hasher = h
	}
}

// WithDependencyGraph returns option to set external dependency graph. By
// default, dependencies declared by Root branches are used.
func WithDependencyGraph(g DependencyGraph) Option {
	return func(c *cfg) {
		c.deps = g
	}
}

// New constructs Tree.
func New(opts ...Option) *Tree {
	c := defaultCfg()
	for i := range opts {
		opts[i](c)
	}

	return &Tree{cfg: c}
}

// Domain separation tags.
var (
	tagLeaf   = []byte("leaf")
	tagBranch = []byte("branch")
	tagRoot   = []byte("root")
	tagAttrs  = []byte("attrs")
)

// GetChecksum returns checksum of the node. Scope is taken into account for
// Root nodes only and may be nil.
//
// Checksum is computed once per node instance and hashing algorithm and
// memoized on the node. If the computation fails, nothing is memoized and the
// call may be retried.
func (t *Tree) GetChecksum(node workspace.Node, scope *Scope) (checksum.Checksum, error) {
	switch n := node.(type) {
	case *workspace.Leaf:
		return t.LeafChecksum(n), nil
	case *workspace.Branch:
		return t.BranchChecksum(n), nil
	case *workspace.Root:
		return t.RootChecksum(n, scope)
	default:
		return checksum.Null, fmt.Errorf("unsupported node type %T", node)
	}
}

// LeafChecksum returns memoized checksum of the Leaf.
func (t *Tree) LeafChecksum(l *workspace.Leaf) checksum.Checksum {
	memo := l.ChecksumMemo(t.hasher.Algorithm())
	if c, ok := memo.Load(); ok {
		return c
	}

	return memo.Store(t.hasher.Sum(tagLeaf, []byte(l.ID()), []byte(l.Name()), l.Content()))
}

// BranchChecksum returns memoized checksum of the Branch.
func (t *Tree) BranchChecksum(b *workspace.Branch) checksum.Checksum {
	memo := b.ChecksumMemo(t.hasher.Algorithm())
	if c, ok := memo.Load(); ok {
		return c
	}

	ls := b.Leaves()
	cs := make([]checksum.Checksum, len(ls))
	for i := range ls {
		cs[i] = t.LeafChecksum(ls[i])
	}

	attrs := t.attributesChecksum(b.Attributes())
	coll := checksum.NewCollection(t.hasher, cs)

	return memo.Store(t.hasher.Sum(tagBranch,
		[]byte(b.ID()), []byte(b.Path()), []byte(b.Name()), b.Fingerprint(),
		attrs[:], coll.Checksum().Bytes()))
}

// RootChecksum returns memoized checksum of the Root, optionally scoped.
//
// Scoped checksum resolves the dependency closure on every call: the graph
// may change independently of the Root.
func (t *Tree) RootChecksum(r *workspace.Root, scope *Scope) (checksum.Checksum, error) {
	var (
		bs     = r.Branches()
		global = t.attributesChecksum(r.GlobalAttributes())
		marker []byte
		key    = t.hasher.Algorithm()
	)

	if scope != nil {
		ids, err := t.closure(r, scope.Branch)
		if err != nil {
			return checksum.Null, err
		}

		bs = slices.DeleteFunc(bs, func(b *workspace.Branch) bool {
			_, ok := ids[b.ID()]
			return !ok
		})

		// global configuration is intentionally not part of scoped checksums
		global = checksum.Null
		marker = []byte(scope.Branch)
		key = t.scopedMemoKey(scope.Branch, ids)
	}

	memo := r.ChecksumMemo(key)
	if c, ok := memo.Load(); ok {
		return c, nil
	}

	if scope != nil {
		t.log.Debug("computing scoped root checksum",
			zap.String("root", r.ID()),
			zap.String("branch", scope.Branch),
			zap.Int("branches", len(bs)))
	}

	coll := t.collection(bs)
	attrs := t.attributesChecksum(r.Attributes())

	return memo.Store(t.hasher.Sum(tagRoot,
		[]byte(r.ID()), attrs[:], global[:], coll.Checksum().Bytes(), marker)), nil
}

// scopedMemoKey identifies scoped Root checksum by the algorithm, the scope
// Branch and the sorted closure.
func (t *Tree) scopedMemoKey(branchID string, closure map[string]struct{}) string {
	ids := slices.Sorted(maps.Keys(closure))

	parts := make([][]byte, 0, 1+len(ids))
	parts = append(parts, []byte(branchID))
	for _, id := range ids {
		parts = append(parts, []byte(id))
	}

	return t.hasher.Algorithm() + "/scope/" + t.hasher.Sum(parts...).String()
}

// GetCollection returns ordered collection of all Branch checksums of the
// Root.
func (t *Tree) GetCollection(r *workspace.Root) checksum.Collection {
	return t.collection(r.Branches())
}

func (t *Tree) collection(bs []*workspace.Branch) checksum.Collection {
	cs := make([]checksum.Checksum, len(bs))
	for i := range bs {
		cs[i] = t.BranchChecksum(bs[i])
	}
	return checksum.NewCollection(t.hasher, cs)
}

// closure returns IDs of the Branch and all Branches reachable from it.
func (t *Tree) closure(r *workspace.Root, branchID string) (map[string]struct{}, error) {
	if _, ok := r.Branch(branchID); !ok {
		return nil, fmt.Errorf("%w: %q", workspace.ErrUnknownBranch, branchID)
	}

	var g DependencyGraph = r.Graph()
	if t.deps != nil {
		g = t.deps
	}

	res := map[string]struct{}{branchID: {}}
	queue := []string{branchID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		deps, err := g.Dependencies(id)
		if err != nil {
			return nil, fmt.Errorf("get dependencies of branch %q: %w", id, err)
		}

		for _, d := range deps {
			if _, ok := res[d]; ok {
				continue
			}
			res[d] = struct{}{}
			queue = append(queue, d)
		}
	}

	return res, nil
}

func (t *Tree) attributesChecksum(attrs map[string]string) checksum.Checksum {
	keys := slices.Sorted(maps.Keys(attrs))

	parts := make([][]byte, 0, 1+2*len(keys))
	parts = append(parts, tagAttrs)
	for _, k := range keys {
		parts = append(parts, []byte(k), []byte(attrs[k]))
	}

	return t.hasher.Sum(parts...)
}
