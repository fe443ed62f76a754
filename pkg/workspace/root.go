package workspace

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nspcc-dev/persistcache/pkg/checksum"
)

// Node is a common interface of Root, Branch and Leaf.
type Node interface {
	ID() string
	ChecksumMemo(key string) *checksum.Memo

	node()
}

// RootPrm groups parameters of NewRoot.
type RootPrm struct {
	// ID is a Root identity, e.g. solution file path.
	ID string
	// Attributes are Root-level content attributes.
	Attributes map[string]string
	// GlobalAttributes are cross-cutting attributes like global
	// configuration. They are excluded from dependency-scoped checksums.
	GlobalAttributes map[string]string
}

// Root is an immutable solution: an ordered set of Branches.
type Root struct {
	id          string
	attrs       map[string]string
	globalAttrs map[string]string

	// sorted by ID
	branches []*Branch

	// unscoped and scoped checksums share the table under different keys
	memos checksum.MemoTable
}

// NewRoot constructs Root from parameters and branches. Branches are
// ordered by their IDs; for duplicated IDs the last one wins.
func NewRoot(prm RootPrm, branches ...*Branch) *Root {
	r := &Root{
		id:          prm.ID,
		attrs:       maps.Clone(prm.Attributes),
		globalAttrs: maps.Clone(prm.GlobalAttributes),
		branches:    make([]*Branch, 0, len(branches)),
	}

	for i := range branches {
		r.branches = insertBranch(r.branches, branches[i])
	}

	return r
}

func (r *Root) copy() *Root {
	return &Root{
		id:          r.id,
		attrs:       r.attrs,
		globalAttrs: r.globalAttrs,
		branches:    r.branches,
	}
}

// ID returns Root identifier.
func (r *Root) ID() string { return r.id }

// Attributes returns a copy of Root attributes.
func (r *Root) Attributes() map[string]string { return maps.Clone(r.attrs) }

// GlobalAttributes returns a copy of global attributes.
func (r *Root) GlobalAttributes() map[string]string { return maps.Clone(r.globalAttrs) }

// Branches returns Root branches ordered by ID.
func (r *Root) Branches() []*Branch { return slices.Clone(r.branches) }

// Branch returns Branch by ID.
func (r *Root) Branch(id string) (*Branch, bool) {
	i, ok := slices.BinarySearchFunc(r.branches, id, cmpBranch)
	if !ok {
		return nil, false
	}
	return r.branches[i], true
}

// WithBranch returns new Root with b added or replacing the Branch with the
// same ID.
func (r *Root) WithBranch(b *Branch) *Root {
	res := r.copy()
	res.branches = insertBranch(slices.Clone(r.branches), b)
	return res
}

// WithoutBranch returns new Root without Branch with the given ID. Returns r
// itself if there is no such Branch.
func (r *Root) WithoutBranch(id string) *Root {
	i, ok := slices.BinarySearchFunc(r.branches, id, cmpBranch)
	if !ok {
		return r
	}

	res := r.copy()
	res.branches = slices.Delete(slices.Clone(r.branches), i, i+1)
	return res
}

// WithLeaf returns new Root where Branch with the given ID holds l. Only the
// Branch and the Root are allocated again.
func (r *Root) WithLeaf(branchID string, l *Leaf) (*Root, error) {
	b, ok := r.Branch(branchID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBranch, branchID)
	}

	return r.WithBranch(b.WithLeaf(l)), nil
}

// WithAttributes returns new Root with replaced attributes.
func (r *Root) WithAttributes(attrs map[string]string) *Root {
	res := r.copy()
	res.attrs = maps.Clone(attrs)
	return res
}

// WithGlobalAttributes returns new Root with replaced global attributes.
func (r *Root) WithGlobalAttributes(attrs map[string]string) *Root {
	res := r.copy()
	res.globalAttrs = maps.Clone(attrs)
	return res
}

// ChecksumMemo returns memo slot of the Root checksum computed with the given
// parameters.
func (r *Root) ChecksumMemo(key string) *checksum.Memo { return r.memos.Slot(key) }

// Graph returns dependency graph declared by Root branches.
func (r *Root) Graph() StaticGraph {
	g := make(StaticGraph, len(r.branches))
	for _, b := range r.branches {
		g[b.id] = b.deps
	}
	return g
}

func (*Root) node() {}

func cmpBranch(b *Branch, id string) int {
	return strings.Compare(b.id, id)
}

func insertBranch(bs []*Branch, b *Branch) []*Branch {
	i, ok := slices.BinarySearchFunc(bs, b.id, cmpBranch)
	if ok {
		bs[i] = b
		return bs
	}
	return slices.Insert(bs, i, b)
}
