package workspace

import (
	"bytes"
	"maps"
	"slices"
	"strings"

	"github.com/nspcc-dev/persistcache/pkg/checksum"
)

// BranchPrm groups parameters of NewBranch.
type BranchPrm struct {
	// ID is a stable Branch identifier unique within the Root.
	ID string
	// Path is a Branch location, e.g. project file path.
	Path string
	// Name is a human-readable Branch name.
	Name string
	// Fingerprint identifies Branch-level options that are not content,
	// e.g. parse options. Changing it changes Branch identity key.
	Fingerprint []byte
	// Attributes are Branch-level content attributes.
	Attributes map[string]string
	// Dependencies are identifiers of Branches this one references.
	Dependencies []string
}

// Branch is an immutable project: an ordered set of Leaves plus Branch-level
// attributes.
type Branch struct {
	arenaID uint64

	id          string
	path        string
	name        string
	fingerprint []byte
	attrs       map[string]string
	deps        []string

	// sorted by ID
	leaves []*Leaf

	memos checksum.MemoTable
}

// NewBranch constructs Branch from parameters and leaves. Leaves are ordered
// by their IDs; for duplicated IDs the last one wins.
func NewBranch(prm BranchPrm, leaves ...*Leaf) *Branch {
	b := &Branch{
		arenaID:     nextArenaID(),
		id:          prm.ID,
		path:        prm.Path,
		name:        prm.Name,
		fingerprint: bytes.Clone(prm.Fingerprint),
		attrs:       maps.Clone(prm.Attributes),
		deps:        sortedUnique(prm.Dependencies),
	}

	b.leaves = make([]*Leaf, 0, len(leaves))
	for i := range leaves {
		b.leaves = insertLeaf(b.leaves, leaves[i])
	}

	return b
}

// copy returns shallow copy of b with a new arena ID and empty memo.
func (b *Branch) copy() *Branch {
	return &Branch{
		arenaID:     nextArenaID(),
		id:          b.id,
		path:        b.path,
		name:        b.name,
		fingerprint: b.fingerprint,
		attrs:       b.attrs,
		deps:        b.deps,
		leaves:      b.leaves,
	}
}

// ArenaID returns process-unique identifier of this Branch instance.
func (b *Branch) ArenaID() uint64 { return b.arenaID }

// ID returns Branch identifier.
func (b *Branch) ID() string { return b.id }

// Path returns Branch path.
func (b *Branch) Path() string { return b.path }

// Name returns Branch name.
func (b *Branch) Name() string { return b.name }

// Fingerprint returns version fingerprint. The result MUST NOT be modified.
func (b *Branch) Fingerprint() []byte { return b.fingerprint }

// Attributes returns a copy of Branch attributes.
func (b *Branch) Attributes() map[string]string { return maps.Clone(b.attrs) }

// Dependencies returns sorted identifiers of referenced Branches.
func (b *Branch) Dependencies() []string { return slices.Clone(b.deps) }

// Leaves returns Branch leaves ordered by ID.
func (b *Branch) Leaves() []*Leaf { return slices.Clone(b.leaves) }

// Leaf returns Leaf by ID.
func (b *Branch) Leaf(id string) (*Leaf, bool) {
	i, ok := slices.BinarySearchFunc(b.leaves, id, cmpLeaf)
	if !ok {
		return nil, false
	}
	return b.leaves[i], true
}

// WithLeaf returns new Branch with l added or replacing the Leaf with the
// same ID. All other leaves are shared.
func (b *Branch) WithLeaf(l *Leaf) *Branch {
	res := b.copy()
	res.leaves = insertLeaf(slices.Clone(b.leaves), l)
	return res
}

// WithoutLeaf returns new Branch without Leaf with the given ID. Returns b
// itself if there is no such Leaf.
func (b *Branch) WithoutLeaf(id string) *Branch {
	i, ok := slices.BinarySearchFunc(b.leaves, id, cmpLeaf)
	if !ok {
		return b
	}

	res := b.copy()
	res.leaves = slices.Delete(slices.Clone(b.leaves), i, i+1)
	return res
}

// WithFingerprint returns new Branch with another version fingerprint.
func (b *Branch) WithFingerprint(fp []byte) *Branch {
	res := b.copy()
	res.fingerprint = bytes.Clone(fp)
	return res
}

// WithAttributes returns new Branch with replaced attributes.
func (b *Branch) WithAttributes(attrs map[string]string) *Branch {
	res := b.copy()
	res.attrs = maps.Clone(attrs)
	return res
}

// WithDependencies returns new Branch with replaced dependency edges.
func (b *Branch) WithDependencies(ids []string) *Branch {
	res := b.copy()
	res.deps = sortedUnique(ids)
	return res
}

// ChecksumMemo returns memo slot of the Branch checksum computed with the
// given parameters.
func (b *Branch) ChecksumMemo(key string) *checksum.Memo { return b.memos.Slot(key) }

func (*Branch) node() {}

func cmpLeaf(l *Leaf, id string) int {
	return strings.Compare(l.path, id)
}

func insertLeaf(ls []*Leaf, l *Leaf) []*Leaf {
	i, ok := slices.BinarySearchFunc(ls, l.path, cmpLeaf)
	if ok {
		ls[i] = l
		return ls
	}
	return slices.Insert(ls, i, l)
}

func sortedUnique(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	res := slices.Clone(ss)
	slices.Sort(res)
	return slices.Compact(res)
}
