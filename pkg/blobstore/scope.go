package blobstore

import (
	"fmt"

	"github.com/nspcc-dev/persistcache/pkg/containerkey"
)

// Kind is a granularity blobs are stored at.
type Kind uint8

const (
	_ Kind = iota
	// KindRoot is a scope of the whole workspace root.
	KindRoot
	// KindBranch is a scope of a single branch.
	KindBranch
	// KindLeaf is a scope of a single leaf.
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindBranch:
		return "branch"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Scope locates the entity stored blobs belong to.
type Scope struct {
	Kind Kind
	Key  containerkey.Key
}

// RootScope returns Scope of the root with the given id.
func RootScope(rootID string) Scope {
	return Scope{Kind: KindRoot, Key: containerkey.Key{RootID: rootID}}
}

// BranchScope returns Scope of the branch identified by k. Leaf components of
// k are ignored.
func BranchScope(k containerkey.Key) Scope {
	return Scope{Kind: KindBranch, Key: k.BranchKey()}
}

// LeafScope returns Scope of the leaf identified by k.
func LeafScope(k containerkey.Key) Scope {
	return Scope{Kind: KindLeaf, Key: k}
}

// Valid checks whether s locates an entity blobs can be stored for.
func (s Scope) Valid() bool {
	switch s.Kind {
	case KindRoot:
		return s.Key.RootID != ""
	case KindBranch:
		return s.Key.RootID != "" && s.Key.BranchPath != "" && !s.Key.IsLeaf()
	case KindLeaf:
		return s.Key.RootID != "" && s.Key.BranchPath != "" && s.Key.IsLeaf()
	default:
		return false
	}
}

func (s Scope) String() string {
	if s.Kind == KindRoot {
		return s.Kind.String() + ":" + s.Key.RootID
	}
	return s.Kind.String() + ":" + s.Key.String()
}
