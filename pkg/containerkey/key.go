package containerkey

import "fmt"

// Key identifies a Branch or a Leaf independently of its content. Stored
// blobs are scoped by Key, so entries of different documents never collide
// even if their content checksums coincide.
//
// Key is comparable: two keys are equal iff all components match.
type Key struct {
	RootID      string
	BranchPath  string
	BranchName  string
	Fingerprint string

	LeafPath string
	LeafName string
}

// IsLeaf checks whether k identifies a Leaf.
func (k Key) IsLeaf() bool {
	return k.LeafPath != ""
}

// BranchKey returns Key of the Branch k belongs to.
func (k Key) BranchKey() Key {
	k.LeafPath, k.LeafName = "", ""
	return k
}

func (k Key) String() string {
	if k.IsLeaf() {
		return fmt.Sprintf("%s:%s(%x):%s", k.RootID, k.BranchPath, k.Fingerprint, k.LeafPath)
	}
	return fmt.Sprintf("%s:%s(%x)", k.RootID, k.BranchPath, k.Fingerprint)
}
