package workspace

import "github.com/nspcc-dev/persistcache/pkg/checksum"

// Leaf is an immutable document of a Branch.
type Leaf struct {
	path    string
	name    string
	content []byte

	memos checksum.MemoTable
}

// NewLeaf constructs Leaf identified by its path. The content is copied.
func NewLeaf(path, name string, content []byte) *Leaf {
	return &Leaf{
		path:    path,
		name:    name,
		content: append([]byte(nil), content...),
	}
}

// ID returns Leaf identifier which is its path.
func (l *Leaf) ID() string { return l.path }

// Path returns Leaf path.
func (l *Leaf) Path() string { return l.path }

// Name returns Leaf name.
func (l *Leaf) Name() string { return l.name }

// Content returns Leaf content. The result MUST NOT be modified.
func (l *Leaf) Content() []byte { return l.content }

// WithContent returns a new Leaf with the same identity and another content.
func (l *Leaf) WithContent(content []byte) *Leaf {
	return NewLeaf(l.path, l.name, content)
}

// ChecksumMemo returns memo slot of the Leaf checksum computed with the given
// parameters.
func (l *Leaf) ChecksumMemo(key string) *checksum.Memo { return l.memos.Slot(key) }

func (*Leaf) node() {}
