package workspace_test

import (
	"testing"

	"github.com/nspcc-dev/persistcache/pkg/workspace"
	"github.com/stretchr/testify/require"
)

func testRoot() *workspace.Root {
	return workspace.NewRoot(workspace.RootPrm{ID: "/src/app.sln"},
		workspace.NewBranch(workspace.BranchPrm{ID: "b", Path: "/src/b.proj", Name: "b"},
			workspace.NewLeaf("/src/b/2.cs", "2.cs", []byte("two")),
			workspace.NewLeaf("/src/b/1.cs", "1.cs", []byte("one")),
		),
		workspace.NewBranch(workspace.BranchPrm{ID: "a", Path: "/src/a.proj", Name: "a", Dependencies: []string{"b", "b"}}),
	)
}

func TestRoot_Order(t *testing.T) {
	r := testRoot()

	bs := r.Branches()
	require.Len(t, bs, 2)
	require.Equal(t, "a", bs[0].ID())
	require.Equal(t, "b", bs[1].ID())
	require.Equal(t, []string{"b"}, bs[0].Dependencies())

	ls := bs[1].Leaves()
	require.Equal(t, "/src/b/1.cs", ls[0].ID())
	require.Equal(t, "/src/b/2.cs", ls[1].ID())
}

func TestRoot_WithLeaf(t *testing.T) {
	r := testRoot()
	a, _ := r.Branch("a")
	b, _ := r.Branch("b")
	unchanged, _ := b.Leaf("/src/b/2.cs")

	r2, err := r.WithLeaf("b", workspace.NewLeaf("/src/b/1.cs", "1.cs", []byte("uno")))
	require.NoError(t, err)

	a2, _ := r2.Branch("a")
	b2, _ := r2.Branch("b")
	require.Same(t, a, a2)
	require.NotSame(t, b, b2)
	require.NotEqual(t, b.ArenaID(), b2.ArenaID())

	l, _ := b2.Leaf("/src/b/2.cs")
	require.Same(t, unchanged, l)

	l, _ = b2.Leaf("/src/b/1.cs")
	require.Equal(t, []byte("uno"), l.Content())

	// source is untouched
	l, _ = b.Leaf("/src/b/1.cs")
	require.Equal(t, []byte("one"), l.Content())

	_, err = r.WithLeaf("c", l)
	require.ErrorIs(t, err, workspace.ErrUnknownBranch)
}

func TestBranch_WithoutLeaf(t *testing.T) {
	b, _ := testRoot().Branch("b")

	require.Same(t, b, b.WithoutLeaf("/none"))

	b2 := b.WithoutLeaf("/src/b/1.cs")
	require.Len(t, b2.Leaves(), 1)
	require.Len(t, b.Leaves(), 2)
}

func TestRoot_Graph(t *testing.T) {
	g := testRoot().Graph()

	deps, err := g.Dependencies("a")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, deps)

	deps, err = g.Dependencies("b")
	require.NoError(t, err)
	require.Empty(t, deps)
}

func TestRoot_ChecksumMemo(t *testing.T) {
	r := testRoot()
	require.Same(t, r.ChecksumMemo("a"), r.ChecksumMemo("a"))
	require.NotSame(t, r.ChecksumMemo("a"), r.ChecksumMemo("b"))

	r2 := r.WithAttributes(map[string]string{"k": "v"})
	require.NotSame(t, r.ChecksumMemo("a"), r2.ChecksumMemo("a"))

	b, _ := r.Branch("b")
	l, _ := b.Leaf("/src/b/1.cs")
	require.Same(t, l.ChecksumMemo("a"), l.ChecksumMemo("a"))
	require.NotSame(t, l.ChecksumMemo("a"), l.ChecksumMemo("b"))
	require.NotSame(t, b.ChecksumMemo("a"), b.WithFingerprint([]byte{1}).ChecksumMemo("a"))
}
