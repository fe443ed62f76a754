package blobstore_test

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/persistcache/pkg/blobstore"
	"github.com/nspcc-dev/persistcache/pkg/containerkey"
	"github.com/stretchr/testify/require"
)

var (
	testBranchKey = containerkey.Key{
		RootID:      "/work/root",
		BranchPath:  "/work/root/app",
		BranchName:  "app",
		Fingerprint: "\x01\x02",
	}
	testLeafKey = containerkey.Key{
		RootID:      "/work/root",
		BranchPath:  "/work/root/app",
		BranchName:  "app",
		Fingerprint: "\x01\x02",
		LeafPath:    "/work/root/app/main.src",
		LeafName:    "main.src",
	}
)

func TestEntryKey(t *testing.T) {
	for _, k := range []blobstore.EntryKey{
		{Scope: blobstore.RootScope("/work/root"), Name: "index"},
		{Scope: blobstore.BranchScope(testBranchKey), Name: "symbols"},
		{Scope: blobstore.LeafScope(testLeafKey), Name: "tree"},
		{Scope: blobstore.LeafScope(testLeafKey)},
	} {
		t.Run(k.Scope.Kind.String(), func(t *testing.T) {
			b := k.Bytes()

			res, err := blobstore.ParseEntryKey(b)
			require.NoError(t, err)
			require.Equal(t, k, res)

			_, err = blobstore.ParseEntryKey(b[:len(b)-1])
			require.Error(t, err)

			_, err = blobstore.ParseEntryKey(append(b, 0))
			require.Error(t, err)
		})
	}

	t.Run("scope prefix", func(t *testing.T) {
		s := blobstore.LeafScope(testLeafKey)
		k1 := blobstore.EntryKey{Scope: s, Name: "a"}.Bytes()
		k2 := blobstore.EntryKey{Scope: s, Name: "b"}.Bytes()
		require.Equal(t, k1[:len(k1)-2], k2[:len(k2)-2])
	})

	t.Run("no collisions", func(t *testing.T) {
		// the same components shifted between fields
		k1 := blobstore.EntryKey{Scope: blobstore.RootScope("ab"), Name: "c"}.Bytes()
		k2 := blobstore.EntryKey{Scope: blobstore.RootScope("a"), Name: "bc"}.Bytes()
		require.False(t, bytes.Equal(k1, k2))

		k3 := blobstore.EntryKey{Scope: blobstore.BranchScope(testBranchKey), Name: "x"}.Bytes()
		k4 := blobstore.EntryKey{Scope: blobstore.LeafScope(testLeafKey), Name: "x"}.Bytes()
		require.False(t, bytes.Equal(k3, k4))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := blobstore.ParseEntryKey(nil)
		require.Error(t, err)
		_, err = blobstore.ParseEntryKey([]byte{2, byte(blobstore.KindRoot), 0, 0})
		require.ErrorContains(t, err, "unsupported key version")
		_, err = blobstore.ParseEntryKey([]byte{1, 42, 0, 0})
		require.ErrorContains(t, err, "unknown scope kind")
	})
}

func TestScope(t *testing.T) {
	require.True(t, blobstore.RootScope("r").Valid())
	require.False(t, blobstore.RootScope("").Valid())
	require.True(t, blobstore.BranchScope(testBranchKey).Valid())
	require.True(t, blobstore.BranchScope(testLeafKey).Valid())
	require.Equal(t, blobstore.BranchScope(testBranchKey), blobstore.BranchScope(testLeafKey))
	require.True(t, blobstore.LeafScope(testLeafKey).Valid())
	require.False(t, blobstore.LeafScope(testBranchKey).Valid())
	require.False(t, blobstore.Scope{}.Valid())
	require.False(t, blobstore.BranchScope(containerkey.Key{RootID: "r"}).Valid())
}
