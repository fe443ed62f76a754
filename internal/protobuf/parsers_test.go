package protobuf_test

import (
	"testing"

	iprotobuf "github.com/nspcc-dev/persistcache/internal/protobuf"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestForEachField(t *testing.T) {
	var b []byte
	b = iprotobuf.AppendBytesField(b, 1, []byte("key"))
	b = iprotobuf.AppendBoolField(b, 2, true)
	b = iprotobuf.AppendUint64Field(b, 3, 42)
	b = iprotobuf.AppendStringField(b, 4, "skipped")

	var (
		key   []byte
		flag  bool
		count uint64
	)

	err := iprotobuf.ForEachField(b, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		var (
			n   int
			err error
		)
		switch num {
		case 1:
			key, n, err = iprotobuf.ParseBytesField(buf, num, typ)
		case 2:
			flag, n, err = iprotobuf.ParseBoolField(buf, num, typ)
		case 3:
			count, n, err = iprotobuf.ParseUint64Field(buf, num, typ)
		}
		return n, err
	})
	require.NoError(t, err)
	require.Equal(t, []byte("key"), key)
	require.True(t, flag)
	require.EqualValues(t, 42, count)

	t.Run("repeated", func(t *testing.T) {
		b := iprotobuf.AppendUint64Field(iprotobuf.AppendUint64Field(nil, 1, 1), 1, 2)
		err := iprotobuf.ForEachField(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return 0, nil })
		require.EqualError(t, err, "repeated field #1")
	})

	t.Run("unordered", func(t *testing.T) {
		b := iprotobuf.AppendUint64Field(iprotobuf.AppendUint64Field(nil, 2, 1), 1, 2)
		err := iprotobuf.ForEachField(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return 0, nil })
		require.EqualError(t, err, "unordered fields: #1 after #2")
	})

	t.Run("wrong type", func(t *testing.T) {
		b := iprotobuf.AppendUint64Field(nil, 1, 1)
		err := iprotobuf.ForEachField(b, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
			_, n, err := iprotobuf.ParseBytesField(buf, num, typ)
			return n, err
		})
		require.EqualError(t, err, "wrong type of field #1: expected bytes, got varint")
	})

	t.Run("truncated", func(t *testing.T) {
		b := iprotobuf.AppendBytesField(nil, 1, []byte("payload"))
		err := iprotobuf.ForEachField(b[:len(b)-1], func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
			_, n, err := iprotobuf.ParseBytesField(buf, num, typ)
			return n, err
		})
		require.ErrorContains(t, err, "unexpected EOF")
	})
}
