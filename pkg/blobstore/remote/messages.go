package remote

import (
	"bytes"

	iprotobuf "github.com/nspcc-dev/persistcache/internal/protobuf"
	"google.golang.org/protobuf/encoding/protowire"
)

// Messages are encoded in Protocol Buffers V3 format by hand. Bytes fields
// are copied on decoding since gRPC may reuse receive buffers.

const (
	fieldKey = 1

	fieldFound    = 1
	fieldChecksum = 2
	fieldData     = 3

	fieldCommitSession  = 1
	fieldCommitKey      = 2
	fieldCommitChecksum = 3
	fieldCommitData     = 4

	fieldCommitEntries = 1
)

// keyRequest is a request of Checksum and Read RPCs.
type keyRequest struct {
	key []byte
}

func (x *keyRequest) MarshalProtobuf() []byte {
	return iprotobuf.AppendBytesField(nil, fieldKey, x.key)
}

func (x *keyRequest) UnmarshalProtobuf(b []byte) error {
	*x = keyRequest{}
	return iprotobuf.ForEachField(b, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		if num != fieldKey {
			return 0, nil
		}
		v, n, err := iprotobuf.ParseBytesField(buf, num, typ)
		x.key = bytes.Clone(v)
		return n, err
	})
}

// entryResponse is a response of Checksum RPC and a message of Read RPC
// stream. Only the first message of the stream carries found flag and
// checksum.
type entryResponse struct {
	found    bool
	checksum []byte
	data     []byte
}

func (x *entryResponse) MarshalProtobuf() []byte {
	b := make([]byte, 0, 2+protowire.SizeBytes(len(x.checksum))+protowire.SizeBytes(len(x.data))+2)
	b = iprotobuf.AppendBoolField(b, fieldFound, x.found)
	b = iprotobuf.AppendBytesField(b, fieldChecksum, x.checksum)
	return iprotobuf.AppendBytesField(b, fieldData, x.data)
}

func (x *entryResponse) UnmarshalProtobuf(b []byte) error {
	*x = entryResponse{}
	return iprotobuf.ForEachField(b, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		var (
			v   []byte
			n   int
			err error
		)
		switch num {
		case fieldFound:
			x.found, n, err = iprotobuf.ParseBoolField(buf, num, typ)
			return n, err
		case fieldChecksum:
			v, n, err = iprotobuf.ParseBytesField(buf, num, typ)
			x.checksum = bytes.Clone(v)
		case fieldData:
			v, n, err = iprotobuf.ParseBytesField(buf, num, typ)
			x.data = bytes.Clone(v)
		}
		return n, err
	})
}

// commitRequest is a message of Commit RPC stream. Non-empty key starts new
// entry, messages without key continue payload of the current one. Session
// is set in the first message only.
type commitRequest struct {
	session  string
	key      []byte
	checksum []byte
	data     []byte
}

func (x *commitRequest) MarshalProtobuf() []byte {
	b := make([]byte, 0, protowire.SizeBytes(len(x.session))+protowire.SizeBytes(len(x.key))+
		protowire.SizeBytes(len(x.checksum))+protowire.SizeBytes(len(x.data))+4)
	b = iprotobuf.AppendStringField(b, fieldCommitSession, x.session)
	b = iprotobuf.AppendBytesField(b, fieldCommitKey, x.key)
	b = iprotobuf.AppendBytesField(b, fieldCommitChecksum, x.checksum)
	return iprotobuf.AppendBytesField(b, fieldCommitData, x.data)
}

func (x *commitRequest) UnmarshalProtobuf(b []byte) error {
	*x = commitRequest{}
	return iprotobuf.ForEachField(b, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		var (
			v   []byte
			n   int
			err error
		)
		switch num {
		case fieldCommitSession:
			v, n, err = iprotobuf.ParseBytesField(buf, num, typ)
			x.session = string(v)
		case fieldCommitKey:
			v, n, err = iprotobuf.ParseBytesField(buf, num, typ)
			x.key = bytes.Clone(v)
		case fieldCommitChecksum:
			v, n, err = iprotobuf.ParseBytesField(buf, num, typ)
			x.checksum = bytes.Clone(v)
		case fieldCommitData:
			v, n, err = iprotobuf.ParseBytesField(buf, num, typ)
			x.data = bytes.Clone(v)
		}
		return n, err
	})
}

// commitResponse is a response of Commit RPC.
type commitResponse struct {
	entries uint64
}

func (x *commitResponse) MarshalProtobuf() []byte {
	return iprotobuf.AppendUint64Field(nil, fieldCommitEntries, x.entries)
}

func (x *commitResponse) UnmarshalProtobuf(b []byte) error {
	*x = commitResponse{}
	return iprotobuf.ForEachField(b, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		if num != fieldCommitEntries {
			return 0, nil
		}
		var (
			n   int
			err error
		)
		x.entries, n, err = iprotobuf.ParseUint64Field(buf, num, typ)
		return n, err
	})
}
