package protobuf

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

func checkFieldType(num protowire.Number, exp, got protowire.Type) error {
	if exp == got {
		return nil
	}
	return fmt.Errorf("wrong type of field #%d: expected %v, got %v", num, exp, got)
}

func checkFieldNumber(num protowire.Number) error {
	if num < protowire.MinValidNumber || num > protowire.MaxValidNumber {
		return fmt.Errorf("invalid field number %d", num)
	}
	return nil
}

// AppendBytesField appends LEN field to b unless v is empty.
func AppendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendStringField appends LEN field to b unless v is empty.
func AppendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendUint64Field appends VARINT field to b unless v is zero.
func AppendUint64Field(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBoolField appends VARINT field to b if v is true.
func AppendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return AppendUint64Field(b, num, 1)
}
