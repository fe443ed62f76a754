package protobuf

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fixed32Len = 4
	fixed64Len = 8
)

// ParseVarint parses varint-encoded uint64 from buf. Returns parsed value and
// number of bytes read.
func ParseVarint(buf []byte) (uint64, int, error) {
	u, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}

	return u, n, nil
}

// ParseTag parses field tag from buf. Returns field number, type and number of
// bytes read.
func ParseTag(buf []byte) (protowire.Number, protowire.Type, int, error) {
	u, n, err := ParseVarint(buf)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse varint: %w", err)
	}

	num, typ := protowire.DecodeTag(u)
	if err = checkFieldNumber(num); err != nil {
		return 0, 0, 0, err
	}

	return num, typ, n, nil
}

// ParseLEN parses varint-encoded length from buf and check its overflow. Returns
// parsed value and number of bytes read.
func ParseLEN(buf []byte) (int, int, error) {
	ln, n, err := ParseVarint(buf)
	if err != nil {
		return 0, 0, fmt.Errorf("parse varint: %w", err)
	}

	if ln > math.MaxInt {
		return 0, 0, fmt.Errorf("value %d overflows int", ln)
	}

	if rem := len(buf) - n; int(ln) > rem {
		return 0, 0, newTruncatedBufferError(int(ln), rem)
	}

	return int(ln), n, nil
}

// ParseBytesField parses value of LEN field with preread number and type from
// buf. Returns sub-slice of buf, not a copy, and number of bytes read.
//
// If there is an error, its text contains num and typ.
func ParseBytesField(buf []byte, num protowire.Number, typ protowire.Type) ([]byte, int, error) {
	err := checkFieldType(num, protowire.BytesType, typ)
	if err != nil {
		return nil, 0, err
	}

	ln, n, err := ParseLEN(buf)
	if err != nil {
		return nil, 0, wrapParseFieldError(num, protowire.BytesType, err)
	}

	return buf[n : n+ln], n + ln, nil
}

// ParseUint64Field parses value of uint64 field with preread number and type
// from buf. Returns value and its length.
//
// If there is an error, its text contains num and typ.
func ParseUint64Field(buf []byte, num protowire.Number, typ protowire.Type) (uint64, int, error) {
	err := checkFieldType(num, protowire.VarintType, typ)
	if err != nil {
		return 0, 0, err
	}

	u, n, err := ParseVarint(buf)
	if err != nil {
		return 0, 0, wrapParseFieldError(num, protowire.VarintType, fmt.Errorf("parse varint: %w", err))
	}

	return u, n, nil
}

// ParseBoolField parses value of bool field with preread number and type from
// buf. Returns value and its length.
//
// If there is an error, its text contains num and typ.
func ParseBoolField(buf []byte, num protowire.Number, typ protowire.Type) (bool, int, error) {
	u, n, err := ParseUint64Field(buf, num, typ)
	if err != nil {
		return false, 0, err
	}

	if u > 1 {
		return false, 0, wrapParseFieldError(num, typ, fmt.Errorf("invalid bool value %d", u))
	}

	return u == 1, n, nil
}

// SkipField parses length of skipped field with preread number and type from
// buf and checks its overflow. Returns number of bytes read.
//
// If there is an error, its text contains num and typ.
func SkipField(buf []byte, num protowire.Number, typ protowire.Type) (int, error) {
	var err error

	switch typ {
	case protowire.VarintType:
		var n int
		if _, n, err = ParseVarint(buf); err == nil {
			return n, nil
		}
	case protowire.Fixed64Type:
		if len(buf) >= fixed64Len {
			return fixed64Len, nil
		}
		err = newTruncatedBufferError(fixed64Len, len(buf))
	case protowire.BytesType:
		var ln, n int
		if ln, n, err = ParseLEN(buf); err == nil {
			return n + ln, nil
		}
	case protowire.StartGroupType, protowire.EndGroupType:
		err = errors.New("type is not supported")
	case protowire.Fixed32Type:
		if len(buf) >= fixed32Len {
			return fixed32Len, nil
		}
		err = newTruncatedBufferError(fixed32Len, len(buf))
	default:
		return 0, newUnknownFieldTypeError(typ)
	}

	return 0, wrapParseFieldError(num, typ, err)
}

// ForEachField calls f for each field of message b in order. f receives
// field number, type and the buffer starting at the field value, and returns
// number of bytes it consumed. Returning 0 skips the field.
func ForEachField(b []byte, f func(num protowire.Number, typ protowire.Type, buf []byte) (int, error)) error {
	var prevNum protowire.Number

	for off := 0; off < len(b); {
		num, typ, n, err := ParseTag(b[off:])
		if err != nil {
			return err
		}
		off += n

		if num == prevNum {
			return NewRepeatedFieldError(num)
		}
		if num < prevNum {
			return NewUnorderedFieldsError(prevNum, num)
		}
		prevNum = num

		n, err = f(num, typ, b[off:])
		if err != nil {
			return err
		}

		if n == 0 {
			if n, err = SkipField(b[off:], num, typ); err != nil {
				return err
			}
		}
		off += n
	}

	return nil
}
