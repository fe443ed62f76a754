package checksum

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size is a length of Checksum in bytes.
const Size = 20

// Checksum is a fixed-size content hash used as a cache key component.
//
// Checksum is a comparable value type: two Checksum instances are equal iff
// their bytes are equal.
type Checksum [Size]byte

// Null is a reserved Checksum value meaning "no checksum requested". Stores
// treat it as "match on name alone, ignore content".
var Null Checksum

// ErrInvalidLength is returned when binary Checksum has wrong length.
var ErrInvalidLength = errors.New("invalid checksum length")

// FromBytes decodes Checksum from its fixed-length binary form.
func FromBytes(b []byte) (Checksum, error) {
	var c Checksum
	if len(b) != Size {
		return c, fmt.Errorf("%w: %d instead of %d", ErrInvalidLength, len(b), Size)
	}

	copy(c[:], b)
	return c, nil
}

// DecodeString decodes Checksum from base58 string produced by String.
func DecodeString(s string) (Checksum, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Null, fmt.Errorf("decode base58: %w", err)
	}

	return FromBytes(b)
}

// IsNull checks whether c is a Null checksum.
func (c Checksum) IsNull() bool {
	return c == Null
}

// Equal checks whether c and x are the same checksums.
func (c Checksum) Equal(x Checksum) bool {
	return c == x
}

// Compare returns an integer comparing two checksums lexicographically.
func (c Checksum) Compare(x Checksum) int {
	return bytes.Compare(c[:], x[:])
}

// Bytes returns binary form of c. The result is a fresh copy.
func (c Checksum) Bytes() []byte {
	return c.AppendTo(make([]byte, 0, Size))
}

// AppendTo appends binary form of c to buf and returns the extended buffer.
func (c Checksum) AppendTo(buf []byte) []byte {
	return append(buf, c[:]...)
}

// String returns base58 representation of c.
func (c Checksum) String() string {
	return base58.Encode(c[:])
}
