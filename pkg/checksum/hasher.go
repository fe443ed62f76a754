package checksum

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/minio/sha256-simd"
	"lukechampine.com/blake3"
)

// Hasher is a hashing primitive producing Checksum from binary data.
//
// Sum MUST be deterministic and MUST distinguish different splits of the same
// bytes between parts. Hashers reporting the same Algorithm MUST produce the
// same sums: memoized checksums are shared between them.
type Hasher interface {
	Algorithm() string
	Sum(parts ...[]byte) Checksum
}

// Supported hashing algorithms.
const (
	AlgorithmBLAKE3 = "blake3"
	AlgorithmSHA256 = "sha256"
)

// NewHasher returns Hasher for the named algorithm. Empty name selects
// AlgorithmBLAKE3.
func NewHasher(algorithm string) (Hasher, error) {
	switch algorithm {
	case "", AlgorithmBLAKE3:
		return hasher{alg: AlgorithmBLAKE3, newHash: func() hash.Hash { return blake3.New(Size, nil) }}, nil
	case AlgorithmSHA256:
		return hasher{alg: AlgorithmSHA256, newHash: sha256.New}, nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
}

// DefaultHasher returns BLAKE3-based Hasher.
func DefaultHasher() Hasher {
	h, _ := NewHasher(AlgorithmBLAKE3)
	return h
}

type hasher struct {
	alg     string
	newHash func() hash.Hash
}

func (h hasher) Algorithm() string { return h.alg }

// Sum writes each part prefixed with its varint length and truncates the
// digest to Size.
func (x hasher) Sum(parts ...[]byte) Checksum {
	var (
		h   = x.newHash()
		pfx [binary.MaxVarintLen64]byte
		res Checksum
	)

	for i := range parts {
		n := binary.PutUvarint(pfx[:], uint64(len(parts[i])))
		_, _ = h.Write(pfx[:n])
		_, _ = h.Write(parts[i])
	}

	copy(res[:], h.Sum(nil))
	return res
}
