package sbf

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// HashFunc maps a 64-bit key to a 64-bit hash. Implementations must be
// deterministic for a given filter instance and should mix both halves of
// their output well, since callers split the result into two independent
// 32-bit seeds for double hashing.
//
// The only built-in implementation wraps xxh3; tests substitute their own
// HashFunc to drive specific probe sequences (e.g. to force every key into
// the same SCBBF bucket).
type HashFunc func(key uint64) uint64

// defaultHash hashes the little-endian encoding of key with xxh3. The
// buffer is stack-allocated, so this does not allocate.
func defaultHash(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxh3.Hash(buf[:])
}

// reduce maps a 32-bit value into [0, n) without a division, following
// Lemire's multiply-shift trick.
func reduce(x uint32, n uint64) uint64 {
	return (uint64(x) * n) >> 32
}
