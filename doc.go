// Package sbf implements succinct counting Bloom filters: probabilistic
// set-membership structures that support Remove in addition to Add and
// Contain, without paying a fixed per-position counter width for every
// group.
//
// # Architecture
//
// The package provides three variants:
//
//   - CBF is a plain counting Bloom filter: 16 four-bit counters per
//     64-bit group, no overflow handling. A counter has no saturation
//     guard: an increment past 15 carries into the neighboring counter.
//     It is the reference baseline.
//   - SCBF is a succinct counting Bloom filter: each group's set bits are
//     augmented with a variable-length unary-with-terminator encoding of
//     their counts, packed into the same 64 bits the count would
//     otherwise cost a fixed 4 bits per position. Groups whose counts
//     grow too large to encode inline promote to an explicit overflow
//     record drawn from a shared pool.
//   - SCBBF is SCBF's blocked variant: every probe of a key lands in one
//     512-bit (8-group) bucket, trading a wider 8-bit overflow counter
//     for single-cache-line Contain and Add.
//
// All three share hash-probe generation built on xxh3 and Lemire's
// multiply-shift index reduction, and a common bulk-insert staging path
// that batches probes by memory region before applying them.
//
// # Choosing Parameters
//
// bitsPerItem controls both the array size and, through optimalK, the
// default number of hash probes: k = round(bitsPerItem * ln2) minimizes
// the false positive rate for a fixed budget. Larger bitsPerItem lowers
// the false positive rate and raises memory use; NewSCBF, NewSCBBF, and
// NewCBF all accept an explicit n (expected item count) and bitsPerItem,
// or a WithK variant to override k directly.
//
// # False Positive Rate And Overflow Capacity
//
// EstimatedFalsePositiveRate on any variant gives (1 - e^-kn/m)^k for the
// current item count. SCBF's overflow positions saturate at 15 duplicate
// probes to one bit; SCBBF's saturate at 255. Add returns
// ErrNotEnoughSpace once a position would exceed its variant's ceiling,
// or once the shared overflow pool itself is exhausted.
//
// # Thread Safety
//
// None of the three types are safe for concurrent use. Callers needing
// concurrent access must synchronize externally.
//
// # Serialization
//
// Each type implements encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler, writing a small versioned header followed
// by its backing arrays as little-endian uint64s.
package sbf
