package sbf

import (
	"encoding/binary"
	"math/bits"
)

// SCBBF is a succinct counting *blocked* Bloom filter: the array is
// partitioned into 512-bit buckets (one CPU cache line each), and all k
// probes of a key land in a single bucket. This bounds contain-path memory
// traffic to one cache line, at the cost of a wider per-position overflow
// counter (8 bits, vs SCBF's 4) to tolerate the higher occupancy a shared
// bucket sees.
//
// SCBBF is not safe for concurrent use.
type SCBBF struct {
	data     []uint64
	counts   []uint64
	overflow []uint64

	bucketCount    uint64
	arrayLength    uint64
	overflowLength uint64
	nextFree       uint64

	k     uint32
	count uint64
	hash  HashFunc

	engine counterEngine
}

// NewSCBBF creates an SCBBF sized for n items at bitsPerItem bits of
// filter per item, with k defaulting to round(bitsPerItem * ln2).
func NewSCBBF(n uint64, bitsPerItem float64) (*SCBBF, error) {
	return NewSCBBFWithK(n, bitsPerItem, optimalK(bitsPerItem))
}

// NewSCBBFWithK creates an SCBBF with an explicit number of hash probes.
func NewSCBBFWithK(n uint64, bitsPerItem float64, k uint32) (*SCBBF, error) {
	return NewSCBBFWithHasher(n, bitsPerItem, k, defaultHash)
}

// NewSCBBFWithHasher creates an SCBBF using a caller-supplied hash family.
func NewSCBBFWithHasher(n uint64, bitsPerItem float64, k uint32, hash HashFunc) (*SCBBF, error) {
	if err := validateParams(n, bitsPerItem, k); err != nil {
		return nil, err
	}

	bucketCount, arrayLength := scbbfDerivedSizes(n, bitsPerItem)
	overflowLength := overflowPoolSize(arrayLength, overflowFactorSCBBF, overflowStrideSCBBF)

	overflow := make([]uint64, overflowLength)
	initFreeList(overflow, overflowStrideSCBBF)

	return &SCBBF{
		data:           make([]uint64, arrayLength),
		counts:         make([]uint64, arrayLength),
		overflow:       overflow,
		bucketCount:    bucketCount,
		arrayLength:    arrayLength,
		overflowLength: overflowLength,
		k:              k,
		hash:           hash,
		engine:         newCounterEngine(8),
	}, nil
}

// probes calls fn once for each of the filter's k (group, bit) probes for
// key, all of which land in the same 8-group bucket.
func (f *SCBBF) probes(key uint64, fn func(group uint64, bit int)) {
	h := f.hash(key)
	bucketStart := reduce(uint32(bits.RotateLeft64(h, 32)), f.bucketCount) * 8
	a := uint32(h)

	if f.k >= 3 {
		fn(bucketStart+uint64((a>>0)&7), int((a>>3)&0x3f))
		fn(bucketStart+uint64((a>>9)&7), int((a>>12)&0x3f))
		fn(bucketStart+uint64((a>>18)&7), int((a>>21)&0x3f))
	}
	b := uint32(h >> 32)
	for i := uint32(3); i < f.k; i++ {
		a += b
		fn(bucketStart+uint64(a&7), int((a>>3)&0x3f))
	}
}

// Add inserts key into the filter.
func (f *SCBBF) Add(key uint64) error {
	var firstErr error
	f.probes(key, func(group uint64, bit int) {
		if err := f.engine.increment(f.data, f.counts, f.overflow, &f.nextFree, f.overflowLength, group, bit); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	if firstErr != nil {
		return firstErr
	}
	f.count++
	return nil
}

// AddAll inserts keys[start:end] using a blocked staging pass.
func (f *SCBBF) AddAll(keys []uint64, start, end int) error {
	st := newStager(f.arrayLength)
	var firstErr error
	flush := func(entries []uint32) {
		for _, e := range entries {
			group, bit := scbfUnpack(e)
			if err := f.engine.increment(f.data, f.counts, f.overflow, &f.nextFree, f.overflowLength, group, bit); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	for i := start; i < end; i++ {
		f.probes(keys[i], func(group uint64, bit int) {
			st.push(group, scbfPack(group, bit), flush)
		})
		f.count++
	}
	st.flushAll(flush)
	return firstErr
}

// Remove deletes one occurrence of key from the filter. Same precondition
// and corruption-on-violation contract as SCBF.Remove.
func (f *SCBBF) Remove(key uint64) {
	f.probes(key, func(group uint64, bit int) {
		f.engine.decrement(f.data, f.counts, f.overflow, &f.nextFree, group, bit)
	})
	if f.count > 0 {
		f.count--
	}
}

// Contain reports whether key might be in the filter. It AND-accumulates
// across the first three probes (which always exist once k >= 3) before
// deciding whether to continue, since those three loads already share one
// cache line with the fourth-and-later probes.
func (f *SCBBF) Contain(key uint64) bool {
	h := f.hash(key)
	bucketStart := reduce(uint32(bits.RotateLeft64(h, 32)), f.bucketCount) * 8
	a := uint32(h)

	ok := true
	if f.k >= 3 {
		ok = ok && (f.data[bucketStart+uint64((a>>0)&7)]>>((a>>3)&0x3f))&1 != 0
		ok = ok && (f.data[bucketStart+uint64((a>>9)&7)]>>((a>>12)&0x3f))&1 != 0
		ok = ok && (f.data[bucketStart+uint64((a>>18)&7)]>>((a>>21)&0x3f))&1 != 0
	}
	if !ok {
		return false
	}
	b := uint32(h >> 32)
	for i := uint32(3); i < f.k; i++ {
		a += b
		if (f.data[bucketStart+uint64(a&7)]>>((a>>3)&0x3f))&1 == 0 {
			return false
		}
	}
	return true
}

// ReadCount returns the logical count backing (group, bit); exposed for
// counter-fidelity tests.
func (f *SCBBF) ReadCount(group uint64, bit int) int {
	return f.engine.readCount(f.data, f.counts, f.overflow, group, bit)
}

// K returns the number of hash probes per key.
func (f *SCBBF) K() uint32 { return f.k }

// BucketCount returns the number of 8-group cache-line buckets.
func (f *SCBBF) BucketCount() uint64 { return f.bucketCount }

// BucketOf returns the [start, start+8) group range that key's probes
// land in, letting tests verify the locality invariant directly.
func (f *SCBBF) BucketOf(key uint64) (start, end uint64) {
	h := f.hash(key)
	start = reduce(uint32(bits.RotateLeft64(h, 32)), f.bucketCount) * 8
	return start, start + 8
}

// Count returns the number of Add calls minus the number of Remove calls.
func (f *SCBBF) Count() uint64 { return f.count }

// SizeInBytes returns the total memory footprint of data, counts, and the
// overflow pool.
func (f *SCBBF) SizeInBytes() uint64 {
	return f.arrayLength*8*2 + f.overflowLength*8
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// given the number of items added so far.
func (f *SCBBF) EstimatedFalsePositiveRate() float64 {
	return estimateFalsePositiveRate(f.arrayLength*64, f.k, f.count)
}

// Stats reports the filter's current fill ratio and overflow-pool
// pressure.
func (f *SCBBF) Stats() Stats {
	var setBits uint64
	var overflowed uint64
	for i, word := range f.data {
		setBits += uint64(popcount64(word))
		if f.counts[i]&overflowFlag != 0 {
			overflowed++
		}
	}
	return Stats{
		FillRatio:           float64(setBits) / float64(f.arrayLength*64),
		OverflowedGroups:    overflowed,
		FreeOverflowRecords: freeOverflowRecords(f.overflow, f.nextFree, f.overflowLength),
	}
}

const scbbfHeaderSize = 1 + 4 + 8 + 8 + 8 + 8 + 8

// MarshalBinary serializes the filter to a byte slice.
func (f *SCBBF) MarshalBinary() ([]byte, error) {
	dataSize := f.arrayLength * 8 * 2
	overflowSize := f.overflowLength * 8
	buf := make([]byte, uint64(scbbfHeaderSize)+dataSize+overflowSize)

	buf[0] = serializeVersion
	binary.LittleEndian.PutUint32(buf[1:5], f.k)
	binary.LittleEndian.PutUint64(buf[5:13], f.bucketCount)
	binary.LittleEndian.PutUint64(buf[13:21], f.arrayLength)
	binary.LittleEndian.PutUint64(buf[21:29], f.overflowLength)
	binary.LittleEndian.PutUint64(buf[29:37], f.nextFree)
	binary.LittleEndian.PutUint64(buf[37:45], f.count)

	off := scbbfHeaderSize
	off = putUint64Slice(buf, off, f.data)
	off = putUint64Slice(buf, off, f.counts)
	putUint64Slice(buf, off, f.overflow)

	return buf, nil
}

// UnmarshalBinary replaces f's contents with a filter previously written
// by MarshalBinary.
func (f *SCBBF) UnmarshalBinary(data []byte) error {
	if len(data) < scbbfHeaderSize {
		return ErrInvalidData
	}
	if data[0] != serializeVersion {
		return ErrUnsupportedVersion
	}
	k := binary.LittleEndian.Uint32(data[1:5])
	bucketCount := binary.LittleEndian.Uint64(data[5:13])
	arrayLength := binary.LittleEndian.Uint64(data[13:21])
	overflowLength := binary.LittleEndian.Uint64(data[21:29])
	nextFree := binary.LittleEndian.Uint64(data[29:37])
	count := binary.LittleEndian.Uint64(data[37:45])

	if arrayLength == 0 {
		return ErrInvalidData
	}
	expected := uint64(scbbfHeaderSize) + arrayLength*8*2 + overflowLength*8
	if uint64(len(data)) != expected {
		return ErrInvalidData
	}

	rest := data[scbbfHeaderSize:]
	newData, rest := readUint64Slice(rest, arrayLength)
	newCounts, rest := readUint64Slice(rest, arrayLength)
	newOverflow, _ := readUint64Slice(rest, overflowLength)

	f.data = newData
	f.counts = newCounts
	f.overflow = newOverflow
	f.bucketCount = bucketCount
	f.arrayLength = arrayLength
	f.overflowLength = overflowLength
	f.nextFree = nextFree
	f.count = count
	f.k = k
	if f.hash == nil {
		f.hash = defaultHash
	}
	f.engine = newCounterEngine(8)
	return nil
}
