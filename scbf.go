package sbf

import "encoding/binary"

// SCBF is a succinct counting Bloom filter: a classical Bloom filter's bit
// array (data), augmented with a per-group succinct encoding of how many
// times each set bit has been incremented (counts), with an overflow pool
// for groups whose counts no longer fit inline.
//
// SCBF is not safe for concurrent use.
type SCBF struct {
	data     []uint64
	counts   []uint64
	overflow []uint64

	arrayLength    uint64
	overflowLength uint64
	nextFree       uint64

	k     uint32
	count uint64
	hash  HashFunc

	engine counterEngine
}

// NewSCBF creates an SCBF sized for n items at bitsPerItem bits of filter
// per item, with k defaulting to round(bitsPerItem * ln2).
func NewSCBF(n uint64, bitsPerItem float64) (*SCBF, error) {
	return NewSCBFWithK(n, bitsPerItem, optimalK(bitsPerItem))
}

// NewSCBFWithK creates an SCBF with an explicit number of hash probes.
func NewSCBFWithK(n uint64, bitsPerItem float64, k uint32) (*SCBF, error) {
	return NewSCBFWithHasher(n, bitsPerItem, k, defaultHash)
}

// NewSCBFWithHasher creates an SCBF using a caller-supplied hash family.
// This is primarily useful for tests that need to control probe placement
// (see the package's controlled-hash property tests).
func NewSCBFWithHasher(n uint64, bitsPerItem float64, k uint32, hash HashFunc) (*SCBF, error) {
	if err := validateParams(n, bitsPerItem, k); err != nil {
		return nil, err
	}

	arrayLength := scbfArrayLength(n, bitsPerItem)
	if arrayLength == 0 {
		arrayLength = 1
	}
	overflowLength := overflowPoolSize(arrayLength, overflowFactorSCBF, overflowStrideSCBF)

	overflow := make([]uint64, overflowLength)
	initFreeList(overflow, overflowStrideSCBF)

	return &SCBF{
		data:           make([]uint64, arrayLength),
		counts:         make([]uint64, arrayLength),
		overflow:       overflow,
		arrayLength:    arrayLength,
		overflowLength: overflowLength,
		k:              k,
		hash:           hash,
		engine:         newCounterEngine(4),
	}, nil
}

// probes calls fn once for each of the filter's k (group, bit) probes for
// key.
func (f *SCBF) probes(key uint64, fn func(group uint64, bit int)) {
	h := f.hash(key)
	a := uint32(h >> 32)
	b := uint32(h)
	for i := uint32(0); i < f.k; i++ {
		group := reduce(a, f.arrayLength)
		fn(group, int(a&63))
		a += b
	}
}

// Add inserts key into the filter.
func (f *SCBF) Add(key uint64) error {
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

// AddAll inserts keys[start:end] using a blocked staging pass for cache
// locality, per the bulk-add design in §4.5.
func (f *SCBF) AddAll(keys []uint64, start, end int) error {
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

// Remove deletes one occurrence of key from the filter. The caller must
// ensure key was previously added and not already fully removed; violating
// this precondition corrupts the affected counters silently (§7).
func (f *SCBF) Remove(key uint64) {
	f.probes(key, func(group uint64, bit int) {
		f.engine.decrement(f.data, f.counts, f.overflow, &f.nextFree, group, bit)
	})
	if f.count > 0 {
		f.count--
	}
}

// Contain reports whether key might be in the filter. A false result is
// certain; a true result may be a false positive.
func (f *SCBF) Contain(key uint64) bool {
	found := true
	f.probes(key, func(group uint64, bit int) {
		if (f.data[group]>>uint(bit))&1 == 0 {
			found = false
		}
	})
	return found
}

// ReadCount returns the logical count backing (group, bit). It is exposed
// for tests that verify counter fidelity directly against the operation
// history; ordinary callers only need Add/Remove/Contain.
func (f *SCBF) ReadCount(group uint64, bit int) int {
	return f.engine.readCount(f.data, f.counts, f.overflow, group, bit)
}

// K returns the number of hash probes per key.
func (f *SCBF) K() uint32 { return f.k }

// ArrayLength returns the number of 64-bit groups in the filter.
func (f *SCBF) ArrayLength() uint64 { return f.arrayLength }

// Count returns the number of Add calls minus the number of Remove calls.
func (f *SCBF) Count() uint64 { return f.count }

// SizeInBytes returns the total memory footprint of data, counts, and the
// overflow pool.
func (f *SCBF) SizeInBytes() uint64 {
	return f.arrayLength*8*2 + f.overflowLength*8
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// given the number of items added so far.
func (f *SCBF) EstimatedFalsePositiveRate() float64 {
	return estimateFalsePositiveRate(f.arrayLength*64, f.k, f.count)
}

// Stats reports the filter's current fill ratio and overflow-pool
// pressure, useful for capacity planning and property tests that check
// promotion behavior end to end.
func (f *SCBF) Stats() Stats {
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

// Serialization format: version(1) | k(4) | arrayLength(8) | overflowLength(8)
// | nextFree(8) | count(8), all little-endian, followed by data, counts,
// and overflow as little-endian uint64s.
const scbfHeaderSize = 1 + 4 + 8 + 8 + 8 + 8

// MarshalBinary serializes the filter, including its overflow pool and
// free-list cursor, to a byte slice.
func (f *SCBF) MarshalBinary() ([]byte, error) {
	dataSize := f.arrayLength * 8 * 2
	overflowSize := f.overflowLength * 8
	buf := make([]byte, uint64(scbfHeaderSize)+dataSize+overflowSize)

	buf[0] = serializeVersion
	binary.LittleEndian.PutUint32(buf[1:5], f.k)
	binary.LittleEndian.PutUint64(buf[5:13], f.arrayLength)
	binary.LittleEndian.PutUint64(buf[13:21], f.overflowLength)
	binary.LittleEndian.PutUint64(buf[21:29], f.nextFree)
	binary.LittleEndian.PutUint64(buf[29:37], f.count)

	off := scbfHeaderSize
	off = putUint64Slice(buf, off, f.data)
	off = putUint64Slice(buf, off, f.counts)
	putUint64Slice(buf, off, f.overflow)

	return buf, nil
}

// UnmarshalBinary replaces f's contents with a filter previously written
// by MarshalBinary.
func (f *SCBF) UnmarshalBinary(data []byte) error {
	if len(data) < scbfHeaderSize {
		return ErrInvalidData
	}
	if data[0] != serializeVersion {
		return ErrUnsupportedVersion
	}
	k := binary.LittleEndian.Uint32(data[1:5])
	arrayLength := binary.LittleEndian.Uint64(data[5:13])
	overflowLength := binary.LittleEndian.Uint64(data[13:21])
	nextFree := binary.LittleEndian.Uint64(data[21:29])
	count := binary.LittleEndian.Uint64(data[29:37])

	if arrayLength == 0 {
		return ErrInvalidData
	}
	expected := uint64(scbfHeaderSize) + arrayLength*8*2 + overflowLength*8
	if uint64(len(data)) != expected {
		return ErrInvalidData
	}

	rest := data[scbfHeaderSize:]
	newData, rest := readUint64Slice(rest, arrayLength)
	newCounts, rest := readUint64Slice(rest, arrayLength)
	newOverflow, _ := readUint64Slice(rest, overflowLength)

	f.data = newData
	f.counts = newCounts
	f.overflow = newOverflow
	f.arrayLength = arrayLength
	f.overflowLength = overflowLength
	f.nextFree = nextFree
	f.count = count
	f.k = k
	if f.hash == nil {
		f.hash = defaultHash
	}
	f.engine = newCounterEngine(4)
	return nil
}
