package sbf

import "encoding/binary"

// CBF is a plain counting Bloom filter: 16 four-bit counters per 64-bit
// group, no overflow pool and no succinct encoding. It is the reference
// baseline SCBF and SCBBF are measured against, and it is useful on its own
// when the extra machinery of an overflow pool is not worth its memory cost
// for a workload with a known low per-position count.
//
// A position has no saturation guard: Add always does a raw += on the
// group word. The 16th increment of one position carries into the
// low bit of the next nibble, wrapping the saturated position back to 0
// and silently corrupting its neighbor. Callers expecting more than 15
// duplicate inserts of the same probe should use SCBF or SCBBF instead.
//
// CBF is not safe for concurrent use.
type CBF struct {
	data []uint64

	arrayLength uint64
	k           uint32
	count       uint64
	hash        HashFunc
}

// NewCBF creates a CBF sized for n items at bitsPerItem bits of filter per
// item, with k defaulting to round(bitsPerItem * ln2).
func NewCBF(n uint64, bitsPerItem float64) (*CBF, error) {
	return NewCBFWithK(n, bitsPerItem, optimalK(bitsPerItem))
}

// NewCBFWithK creates a CBF with an explicit number of hash probes.
func NewCBFWithK(n uint64, bitsPerItem float64, k uint32) (*CBF, error) {
	return NewCBFWithHasher(n, bitsPerItem, k, defaultHash)
}

// NewCBFWithHasher creates a CBF using a caller-supplied hash family.
func NewCBFWithHasher(n uint64, bitsPerItem float64, k uint32, hash HashFunc) (*CBF, error) {
	if err := validateParams(n, bitsPerItem, k); err != nil {
		return nil, err
	}
	arrayLength := cbfArrayLength(n, bitsPerItem)
	if arrayLength == 0 {
		arrayLength = 1
	}
	return &CBF{
		data:        make([]uint64, arrayLength),
		arrayLength: arrayLength,
		k:           k,
		hash:        hash,
	}, nil
}

// probes calls fn once for each of the filter's k (group, nibbleShift)
// probes for key. shift is the bit offset of the 4-bit counter within its
// group (0, 4, 8, ..., 60), computed as (a<<2)&0x3f per §4.1.
func (f *CBF) probes(key uint64, fn func(group uint64, shift uint32)) {
	h := f.hash(key)
	a := uint32(h >> 32)
	b := uint32(h)
	for i := uint32(0); i < f.k; i++ {
		fn(reduce(a, f.arrayLength), (a<<2)&0x3f)
		a += b
	}
}

// Add inserts key into the filter. A position already at 15 carries into
// its neighbor rather than erroring; see the type doc comment.
func (f *CBF) Add(key uint64) error {
	f.probes(key, func(group uint64, shift uint32) {
		f.data[group] += uint64(1) << shift
	})
	f.count++
	return nil
}

// AddAll inserts keys[start:end] using a blocked staging pass.
func (f *CBF) AddAll(keys []uint64, start, end int) error {
	st := newStager(f.arrayLength)
	flush := func(entries []uint32) {
		for _, e := range entries {
			group, shift := cbfUnpack(e)
			f.data[group] += uint64(1) << shift
		}
	}
	for i := start; i < end; i++ {
		f.probes(keys[i], func(group uint64, shift uint32) {
			st.push(group, cbfPack(group, shift), flush)
		})
		f.count++
	}
	st.flushAll(flush)
	return nil
}

// Remove deletes one occurrence of key from the filter, symmetric with
// Add's lack of a guard: a zero-valued position borrows from its neighbor
// rather than erroring. Downstream behavior after removing more than was
// added is undefined but does not panic.
func (f *CBF) Remove(key uint64) {
	f.probes(key, func(group uint64, shift uint32) {
		f.data[group] -= uint64(1) << shift
	})
	if f.count > 0 {
		f.count--
	}
}

// Contain reports whether key might be in the filter.
func (f *CBF) Contain(key uint64) bool {
	found := true
	f.probes(key, func(group uint64, shift uint32) {
		if (f.data[group]>>shift)&0xf == 0 {
			found = false
		}
	})
	return found
}

// ReadCount returns the counter value at (group, shift), for tests.
func (f *CBF) ReadCount(group uint64, shift uint32) int {
	return int((f.data[group] >> shift) & 0xf)
}

// K returns the number of hash probes per key.
func (f *CBF) K() uint32 { return f.k }

// ArrayLength returns the number of 64-bit groups in the filter.
func (f *CBF) ArrayLength() uint64 { return f.arrayLength }

// Count returns the number of Add calls minus the number of Remove calls.
func (f *CBF) Count() uint64 { return f.count }

// SizeInBytes returns the total memory footprint of the counter array.
func (f *CBF) SizeInBytes() uint64 {
	return f.arrayLength * 8
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// given the number of items added so far.
func (f *CBF) EstimatedFalsePositiveRate() float64 {
	return estimateFalsePositiveRate(f.arrayLength*64/4, f.k, f.count)
}

// Stats reports the filter's current fill ratio. CBF has no overflow pool,
// so OverflowedGroups and FreeOverflowRecords are always zero; the field
// is kept for interface parity with SCBF and SCBBF's Stats.
func (f *CBF) Stats() Stats {
	var setPositions uint64
	for _, word := range f.data {
		for shift := 0; shift < 64; shift += 4 {
			if (word>>uint(shift))&0xf != 0 {
				setPositions++
			}
		}
	}
	return Stats{
		FillRatio: float64(setPositions) / float64(f.arrayLength*16),
	}
}

const cbfHeaderSize = 1 + 4 + 8 + 8

// MarshalBinary serializes the filter to a byte slice.
func (f *CBF) MarshalBinary() ([]byte, error) {
	buf := make([]byte, uint64(cbfHeaderSize)+f.arrayLength*8)
	buf[0] = serializeVersion
	binary.LittleEndian.PutUint32(buf[1:5], f.k)
	binary.LittleEndian.PutUint64(buf[5:13], f.arrayLength)
	binary.LittleEndian.PutUint64(buf[13:21], f.count)
	putUint64Slice(buf, cbfHeaderSize, f.data)
	return buf, nil
}

// UnmarshalBinary replaces f's contents with a filter previously written
// by MarshalBinary.
func (f *CBF) UnmarshalBinary(data []byte) error {
	if len(data) < cbfHeaderSize {
		return ErrInvalidData
	}
	if data[0] != serializeVersion {
		return ErrUnsupportedVersion
	}
	k := binary.LittleEndian.Uint32(data[1:5])
	arrayLength := binary.LittleEndian.Uint64(data[5:13])
	count := binary.LittleEndian.Uint64(data[13:21])

	if arrayLength == 0 {
		return ErrInvalidData
	}
	expected := uint64(cbfHeaderSize) + arrayLength*8
	if uint64(len(data)) != expected {
		return ErrInvalidData
	}

	newData, _ := readUint64Slice(data[cbfHeaderSize:], arrayLength)
	f.data = newData
	f.arrayLength = arrayLength
	f.count = count
	f.k = k
	if f.hash == nil {
		f.hash = defaultHash
	}
	return nil
}
