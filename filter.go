package sbf

// Variant selects which counting Bloom filter New constructs.
type Variant int

const (
	VariantSCBF Variant = iota
	VariantSCBBF
	VariantCBF
)

// Filter is the subset of operations common to SCBF, SCBBF, and CBF. Each
// type's constructor-specific accessors (SCBF/CBF's ArrayLength,
// SCBBF's BucketCount and BucketOf) and its ReadCount, whose second
// argument is a bit index (int) on SCBF and SCBBF but a nibble shift
// (uint32) on CBF, are deliberately left out: they aren't callable through a
// Variant chosen at runtime, so they stay on the concrete types instead
// of being papered over here.
type Filter interface {
	Add(key uint64) error
	AddAll(keys []uint64, start, end int) error
	Remove(key uint64)
	Contain(key uint64) bool
	K() uint32
	Count() uint64
	SizeInBytes() uint64
	EstimatedFalsePositiveRate() float64
	Stats() Stats
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// New constructs the variant named by v, sized for n items at bitsPerItem
// bits each. k selects the number of hash probes; 0 defaults to
// round(bitsPerItem * ln2), same as NewSCBF/NewSCBBF/NewCBF's zero-arg
// form. An unrecognized Variant is the one operation this package
// rejects outright rather than validating: it isn't a bad n, bitsPerItem,
// or k, it's a request for a variant that doesn't exist.
func New(v Variant, n uint64, bitsPerItem float64, k uint32) (Filter, error) {
	if k == 0 {
		k = optimalK(bitsPerItem)
	}
	switch v {
	case VariantSCBF:
		return NewSCBFWithK(n, bitsPerItem, k)
	case VariantSCBBF:
		return NewSCBBFWithK(n, bitsPerItem, k)
	case VariantCBF:
		return NewCBFWithK(n, bitsPerItem, k)
	default:
		return nil, ErrNotSupported
	}
}
