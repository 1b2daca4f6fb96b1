package sbf

import "errors"

// Sentinel errors returned by the filter constructors and mutators.
//
// remove of a key that was never added (or double-removed) is not among
// these: it is not detected, and it corrupts the affected counters. That
// is a documented precondition violation, not a reported error — see
// SCBF.Remove.
var (
	// ErrInvalidParams is returned by a constructor when n, bitsPerItem,
	// or k are out of range.
	ErrInvalidParams = errors.New("sbf: invalid parameters")

	// ErrNotEnoughSpace is returned when the overflow pool is exhausted
	// or a per-position overflow counter would saturate. It is a capacity
	// failure: recovery requires rebuilding the filter with more headroom.
	ErrNotEnoughSpace = errors.New("sbf: not enough space")

	// ErrNotSupported is returned by New for a Variant it does not
	// recognize.
	ErrNotSupported = errors.New("sbf: not supported")

	// ErrInvalidData is returned when UnmarshalBinary is given data that
	// is truncated or internally inconsistent.
	ErrInvalidData = errors.New("sbf: invalid serialized data")

	// ErrUnsupportedVersion is returned when UnmarshalBinary is given
	// data written by an incompatible format version.
	ErrUnsupportedVersion = errors.New("sbf: unsupported serialization version")
)
