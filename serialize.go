package sbf

import "encoding/binary"

// serializeVersion is the format version stamped into every MarshalBinary
// output. It is bumped whenever the header or payload layout changes.
const serializeVersion byte = 1

// putUint64Slice writes vals into buf starting at off, little-endian, and
// returns the offset following the written bytes.
func putUint64Slice(buf []byte, off int, vals []uint64) int {
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}
	return off
}

// readUint64Slice reads n little-endian uint64s from the front of buf,
// returning the decoded slice and the remaining bytes.
func readUint64Slice(buf []byte, n uint64) ([]uint64, []byte) {
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(buf[:8])
		buf = buf[8:]
	}
	return out, buf
}
