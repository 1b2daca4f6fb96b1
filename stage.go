package sbf

// stager partitions the group index space into blockLen-sized chunks and
// buffers (group, bit) probes per block, so a bulk AddAll can apply all
// probes destined for one region of memory together instead of scattering
// writes across the whole array (§4.5).
type stager struct {
	blocks [][]uint32
}

func newStager(arrayLength uint64) *stager {
	numBlocks := 1 + arrayLength/blockLen
	return &stager{blocks: make([][]uint32, numBlocks)}
}

// push appends entry to the block owning group, flushing that block once
// it reaches blockLen entries.
func (s *stager) push(group uint64, entry uint32, flush func([]uint32)) {
	block := group / blockLen
	s.blocks[block] = append(s.blocks[block], entry)
	if len(s.blocks[block]) == blockLen {
		flush(s.blocks[block])
		s.blocks[block] = s.blocks[block][:0]
	}
}

// flushAll flushes every block with pending entries. Called once at the
// end of a bulk add to drain partial blocks.
func (s *stager) flushAll(flush func([]uint32)) {
	for i, b := range s.blocks {
		if len(b) > 0 {
			flush(b)
			s.blocks[i] = b[:0]
		}
	}
}

// scbfPack and scbfUnpack encode a (group, bit) probe for SCBF/SCBBF as
// group<<6 | bit, per §4.5. This limits bulk-add support to arrays with
// fewer than 2^26 groups, a limit inherited from the reference
// implementation's 32-bit packed encoding.
func scbfPack(group uint64, bit int) uint32 {
	return uint32(group)<<6 | uint32(bit)
}

func scbfUnpack(entry uint32) (group uint64, bit int) {
	return uint64(entry >> 6), int(entry & 63)
}

// cbfPack and cbfUnpack encode a (group, nibbleShift) probe for the plain
// CBF as group<<4 | nibble, per §4.5.
func cbfPack(group uint64, shift uint32) uint32 {
	return uint32(group)<<4 | (shift/4)&0xf
}

func cbfUnpack(entry uint32) (group uint64, shift uint32) {
	return uint64(entry >> 4), (entry & 0xf) * 4
}
