// Package buf contains helpers for bounds-checked, overflow-checked access to
// manifest bytes.
package buf

import "encoding/binary"

// U32LE reads a little-endian uint32 from b. Returns 0 when b is too short.
func U32LE(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Words splits b into little-endian u32 words. Trailing bytes that do not
// form a whole word are dropped.
func Words(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = U32LE(b[i*4:])
	}
	return out
}
