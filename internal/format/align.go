package format

import "github.com/joshuapare/wprkit/internal/buf"

// Align rounds n up to a multiple of align (a power of two).
// ok is false when the result does not fit in 32 bits.
//
// Example:
//
//	Align(300, BLCodeSizeAlignment)  = 512
//	Align(512, BLCodeSizeAlignment)  = 512
//	Align(60, UcodeDataAlignment)    = 4096
func Align(n, align uint32) (uint32, bool) {
	return buf.AlignU32(n, align)
}

// MustAlign is Align for values already known to be far from the 32-bit limit,
// such as structure sizes.
func MustAlign(n, align uint32) uint32 {
	v, ok := Align(n, align)
	if !ok {
		panic("format: alignment overflow")
	}
	return v
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align uint32) bool {
	return n&(align-1) == 0
}
