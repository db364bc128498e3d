package buf

import (
	"fmt"
	"math"
)

// AddU32 adds a and b, returning ok = false when the result would not fit in 32 bits.
// Manifest offsets are u32 on the wire, so every cursor advance goes through here.
func AddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

// MulU32 multiplies a and b, returning ok = false when the result would not fit in 32 bits.
func MulU32(a, b uint32) (uint32, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

// AlignU32 rounds n up to the next multiple of align, which must be a power
// of two. ok is false when the rounded value would not fit in 32 bits.
func AlignU32(n, align uint32) (uint32, bool) {
	mask := align - 1
	sum, ok := AddU32(n, mask)
	if !ok {
		return 0, false
	}
	return sum &^ mask, true
}

// CheckRegion validates that n bytes starting at off fit in a buffer of
// bufLen bytes. Returns the end offset if valid.
//
//	end, err := buf.CheckRegion(len(blob), int(lsb.UcodeOff), int(lsb.UcodeSize))
//	if err != nil {
//	    return fmt.Errorf("ucode: %w", err)
//	}
func CheckRegion(bufLen, off, n int) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size: %d", n)
	}
	if off > math.MaxInt-n {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", off, n)
	}
	end := off + n
	if end > bufLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, bufLen)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	end, err := CheckRegion(len(b), off, n)
	if err != nil {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
