package format

import "fmt"

// WPRHeader is one entry of the array at the base of the manifest. The array
// holds one entry per managed image plus a terminator whose FalconID is
// FalconIDInvalid.
//
//	Offset  Size  Field
//	0x00    4     falcon_id
//	0x04    4     lsb_offset       (manifest-relative)
//	0x08    4     bootstrap_owner  (falcon id)
//	0x0C    4     lazy_bootstrap   (0/1)
//	0x10    4     status           (ImageStatus)
type WPRHeader struct {
	FalconID       uint32
	LSBOffset      uint32
	BootstrapOwner uint32
	LazyBootstrap  uint32
	Status         ImageStatus
}

const (
	WPRFalconIDOffset       = 0x00
	WPRLSBOffsetOffset      = 0x04
	WPRBootstrapOwnerOffset = 0x08
	WPRLazyBootstrapOffset  = 0x0C
	WPRStatusOffset         = 0x10

	// WPRHeaderSize is the packed size of a WPR header.
	WPRHeaderSize = 0x14
)

// Terminator returns the WPR header that ends the array.
func Terminator() WPRHeader {
	return WPRHeader{FalconID: FalconIDInvalid}
}

// IsTerminator reports whether h ends the WPR header array.
func (h WPRHeader) IsTerminator() bool {
	return h.FalconID == FalconIDInvalid
}

// Put encodes h into the first WPRHeaderSize bytes of b.
func (h WPRHeader) Put(b []byte) {
	PutU32(b, WPRFalconIDOffset, h.FalconID)
	PutU32(b, WPRLSBOffsetOffset, h.LSBOffset)
	PutU32(b, WPRBootstrapOwnerOffset, h.BootstrapOwner)
	PutU32(b, WPRLazyBootstrapOffset, h.LazyBootstrap)
	PutU32(b, WPRStatusOffset, uint32(h.Status))
}

// MarshalBinary returns the packed encoding of h.
func (h WPRHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, WPRHeaderSize)
	h.Put(b)
	return b, nil
}

// ParseWPRHeader decodes the WPR header at the start of b.
func ParseWPRHeader(b []byte) (WPRHeader, error) {
	if len(b) < WPRHeaderSize {
		return WPRHeader{}, fmt.Errorf("wpr header: %w", ErrTruncated)
	}
	return WPRHeader{
		FalconID:       ReadU32(b, WPRFalconIDOffset),
		LSBOffset:      ReadU32(b, WPRLSBOffsetOffset),
		BootstrapOwner: ReadU32(b, WPRBootstrapOwnerOffset),
		LazyBootstrap:  ReadU32(b, WPRLazyBootstrapOffset),
		Status:         ImageStatus(ReadU32(b, WPRStatusOffset)),
	}, nil
}
