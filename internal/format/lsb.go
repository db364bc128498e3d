package format

import "fmt"

// UcodeDesc is the signature/identity record of an LS falcon image. It is
// copied verbatim into the LSB header.
//
//	Offset  Size  Field
//	0x00    32    prd_keys[2][16]
//	0x20    32    dbg_keys[2][16]
//	0x40    4     b_prd_present
//	0x44    4     b_dbg_present
//	0x48    4     falcon_id (static base id)
type UcodeDesc struct {
	ProdKeys     [2][16]byte
	DebugKeys    [2][16]byte
	ProdPresent  uint32
	DebugPresent uint32
	FalconID     uint32
}

const (
	UcodeDescProdKeysOffset     = 0x00
	UcodeDescDebugKeysOffset    = 0x20
	UcodeDescProdPresentOffset  = 0x40
	UcodeDescDebugPresentOffset = 0x44
	UcodeDescFalconIDOffset     = 0x48

	// UcodeDescSize is the packed size of the signature record.
	UcodeDescSize = 0x4C

	keyLen = 16
)

// Put encodes d into the first UcodeDescSize bytes of b.
func (d *UcodeDesc) Put(b []byte) {
	for i := range d.ProdKeys {
		copy(b[UcodeDescProdKeysOffset+i*keyLen:], d.ProdKeys[i][:])
	}
	for i := range d.DebugKeys {
		copy(b[UcodeDescDebugKeysOffset+i*keyLen:], d.DebugKeys[i][:])
	}
	PutU32(b, UcodeDescProdPresentOffset, d.ProdPresent)
	PutU32(b, UcodeDescDebugPresentOffset, d.DebugPresent)
	PutU32(b, UcodeDescFalconIDOffset, d.FalconID)
}

// DecodeUcodeDesc decodes up to UcodeDescSize bytes of b into a UcodeDesc.
// Shorter inputs leave the remaining fields zero, which is how signature
// files smaller than the record are consumed.
func DecodeUcodeDesc(b []byte) UcodeDesc {
	var full [UcodeDescSize]byte
	copy(full[:], b)
	var d UcodeDesc
	for i := range d.ProdKeys {
		copy(d.ProdKeys[i][:], full[UcodeDescProdKeysOffset+i*keyLen:])
	}
	for i := range d.DebugKeys {
		copy(d.DebugKeys[i][:], full[UcodeDescDebugKeysOffset+i*keyLen:])
	}
	d.ProdPresent = ReadU32(full[:], UcodeDescProdPresentOffset)
	d.DebugPresent = ReadU32(full[:], UcodeDescDebugPresentOffset)
	d.FalconID = ReadU32(full[:], UcodeDescFalconIDOffset)
	return d
}

// LSBHeader describes one managed image inside the manifest.
//
//	Offset  Size  Field
//	0x00    76    signature (UcodeDesc)
//	0x4C    4     ucode_off      (manifest-relative)
//	0x50    4     ucode_size
//	0x54    4     data_size
//	0x58    4     bl_code_size
//	0x5C    4     bl_imem_off
//	0x60    4     bl_data_off    (manifest-relative once planned)
//	0x64    4     bl_data_size
//	0x68    4     app_code_off
//	0x6C    4     app_code_size
//	0x70    4     app_data_off
//	0x74    4     app_data_size
//	0x78    4     flags
type LSBHeader struct {
	Signature   UcodeDesc
	UcodeOff    uint32
	UcodeSize   uint32
	DataSize    uint32
	BLCodeSize  uint32
	BLIMEMOff   uint32
	BLDataOff   uint32
	BLDataSize  uint32
	AppCodeOff  uint32
	AppCodeSize uint32
	AppDataOff  uint32
	AppDataSize uint32
	Flags       uint32
}

const (
	LSBSignatureOffset   = 0x00
	LSBUcodeOffOffset    = 0x4C
	LSBUcodeSizeOffset   = 0x50
	LSBDataSizeOffset    = 0x54
	LSBBLCodeSizeOffset  = 0x58
	LSBBLIMEMOffOffset   = 0x5C
	LSBBLDataOffOffset   = 0x60
	LSBBLDataSizeOffset  = 0x64
	LSBAppCodeOffOffset  = 0x68
	LSBAppCodeSizeOffset = 0x6C
	LSBAppDataOffOffset  = 0x70
	LSBAppDataSizeOffset = 0x74
	LSBFlagsOffset       = 0x78

	// LSBHeaderSize is the packed size of an LSB header.
	LSBHeaderSize = 0x7C
)

// Put encodes h into the first LSBHeaderSize bytes of b.
func (h *LSBHeader) Put(b []byte) {
	h.Signature.Put(b[LSBSignatureOffset:])
	PutU32(b, LSBUcodeOffOffset, h.UcodeOff)
	PutU32(b, LSBUcodeSizeOffset, h.UcodeSize)
	PutU32(b, LSBDataSizeOffset, h.DataSize)
	PutU32(b, LSBBLCodeSizeOffset, h.BLCodeSize)
	PutU32(b, LSBBLIMEMOffOffset, h.BLIMEMOff)
	PutU32(b, LSBBLDataOffOffset, h.BLDataOff)
	PutU32(b, LSBBLDataSizeOffset, h.BLDataSize)
	PutU32(b, LSBAppCodeOffOffset, h.AppCodeOff)
	PutU32(b, LSBAppCodeSizeOffset, h.AppCodeSize)
	PutU32(b, LSBAppDataOffOffset, h.AppDataOff)
	PutU32(b, LSBAppDataSizeOffset, h.AppDataSize)
	PutU32(b, LSBFlagsOffset, h.Flags)
}

// MarshalBinary returns the packed encoding of h.
func (h *LSBHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, LSBHeaderSize)
	h.Put(b)
	return b, nil
}

// ParseLSBHeader decodes the LSB header at the start of b.
func ParseLSBHeader(b []byte) (LSBHeader, error) {
	if len(b) < LSBHeaderSize {
		return LSBHeader{}, fmt.Errorf("lsb header: %w", ErrTruncated)
	}
	return LSBHeader{
		Signature:   DecodeUcodeDesc(b[LSBSignatureOffset:UcodeDescSize]),
		UcodeOff:    ReadU32(b, LSBUcodeOffOffset),
		UcodeSize:   ReadU32(b, LSBUcodeSizeOffset),
		DataSize:    ReadU32(b, LSBDataSizeOffset),
		BLCodeSize:  ReadU32(b, LSBBLCodeSizeOffset),
		BLIMEMOff:   ReadU32(b, LSBBLIMEMOffOffset),
		BLDataOff:   ReadU32(b, LSBBLDataOffOffset),
		BLDataSize:  ReadU32(b, LSBBLDataSizeOffset),
		AppCodeOff:  ReadU32(b, LSBAppCodeOffOffset),
		AppCodeSize: ReadU32(b, LSBAppCodeSizeOffset),
		AppDataOff:  ReadU32(b, LSBAppDataOffOffset),
		AppDataSize: ReadU32(b, LSBAppDataSizeOffset),
		Flags:       ReadU32(b, LSBFlagsOffset),
	}, nil
}
