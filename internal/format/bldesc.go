package format

import "fmt"

// BLDesc is a bootloader descriptor written into the BL data area of a
// loader-described image. The concrete variant depends on whether the image
// belongs to the primary co-processor.
type BLDesc interface {
	// Size is the number of bytes Put writes.
	Size() int
	// Put encodes the descriptor into the first Size() bytes of b.
	Put(b []byte)

	isBLDesc()
}

// LoaderConfig is the descriptor read by the primary co-processor's
// bootloader.
//
//	Offset  Size  Field
//	0x00    4     dma_idx
//	0x04    4     code_dma_base       (address >> 8)
//	0x08    4     code_size_total
//	0x0C    4     code_size_to_load
//	0x10    4     code_entry_point
//	0x14    4     data_dma_base       (address >> 8)
//	0x18    4     data_size
//	0x1C    4     overlay_dma_base    (address >> 8)
//	0x20    4     argc
//	0x24    4     argv
//	0x28    2     code_dma_base1
//	0x2A    2     data_dma_base1
//	0x2C    2     overlay_dma_base1
//	0x2E    2     (padding)
type LoaderConfig struct {
	DMAIdx          uint32
	CodeDMABase     uint32
	CodeSizeTotal   uint32
	CodeSizeToLoad  uint32
	CodeEntryPoint  uint32
	DataDMABase     uint32
	DataSize        uint32
	OverlayDMABase  uint32
	Argc            uint32
	Argv            uint32
	CodeDMABase1    uint16
	DataDMABase1    uint16
	OverlayDMABase1 uint16
}

const (
	LoaderCfgDMAIdxOffset          = 0x00
	LoaderCfgCodeDMABaseOffset     = 0x04
	LoaderCfgCodeSizeTotalOffset   = 0x08
	LoaderCfgCodeSizeToLoadOffset  = 0x0C
	LoaderCfgCodeEntryPointOffset  = 0x10
	LoaderCfgDataDMABaseOffset     = 0x14
	LoaderCfgDataSizeOffset        = 0x18
	LoaderCfgOverlayDMABaseOffset  = 0x1C
	LoaderCfgArgcOffset            = 0x20
	LoaderCfgArgvOffset            = 0x24
	LoaderCfgCodeDMABase1Offset    = 0x28
	LoaderCfgDataDMABase1Offset    = 0x2A
	LoaderCfgOverlayDMABase1Offset = 0x2C

	// LoaderConfigSize includes the two bytes of tail padding.
	LoaderConfigSize = 0x30
)

func (*LoaderConfig) isBLDesc() {}

// Size returns LoaderConfigSize.
func (*LoaderConfig) Size() int { return LoaderConfigSize }

// Put encodes c into the first LoaderConfigSize bytes of b.
func (c *LoaderConfig) Put(b []byte) {
	PutU32(b, LoaderCfgDMAIdxOffset, c.DMAIdx)
	PutU32(b, LoaderCfgCodeDMABaseOffset, c.CodeDMABase)
	PutU32(b, LoaderCfgCodeSizeTotalOffset, c.CodeSizeTotal)
	PutU32(b, LoaderCfgCodeSizeToLoadOffset, c.CodeSizeToLoad)
	PutU32(b, LoaderCfgCodeEntryPointOffset, c.CodeEntryPoint)
	PutU32(b, LoaderCfgDataDMABaseOffset, c.DataDMABase)
	PutU32(b, LoaderCfgDataSizeOffset, c.DataSize)
	PutU32(b, LoaderCfgOverlayDMABaseOffset, c.OverlayDMABase)
	PutU32(b, LoaderCfgArgcOffset, c.Argc)
	PutU32(b, LoaderCfgArgvOffset, c.Argv)
	PutU16(b, LoaderCfgCodeDMABase1Offset, c.CodeDMABase1)
	PutU16(b, LoaderCfgDataDMABase1Offset, c.DataDMABase1)
	PutU16(b, LoaderCfgOverlayDMABase1Offset, c.OverlayDMABase1)
	PutU16(b, LoaderCfgOverlayDMABase1Offset+2, 0)
}

// ParseLoaderConfig decodes a LoaderConfig at the start of b.
func ParseLoaderConfig(b []byte) (LoaderConfig, error) {
	if len(b) < LoaderConfigSize {
		return LoaderConfig{}, fmt.Errorf("loader config: %w", ErrTruncated)
	}
	return LoaderConfig{
		DMAIdx:          ReadU32(b, LoaderCfgDMAIdxOffset),
		CodeDMABase:     ReadU32(b, LoaderCfgCodeDMABaseOffset),
		CodeSizeTotal:   ReadU32(b, LoaderCfgCodeSizeTotalOffset),
		CodeSizeToLoad:  ReadU32(b, LoaderCfgCodeSizeToLoadOffset),
		CodeEntryPoint:  ReadU32(b, LoaderCfgCodeEntryPointOffset),
		DataDMABase:     ReadU32(b, LoaderCfgDataDMABaseOffset),
		DataSize:        ReadU32(b, LoaderCfgDataSizeOffset),
		OverlayDMABase:  ReadU32(b, LoaderCfgOverlayDMABaseOffset),
		Argc:            ReadU32(b, LoaderCfgArgcOffset),
		Argv:            ReadU32(b, LoaderCfgArgvOffset),
		CodeDMABase1:    ReadU16(b, LoaderCfgCodeDMABase1Offset),
		DataDMABase1:    ReadU16(b, LoaderCfgDataDMABase1Offset),
		OverlayDMABase1: ReadU16(b, LoaderCfgOverlayDMABase1Offset),
	}, nil
}

// BLDmemDesc is the descriptor read by every other falcon's bootloader.
//
//	Offset  Size  Field
//	0x00    16    reserved[4]
//	0x10    16    signature[4]
//	0x20    4     ctx_dma
//	0x24    4     code_dma_base       (address >> 8)
//	0x28    4     non_sec_code_off
//	0x2C    4     non_sec_code_size
//	0x30    4     sec_code_off
//	0x34    4     sec_code_size
//	0x38    4     code_entry_point
//	0x3C    4     data_dma_base       (address >> 8)
//	0x40    4     data_size
//	0x44    4     code_dma_base1
//	0x48    4     data_dma_base1
type BLDmemDesc struct {
	Reserved       [4]uint32
	Signature      [4]uint32
	CtxDMA         uint32
	CodeDMABase    uint32
	NonSecCodeOff  uint32
	NonSecCodeSize uint32
	SecCodeOff     uint32
	SecCodeSize    uint32
	CodeEntryPoint uint32
	DataDMABase    uint32
	DataSize       uint32
	CodeDMABase1   uint32
	DataDMABase1   uint32
}

const (
	DmemDescReservedOffset       = 0x00
	DmemDescSignatureOffset      = 0x10
	DmemDescCtxDMAOffset         = 0x20
	DmemDescCodeDMABaseOffset    = 0x24
	DmemDescNonSecCodeOffOffset  = 0x28
	DmemDescNonSecCodeSizeOffset = 0x2C
	DmemDescSecCodeOffOffset     = 0x30
	DmemDescSecCodeSizeOffset    = 0x34
	DmemDescCodeEntryPointOffset = 0x38
	DmemDescDataDMABaseOffset    = 0x3C
	DmemDescDataSizeOffset       = 0x40
	DmemDescCodeDMABase1Offset   = 0x44
	DmemDescDataDMABase1Offset   = 0x48

	// BLDmemDescSize is the packed size of a BLDmemDesc.
	BLDmemDescSize = 0x4C
)

func (*BLDmemDesc) isBLDesc() {}

// Size returns BLDmemDescSize.
func (*BLDmemDesc) Size() int { return BLDmemDescSize }

// Put encodes d into the first BLDmemDescSize bytes of b.
func (d *BLDmemDesc) Put(b []byte) {
	for i, v := range d.Reserved {
		PutU32(b, DmemDescReservedOffset+4*i, v)
	}
	for i, v := range d.Signature {
		PutU32(b, DmemDescSignatureOffset+4*i, v)
	}
	PutU32(b, DmemDescCtxDMAOffset, d.CtxDMA)
	PutU32(b, DmemDescCodeDMABaseOffset, d.CodeDMABase)
	PutU32(b, DmemDescNonSecCodeOffOffset, d.NonSecCodeOff)
	PutU32(b, DmemDescNonSecCodeSizeOffset, d.NonSecCodeSize)
	PutU32(b, DmemDescSecCodeOffOffset, d.SecCodeOff)
	PutU32(b, DmemDescSecCodeSizeOffset, d.SecCodeSize)
	PutU32(b, DmemDescCodeEntryPointOffset, d.CodeEntryPoint)
	PutU32(b, DmemDescDataDMABaseOffset, d.DataDMABase)
	PutU32(b, DmemDescDataSizeOffset, d.DataSize)
	PutU32(b, DmemDescCodeDMABase1Offset, d.CodeDMABase1)
	PutU32(b, DmemDescDataDMABase1Offset, d.DataDMABase1)
}

// ParseBLDmemDesc decodes a BLDmemDesc at the start of b.
func ParseBLDmemDesc(b []byte) (BLDmemDesc, error) {
	if len(b) < BLDmemDescSize {
		return BLDmemDesc{}, fmt.Errorf("bl dmem desc: %w", ErrTruncated)
	}
	var d BLDmemDesc
	for i := range d.Reserved {
		d.Reserved[i] = ReadU32(b, DmemDescReservedOffset+4*i)
	}
	for i := range d.Signature {
		d.Signature[i] = ReadU32(b, DmemDescSignatureOffset+4*i)
	}
	d.CtxDMA = ReadU32(b, DmemDescCtxDMAOffset)
	d.CodeDMABase = ReadU32(b, DmemDescCodeDMABaseOffset)
	d.NonSecCodeOff = ReadU32(b, DmemDescNonSecCodeOffOffset)
	d.NonSecCodeSize = ReadU32(b, DmemDescNonSecCodeSizeOffset)
	d.SecCodeOff = ReadU32(b, DmemDescSecCodeOffOffset)
	d.SecCodeSize = ReadU32(b, DmemDescSecCodeSizeOffset)
	d.CodeEntryPoint = ReadU32(b, DmemDescCodeEntryPointOffset)
	d.DataDMABase = ReadU32(b, DmemDescDataDMABaseOffset)
	d.DataSize = ReadU32(b, DmemDescDataSizeOffset)
	d.CodeDMABase1 = ReadU32(b, DmemDescCodeDMABase1Offset)
	d.DataDMABase1 = ReadU32(b, DmemDescDataDMABase1Offset)
	return d, nil
}

// GenericDescSize is the size of the largest descriptor variant. Planning
// reserves this much (rounded to BLDataSizeAlignment) for every
// loader-described image before the variant is known.
const GenericDescSize = max(LoaderConfigSize, BLDmemDescSize)
