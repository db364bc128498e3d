package format

import "fmt"

// PMU ucode descriptor ("pmu_ucode_desc"), the binary layout description that
// ships next to a loader-described image.
//
//	Offset  Size  Field
//	0x00    4     descriptor_size
//	0x04    4     image_size
//	0x08    4     tools_version
//	0x0C    4     app_version
//	0x10    64    date (NUL-padded, 8-bit)
//	0x50    4     bootloader_start_offset
//	0x54    4     bootloader_size
//	0x58    4     bootloader_imem_offset
//	0x5C    4     bootloader_entry_point
//	0x60    4     app_start_offset
//	0x64    4     app_size
//	0x68    4     app_imem_offset
//	0x6C    4     app_imem_entry
//	0x70    4     app_dmem_offset
//	0x74    4     app_resident_code_offset
//	0x78    4     app_resident_code_size
//	0x7C    4     app_resident_data_offset
//	0x80    4     app_resident_data_size
//	0x84    4     nb_overlays
//	0x88    16    load_ovl[2] {start, size}
//	0x98    4     compressed
const (
	PMUDescDescriptorSizeOffset = 0x00
	PMUDescImageSizeOffset      = 0x04
	PMUDescToolsVersionOffset   = 0x08
	PMUDescAppVersionOffset     = 0x0C
	PMUDescDateOffset           = 0x10
	PMUDescBLStartOffset        = 0x50
	PMUDescBLSizeOffset         = 0x54
	PMUDescBLIMEMOffset         = 0x58
	PMUDescBLEntryOffset        = 0x5C
	PMUDescAppStartOffset       = 0x60
	PMUDescAppSizeOffset        = 0x64
	PMUDescAppIMEMOffset        = 0x68
	PMUDescAppIMEMEntryOffset   = 0x6C
	PMUDescAppDMEMOffset        = 0x70
	PMUDescResCodeOffOffset     = 0x74
	PMUDescResCodeSizeOffset    = 0x78
	PMUDescResDataOffOffset     = 0x7C
	PMUDescResDataSizeOffset    = 0x80
	PMUDescNumOverlaysOffset    = 0x84
	PMUDescOverlaysOffset       = 0x88
	PMUDescCompressedOffset     = 0x98
	PMUDescDateLen              = 64
	PMUDescMaxOverlays          = 2

	// PMUDescSize is the packed size of the descriptor.
	PMUDescSize = 0x9C
)

// PMUDesc is the decoded form of the binary descriptor. Date keeps the raw
// bytes; text decoding is left to the caller.
type PMUDesc struct {
	DescriptorSize        uint32
	ImageSize             uint32
	ToolsVersion          uint32
	AppVersion            uint32
	Date                  [PMUDescDateLen]byte
	BootloaderStartOffset uint32
	BootloaderSize        uint32
	BootloaderIMEMOffset  uint32
	BootloaderEntryPoint  uint32
	AppStartOffset        uint32
	AppSize               uint32
	AppIMEMOffset         uint32
	AppIMEMEntry          uint32
	AppDMEMOffset         uint32
	AppResidentCodeOffset uint32
	AppResidentCodeSize   uint32
	AppResidentDataOffset uint32
	AppResidentDataSize   uint32
	NumOverlays           uint32
	Overlays              [PMUDescMaxOverlays]struct{ Start, Size uint32 }
	Compressed            uint32
}

// ParsePMUDesc decodes a PMU ucode descriptor from b.
func ParsePMUDesc(b []byte) (PMUDesc, error) {
	if len(b) < PMUDescSize {
		return PMUDesc{}, fmt.Errorf("pmu ucode desc: %w", ErrTruncated)
	}
	d := PMUDesc{
		DescriptorSize:        ReadU32(b, PMUDescDescriptorSizeOffset),
		ImageSize:             ReadU32(b, PMUDescImageSizeOffset),
		ToolsVersion:          ReadU32(b, PMUDescToolsVersionOffset),
		AppVersion:            ReadU32(b, PMUDescAppVersionOffset),
		BootloaderStartOffset: ReadU32(b, PMUDescBLStartOffset),
		BootloaderSize:        ReadU32(b, PMUDescBLSizeOffset),
		BootloaderIMEMOffset:  ReadU32(b, PMUDescBLIMEMOffset),
		BootloaderEntryPoint:  ReadU32(b, PMUDescBLEntryOffset),
		AppStartOffset:        ReadU32(b, PMUDescAppStartOffset),
		AppSize:               ReadU32(b, PMUDescAppSizeOffset),
		AppIMEMOffset:         ReadU32(b, PMUDescAppIMEMOffset),
		AppIMEMEntry:          ReadU32(b, PMUDescAppIMEMEntryOffset),
		AppDMEMOffset:         ReadU32(b, PMUDescAppDMEMOffset),
		AppResidentCodeOffset: ReadU32(b, PMUDescResCodeOffOffset),
		AppResidentCodeSize:   ReadU32(b, PMUDescResCodeSizeOffset),
		AppResidentDataOffset: ReadU32(b, PMUDescResDataOffOffset),
		AppResidentDataSize:   ReadU32(b, PMUDescResDataSizeOffset),
		NumOverlays:           ReadU32(b, PMUDescNumOverlaysOffset),
		Compressed:            ReadU32(b, PMUDescCompressedOffset),
	}
	copy(d.Date[:], b[PMUDescDateOffset:PMUDescDateOffset+PMUDescDateLen])
	for i := range d.Overlays {
		d.Overlays[i].Start = ReadU32(b, PMUDescOverlaysOffset+8*i)
		d.Overlays[i].Size = ReadU32(b, PMUDescOverlaysOffset+8*i+4)
	}
	return d, nil
}

// Put encodes d into the first PMUDescSize bytes of b.
func (d *PMUDesc) Put(b []byte) {
	PutU32(b, PMUDescDescriptorSizeOffset, d.DescriptorSize)
	PutU32(b, PMUDescImageSizeOffset, d.ImageSize)
	PutU32(b, PMUDescToolsVersionOffset, d.ToolsVersion)
	PutU32(b, PMUDescAppVersionOffset, d.AppVersion)
	copy(b[PMUDescDateOffset:PMUDescDateOffset+PMUDescDateLen], d.Date[:])
	PutU32(b, PMUDescBLStartOffset, d.BootloaderStartOffset)
	PutU32(b, PMUDescBLSizeOffset, d.BootloaderSize)
	PutU32(b, PMUDescBLIMEMOffset, d.BootloaderIMEMOffset)
	PutU32(b, PMUDescBLEntryOffset, d.BootloaderEntryPoint)
	PutU32(b, PMUDescAppStartOffset, d.AppStartOffset)
	PutU32(b, PMUDescAppSizeOffset, d.AppSize)
	PutU32(b, PMUDescAppIMEMOffset, d.AppIMEMOffset)
	PutU32(b, PMUDescAppIMEMEntryOffset, d.AppIMEMEntry)
	PutU32(b, PMUDescAppDMEMOffset, d.AppDMEMOffset)
	PutU32(b, PMUDescResCodeOffOffset, d.AppResidentCodeOffset)
	PutU32(b, PMUDescResCodeSizeOffset, d.AppResidentCodeSize)
	PutU32(b, PMUDescResDataOffOffset, d.AppResidentDataOffset)
	PutU32(b, PMUDescResDataSizeOffset, d.AppResidentDataSize)
	PutU32(b, PMUDescNumOverlaysOffset, d.NumOverlays)
	for i, ovl := range d.Overlays {
		PutU32(b, PMUDescOverlaysOffset+8*i, ovl.Start)
		PutU32(b, PMUDescOverlaysOffset+8*i+4, ovl.Size)
	}
	PutU32(b, PMUDescCompressedOffset, d.Compressed)
}
