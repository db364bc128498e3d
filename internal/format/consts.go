// Package format houses the byte-exact wire structures of the secure-boot
// manifest (the "WPR blob") consumed by the hardware root-of-trust. The
// layouts, alignments and id spaces here are fixed by the ACR ucode and must
// match it bit for bit; nothing in this package is computed.
//
// All multi-byte fields are little-endian.
package format

// Falcon ids. A managed image's id is the static base id from its signature
// plus the engine instance.
const (
	FalconIDPMU     uint32 = 0
	FalconIDGSPLite uint32 = 1
	FalconIDFECS    uint32 = 2
	FalconIDGPCCS   uint32 = 3
	FalconIDNVDEC   uint32 = 4
	FalconIDSEC2    uint32 = 7
	FalconIDMinion  uint32 = 10

	// FalconIDEnd bounds the slot space walked during discovery.
	FalconIDEnd uint32 = 15

	// FalconIDInvalid tags the terminating WPR header. Consumers stop there.
	FalconIDInvalid uint32 = 0xFFFFFFFF
)

// Alignment policy. Every offset written into a header is a multiple of the
// constant for its section.
const (
	// WPRHeaderAlignment is the alignment of the WPR header array base.
	WPRHeaderAlignment = 256

	// LSBHeaderAlignment is the alignment of each LSB header.
	LSBHeaderAlignment = 256

	// UcodeDataAlignment is the alignment of each raw ucode image.
	UcodeDataAlignment = 4096

	// BLDataAlignment is the alignment of each bootloader descriptor area.
	BLDataAlignment = 256

	// BLDataSizeAlignment rounds the reserved bootloader descriptor area.
	BLDataSizeAlignment = 256

	// BLCodeSizeAlignment rounds the bootloader code and app sizes of a
	// loader-described image.
	BLCodeSizeAlignment = 256
)

// LSB header flags.
const (
	// FlagLoadCodeAt0 loads the image at IMEM address zero.
	FlagLoadCodeAt0 uint32 = 1 << 0

	// FlagDMACtlReqCtx requires a DMA context for the falcon's transfers.
	FlagDMACtlReqCtx uint32 = 1 << 2

	// FlagForcePrivLoad forces a privileged load.
	FlagForcePrivLoad uint32 = 1 << 3
)

// ImageStatus is the copy/validation status of a WPR header.
type ImageStatus uint32

const (
	ImageStatusNone                 ImageStatus = 0
	ImageStatusCopy                 ImageStatus = 1
	ImageStatusValidationCodeFailed ImageStatus = 2
	ImageStatusValidationDataFailed ImageStatus = 3
	ImageStatusValidationDone       ImageStatus = 4
	ImageStatusValidationSkipped    ImageStatus = 5
	ImageStatusBootstrapReady       ImageStatus = 6
)

// String returns the status name.
func (s ImageStatus) String() string {
	switch s {
	case ImageStatusNone:
		return "none"
	case ImageStatusCopy:
		return "copy"
	case ImageStatusValidationCodeFailed:
		return "validation-code-failed"
	case ImageStatusValidationDataFailed:
		return "validation-data-failed"
	case ImageStatusValidationDone:
		return "validation-done"
	case ImageStatusValidationSkipped:
		return "validation-skipped"
	case ImageStatusBootstrapReady:
		return "bootstrap-ready"
	default:
		return "unknown"
	}
}

// FalconName returns a short name for well-known falcon ids.
func FalconName(id uint32) string {
	switch id {
	case FalconIDPMU:
		return "pmu"
	case FalconIDGSPLite:
		return "gsplite"
	case FalconIDFECS:
		return "fecs"
	case FalconIDGPCCS:
		return "gpccs"
	case FalconIDNVDEC:
		return "nvdec"
	case FalconIDSEC2:
		return "sec2"
	case FalconIDMinion:
		return "minion"
	case FalconIDInvalid:
		return "invalid"
	default:
		return "falcon"
	}
}
