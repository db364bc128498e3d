package format

import "fmt"

// No-loader ucode header. Images that boot without a bootloader carry a
// header of u32 words:
//
//	[0]          os code offset
//	[1]          os code size
//	[2]          os data offset
//	[3]          os data size
//	[4]          number of apps (N)
//	[5+2a]       app a code offset
//	[5+2a+1]     app a code size
//	[5+2N+2a]    app a data offset
//	[5+2N+2a+1]  app a data size
//	[5+4N]       os overlay offset
//	[5+4N+1]     os overlay size
const (
	NLHdrOSCodeOffInd  = 0
	NLHdrOSCodeSizeInd = 1
	NLHdrOSDataOffInd  = 2
	NLHdrOSDataSizeInd = 3
	NLHdrNumAppsInd    = 4
	nlHdrAppCodeStart  = 5
)

// NLHdrAppCodeSizeInd returns the index of app a's code size among n apps.
func NLHdrAppCodeSizeInd(n, a int) int { return nlHdrAppCodeStart + a*2 + 1 }

// NLHdrAppDataSizeInd returns the index of app a's data size among n apps.
func NLHdrAppDataSizeInd(n, a int) int { return nlHdrAppCodeStart + n*2 + a*2 + 1 }

// NLHdrOSOverlaySizeInd returns the index of the OS overlay size for n apps.
func NLHdrOSOverlaySizeInd(n int) int { return nlHdrAppCodeStart + n*4 + 1 }

// NLHdrWords returns the number of header words required for n apps.
func NLHdrWords(n int) int { return NLHdrOSOverlaySizeInd(n) + 1 }

// NLSizes is what the LSB header needs from a no-loader ucode header.
type NLSizes struct {
	CodeSize   uint32 // os code + every app's code + os overlay
	DataSize   uint32 // os data + every app's data
	BLCodeSize uint32 // os code size
	BLDataOff  uint32 // os data offset, relative to the image start
	BLDataSize uint32 // os data size
}

// maxNLApps keeps NLHdrWords from overflowing on hostile counts.
const maxNLApps = 1 << 16

// ParseNLSizes sums the code and data sizes described by a no-loader header.
func ParseNLSizes(hdr []uint32) (NLSizes, error) {
	if len(hdr) <= NLHdrNumAppsInd {
		return NLSizes{}, fmt.Errorf("nl header: %d words: %w", len(hdr), ErrBadHeader)
	}
	apps := hdr[NLHdrNumAppsInd]
	if apps > maxNLApps || len(hdr) < NLHdrWords(int(apps)) {
		return NLSizes{}, fmt.Errorf("nl header: %d apps in %d words: %w", apps, len(hdr), ErrBadHeader)
	}
	n := int(apps)

	code := hdr[NLHdrOSCodeSizeInd]
	for a := range n {
		code += hdr[NLHdrAppCodeSizeInd(n, a)]
	}
	code += hdr[NLHdrOSOverlaySizeInd(n)]

	data := hdr[NLHdrOSDataSizeInd]
	for a := range n {
		data += hdr[NLHdrAppDataSizeInd(n, a)]
	}

	return NLSizes{
		CodeSize:   code,
		DataSize:   data,
		BLCodeSize: hdr[NLHdrOSCodeSizeInd],
		BLDataOff:  hdr[NLHdrOSDataOffInd],
		BLDataSize: hdr[NLHdrOSDataSizeInd],
	}, nil
}
