package wpr

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/ucode"
)

const testWPRBase = 0x80000000

// fill returns n bytes of a recognizable pattern.
func fill(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func signature(id uint32) *ucode.Signature {
	return &ucode.Signature{
		ProdKeys:    [2][16]byte{{0x11}, {0x12}},
		DebugKeys:   [2][16]byte{{0x21}, {0x22}},
		ProdPresent: 1,
		FalconID:    id,
	}
}

// pmuLayout describes a loader image with a 300-byte bootloader and an
// 8 KiB app whose resident data starts 4 KiB in.
func pmuLayout() *ucode.Layout {
	return &ucode.Layout{
		ImageSize:             512 + 8192,
		BootloaderSize:        300,
		BootloaderIMEMOffset:  0xFE00,
		AppStartOffset:        512,
		AppSize:               8192,
		AppIMEMEntry:          0x10,
		AppResidentCodeSize:   4096,
		AppResidentDataOffset: 4096,
		AppResidentDataSize:   4096,
	}
}

func loaderImage(id uint32, l *ucode.Layout) *ucode.Image {
	return &ucode.Image{
		Data:      fill(int(l.ImageSize), byte(id)),
		Source:    l,
		Signature: signature(id),
	}
}

// nlHeader returns a no-loader header without apps.
func nlHeader(codeSize, dataSize uint32) ucode.NoLoaderHeader {
	h := make(ucode.NoLoaderHeader, format.NLHdrWords(0))
	h[format.NLHdrOSCodeSizeInd] = codeSize
	h[format.NLHdrOSDataOffInd] = codeSize
	h[format.NLHdrOSDataSizeInd] = dataSize
	return h
}

func noLoaderImage(id uint32, codeSize, dataSize uint32) *ucode.Image {
	return &ucode.Image{
		Data:      fill(int(codeSize+dataSize), byte(id)),
		Source:    nlHeader(codeSize, dataSize),
		Signature: signature(id),
	}
}

// countingProvider wraps an image and counts calls.
type countingProvider struct {
	img   *ucode.Image
	err   error
	calls int
}

func (p *countingProvider) UcodeDetails(context.Context) (*ucode.Image, error) {
	p.calls++
	return p.img, p.err
}

// newConfig enables one slot per entry, keyed by slot index.
func newConfig(slots map[uint32]ucode.Provider) *Config {
	cfg := &Config{
		Primary:           format.FalconIDPMU,
		BootstrapOwner:    format.FalconIDPMU,
		WPRBase:           func() uint64 { return testWPRBase },
		CmdLineArgsOffset: 0x7000,
	}
	for i, p := range slots {
		cfg.EnableMask |= 1 << i
		cfg.Slots[i].Provider = p
	}
	return cfg
}

// headers decodes the WPR header array of blob up to and including the
// terminator.
func headers(t *testing.T, blob []byte) []format.WPRHeader {
	t.Helper()
	var out []format.WPRHeader
	for off := 0; ; off += format.WPRHeaderSize {
		h, err := format.ParseWPRHeader(blob[off:])
		require.NoError(t, err)
		out = append(out, h)
		if h.IsTerminator() {
			return out
		}
	}
}

func lsbAt(t *testing.T, blob []byte, off uint32) format.LSBHeader {
	t.Helper()
	h, err := format.ParseLSBHeader(blob[off:])
	require.NoError(t, err)
	return h
}

func u32(b []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}
