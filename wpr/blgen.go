package wpr

import (
	"fmt"
	"math"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
)

// dmaAddrs returns the app's resident code and data addresses in 256-byte
// units, as the falcon DMA engine expects them.
func dmaAddrs(m *ManagedImage, wprBase uint64) (code, data uint32, err error) {
	l := m.Image.Layout()
	base := wprBase + uint64(m.LSB.UcodeOff)
	if base < wprBase {
		return 0, 0, types.New(types.ErrKindAddressOverflow,
			fmt.Sprintf("wpr: falcon %d base %#x + %#x overflows", m.FalconID(), wprBase, m.LSB.UcodeOff))
	}
	start := base + uint64(l.AppStartOffset)
	if start < base {
		return 0, 0, types.New(types.ErrKindAddressOverflow,
			fmt.Sprintf("wpr: falcon %d app start overflows", m.FalconID()))
	}

	shifted := func(off uint32) (uint32, error) {
		v := start + uint64(off)
		if v < start || v>>8 > math.MaxUint32 {
			return 0, types.New(types.ErrKindAddressOverflow,
				fmt.Sprintf("wpr: falcon %d dma address %#x exceeds 40 bits", m.FalconID(), v))
		}
		return uint32(v >> 8), nil
	}
	if code, err = shifted(l.AppResidentCodeOffset); err != nil {
		return 0, 0, err
	}
	if data, err = shifted(l.AppResidentDataOffset); err != nil {
		return 0, 0, err
	}
	return code, data, nil
}

// genBootstrapDesc builds the bootloader descriptor of a planned loader
// record and stores it on the record.
func (b *Builder) genBootstrapDesc(m *ManagedImage, wprBase uint64) (format.BLDesc, error) {
	l := m.Image.Layout()
	if l == nil {
		return nil, types.New(types.ErrKindInvalidInput,
			fmt.Sprintf("wpr: falcon %d has no bootloader layout", m.FalconID()))
	}
	code, data, err := dmaAddrs(m, wprBase)
	if err != nil {
		return nil, err
	}

	var desc format.BLDesc
	if m.FalconID() == b.cfg.Primary {
		desc = &format.LoaderConfig{
			DMAIdx:         b.cfg.slot(b.cfg.Primary).DMAIdx,
			CodeDMABase:    code,
			CodeSizeTotal:  l.AppSize,
			CodeSizeToLoad: l.AppResidentCodeSize,
			CodeEntryPoint: l.AppIMEMEntry,
			DataDMABase:    data,
			DataSize:       l.AppResidentDataSize,
			OverlayDMABase: code,
			Argc:           1,
			Argv:           b.cfg.CmdLineArgsOffset,
		}
	} else {
		desc = &format.BLDmemDesc{
			CtxDMA:         b.cfg.slot(m.FalconID()).DMAIdx,
			CodeDMABase:    code,
			NonSecCodeSize: l.AppResidentCodeSize,
			CodeEntryPoint: l.AppIMEMEntry,
			DataDMABase:    data,
			DataSize:       l.AppResidentDataSize,
		}
	}
	m.Desc = desc
	m.DescSize = uint32(desc.Size())
	return desc, nil
}
