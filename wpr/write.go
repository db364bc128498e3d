package wpr

import (
	"context"
	"fmt"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/internal/logger"
	"github.com/joshuapare/wprkit/ucode"
	"github.com/joshuapare/wprkit/wpr/alloc"
)

func hex(v uint32) string { return fmt.Sprintf("%#x", v) }

// writeAt writes p at off and reports which region failed.
func writeAt(dst alloc.Buffer, p []byte, off uint32, what string, id uint32) error {
	if _, err := dst.WriteAt(p, int64(off)); err != nil {
		return fmt.Errorf("falcon %d %s at %#x: %w", id, what, off, err)
	}
	return nil
}

// materialize writes a planned registry into dst.
func (b *Builder) materialize(ctx context.Context, reg *Registry, dst alloc.Buffer, wprBase uint64) error {
	var (
		wprBuf [format.WPRHeaderSize]byte
		lsbBuf [format.LSBHeaderSize]byte
		blBuf  [format.GenericDescSize]byte
	)

	for i, m := range reg.Records() {
		id := m.FalconID()

		m.WPR.Put(wprBuf[:])
		if err := writeAt(dst, wprBuf[:], uint32(i)*format.WPRHeaderSize, "wpr header", id); err != nil {
			return err
		}
		logger.DebugKV(ctx, "wpr header",
			"falcon", id,
			"lsb_offset", hex(m.WPR.LSBOffset),
			"bootstrap_owner", m.WPR.BootstrapOwner,
			"lazy_bootstrap", m.WPR.LazyBootstrap,
			"status", m.WPR.Status,
		)

		m.LSB.Put(lsbBuf[:])
		if err := writeAt(dst, lsbBuf[:], m.WPR.LSBOffset, "lsb header", id); err != nil {
			return err
		}
		lsb := &m.LSB
		logger.DebugKV(ctx, "lsb header",
			"falcon", id,
			"ucode_off", hex(lsb.UcodeOff),
			"ucode_size", hex(lsb.UcodeSize),
			"data_size", hex(lsb.DataSize),
			"bl_code_size", hex(lsb.BLCodeSize),
			"bl_imem_off", hex(lsb.BLIMEMOff),
			"bl_data_off", hex(lsb.BLDataOff),
			"bl_data_size", hex(lsb.BLDataSize),
			"app_code_off", hex(lsb.AppCodeOff),
			"app_code_size", hex(lsb.AppCodeSize),
			"app_data_off", hex(lsb.AppDataOff),
			"app_data_size", hex(lsb.AppDataSize),
			"flags", hex(lsb.Flags),
		)

		if m.Strategy() == ucode.StrategyLoader {
			desc, err := b.genBootstrapDesc(m, wprBase)
			if err != nil {
				return err
			}
			clear(blBuf[:])
			desc.Put(blBuf[:])
			if err := writeAt(dst, blBuf[:m.DescSize], lsb.BLDataOff, "bootloader descriptor", id); err != nil {
				return err
			}
			logger.DebugKV(ctx, "bootloader descriptor",
				"falcon", id,
				"primary", id == b.cfg.Primary,
				"size", m.DescSize,
			)
		}

		if err := writeAt(dst, m.Image.Data, lsb.UcodeOff, "ucode", id); err != nil {
			return err
		}
	}

	term := format.Terminator()
	term.Put(wprBuf[:])
	return writeAt(dst, wprBuf[:], uint32(reg.Len())*format.WPRHeaderSize, "terminator", format.FalconIDInvalid)
}
