package wpr

import (
	"fmt"

	"github.com/joshuapare/wprkit/internal/buf"
	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
	"github.com/joshuapare/wprkit/ucode"
)

// blDataReserve is the bootloader descriptor area reserved for every loader
// image, sized for the largest descriptor variant.
var blDataReserve = format.MustAlign(format.GenericDescSize, format.BLDataSizeAlignment)

// cursor is the running manifest offset of the planner. The first overflow
// sticks and is reported by err.
type cursor struct {
	off      uint32
	overflow bool
}

func (c *cursor) align(a uint32) uint32 {
	v, ok := buf.AlignU32(c.off, a)
	if !ok {
		c.overflow = true
	}
	c.off = v
	return v
}

func (c *cursor) advance(n uint32) {
	v, ok := buf.AddU32(c.off, n)
	if !ok {
		c.overflow = true
	}
	c.off = v
}

func (c *cursor) err(id uint32) error {
	if !c.overflow {
		return nil
	}
	return types.New(types.ErrKindAddressOverflow,
		fmt.Sprintf("wpr: manifest exceeds 32-bit offsets at falcon %d", id))
}

// Plan assigns every offset of the manifest and returns its total size.
// Once Plan has started no record may be added.
func (r *Registry) Plan(primary uint32) (uint32, error) {
	r.planned = true

	n, ok := buf.MulU32(format.WPRHeaderSize, uint32(len(r.records))+1)
	if !ok {
		return 0, types.New(types.ErrKindAddressOverflow, "wpr: header array overflows")
	}
	c := cursor{off: n}

	for _, m := range r.Records() {
		id := m.FalconID()
		lsb := &m.LSB

		m.WPR.LSBOffset = c.align(format.LSBHeaderAlignment)
		c.advance(format.LSBHeaderSize)

		lsb.UcodeOff = c.align(format.UcodeDataAlignment)
		c.advance(m.Image.Size())

		switch m.Strategy() {
		case ucode.StrategyLoader:
			lsb.BLDataSize = blDataReserve
			lsb.BLDataOff = c.align(format.BLDataAlignment)
			c.advance(lsb.BLDataSize)
		case ucode.StrategyNoLoader:
			// bl_data_off was relative to the image start.
			off, ok := buf.AddU32(lsb.BLDataOff, c.off-m.Image.Size())
			if !ok {
				c.overflow = true
			}
			lsb.BLDataOff = off
		}
		if err := c.err(id); err != nil {
			return 0, err
		}

		m.FullSize = c.off - lsb.UcodeOff
		if id != primary {
			lsb.AppCodeOff = lsb.BLCodeSize
			lsb.AppCodeSize = lsb.UcodeSize - lsb.BLCodeSize
			lsb.AppDataOff = lsb.UcodeSize
			lsb.AppDataSize = lsb.DataSize
		}
	}

	r.size = c.off
	return r.size, nil
}
