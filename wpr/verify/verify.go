package verify

import (
	"fmt"

	"github.com/joshuapare/wprkit/internal/buf"
	"github.com/joshuapare/wprkit/internal/format"
)

// ValidationError describes the first invariant a manifest violates.
type ValidationError struct {
	Type    string
	Message string
	Offset  int
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Entry is one managed image of a parsed manifest.
type Entry struct {
	Index int
	WPR   format.WPRHeader
	LSB   format.LSBHeader
}

// Loader reports whether the entry boots through a bootloader descriptor.
func (e *Entry) Loader() bool {
	return e.LSB.Flags&format.FlagLoadCodeAt0 == 0
}

// Manifest is the parsed header structure of a manifest.
type Manifest struct {
	Entries []Entry
	Size    int
}

// Parse decodes the header array and the LSB headers it points to.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{Size: len(data)}
	for off := 0; ; off += format.WPRHeaderSize {
		if !buf.Has(data, off, format.WPRHeaderSize) {
			return nil, &ValidationError{
				Type:    "Sentinel",
				Message: fmt.Sprintf("header array runs past the end after %d entries", len(m.Entries)),
				Offset:  off,
			}
		}
		h, err := format.ParseWPRHeader(data[off:])
		if err != nil {
			return nil, err
		}
		if h.IsTerminator() {
			return m, nil
		}
		lsb, err := parseLSB(data, h.LSBOffset)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, Entry{Index: len(m.Entries), WPR: h, LSB: lsb})
	}
}

func parseLSB(data []byte, off uint32) (format.LSBHeader, error) {
	if !buf.Has(data, int(off), format.LSBHeaderSize) {
		return format.LSBHeader{}, &ValidationError{
			Type:    "Regions",
			Message: fmt.Sprintf("LSB header exceeds manifest of %d bytes", len(data)),
			Offset:  int(off),
		}
	}
	return format.ParseLSBHeader(data[off:])
}

// All parses data and runs every check. It returns the first failure.
func All(data []byte) error {
	m, err := Parse(data)
	if err != nil {
		return err
	}
	for _, check := range []func(*Manifest) error{Alignment, Regions, Strategy, FalconIDs} {
		if err := check(m); err != nil {
			return err
		}
	}
	return nil
}

// Alignment checks the offsets of every entry.
func Alignment(m *Manifest) error {
	for _, e := range m.Entries {
		if !format.IsAligned(e.WPR.LSBOffset, format.LSBHeaderAlignment) {
			return &ValidationError{
				Type:    "Alignment",
				Message: fmt.Sprintf("falcon %d LSB header not %d-aligned", e.WPR.FalconID, format.LSBHeaderAlignment),
				Offset:  int(e.WPR.LSBOffset),
			}
		}
		if !format.IsAligned(e.LSB.UcodeOff, format.UcodeDataAlignment) {
			return &ValidationError{
				Type:    "Alignment",
				Message: fmt.Sprintf("falcon %d ucode not %d-aligned", e.WPR.FalconID, format.UcodeDataAlignment),
				Offset:  int(e.LSB.UcodeOff),
			}
		}
		if e.Loader() && !format.IsAligned(e.LSB.BLDataOff, format.BLDataAlignment) {
			return &ValidationError{
				Type:    "Alignment",
				Message: fmt.Sprintf("falcon %d bootloader data not %d-aligned", e.WPR.FalconID, format.BLDataAlignment),
				Offset:  int(e.LSB.BLDataOff),
			}
		}
	}
	return nil
}

// Regions checks that every entry's regions follow the header array and lie
// inside the manifest.
func Regions(m *Manifest) error {
	arrayEnd := (len(m.Entries) + 1) * format.WPRHeaderSize
	for _, e := range m.Entries {
		lsb := e.LSB
		if int(e.WPR.LSBOffset) < arrayEnd {
			return &ValidationError{
				Type:    "Regions",
				Message: fmt.Sprintf("falcon %d LSB header overlaps the header array", e.WPR.FalconID),
				Offset:  int(e.WPR.LSBOffset),
			}
		}
		if lsb.UcodeOff < e.WPR.LSBOffset+format.LSBHeaderSize {
			return &ValidationError{
				Type:    "Regions",
				Message: fmt.Sprintf("falcon %d ucode overlaps its LSB header", e.WPR.FalconID),
				Offset:  int(lsb.UcodeOff),
			}
		}
		if _, err := buf.CheckRegion(m.Size, int(lsb.UcodeOff), int(lsb.UcodeSize)+int(lsb.DataSize)); err != nil {
			return &ValidationError{
				Type:    "Regions",
				Message: fmt.Sprintf("falcon %d ucode: %v", e.WPR.FalconID, err),
				Offset:  int(lsb.UcodeOff),
			}
		}
		if _, err := buf.CheckRegion(m.Size, int(lsb.BLDataOff), int(lsb.BLDataSize)); err != nil {
			return &ValidationError{
				Type:    "Regions",
				Message: fmt.Sprintf("falcon %d bootloader data: %v", e.WPR.FalconID, err),
				Offset:  int(lsb.BLDataOff),
			}
		}
	}
	return nil
}

// Strategy checks that each entry is consistently a loader or a no-loader
// image.
func Strategy(m *Manifest) error {
	reserve := format.MustAlign(format.GenericDescSize, format.BLDataSizeAlignment)
	for _, e := range m.Entries {
		lsb := e.LSB
		var problem string
		switch {
		case e.Loader() && lsb.BLDataSize != reserve:
			problem = fmt.Sprintf("loader image reserves %#x bootloader data bytes, want %#x", lsb.BLDataSize, reserve)
		case e.Loader() && lsb.BLDataOff < lsb.UcodeOff:
			problem = "bootloader data precedes the ucode"
		case !e.Loader() && lsb.Flags&format.FlagDMACtlReqCtx == 0:
			problem = "no-loader image without DMA context flag"
		case !e.Loader() && lsb.Flags&format.FlagForcePrivLoad != 0:
			problem = "no-loader image with forced privileged load"
		case !e.Loader() && lsb.BLDataOff < lsb.UcodeOff:
			problem = "no-loader data offset not rebased into the manifest"
		default:
			continue
		}
		return &ValidationError{
			Type:    "Strategy",
			Message: fmt.Sprintf("falcon %d: %s", e.WPR.FalconID, problem),
			Offset:  int(e.WPR.LSBOffset),
		}
	}
	return nil
}

// FalconIDs checks that no falcon id is listed twice.
func FalconIDs(m *Manifest) error {
	seen := make(map[uint32]int, len(m.Entries))
	for _, e := range m.Entries {
		if prev, dup := seen[e.WPR.FalconID]; dup {
			return &ValidationError{
				Type:    "FalconIDs",
				Message: fmt.Sprintf("falcon %d listed at entries %d and %d", e.WPR.FalconID, prev, e.Index),
				Offset:  e.Index * format.WPRHeaderSize,
			}
		}
		seen[e.WPR.FalconID] = e.Index
	}
	return nil
}

// Descriptor decodes the bootloader descriptor of a loader entry. The image
// that owns the DMA context flag carries the loader config, every other
// loader image a DMEM descriptor. No-loader entries have none.
func Descriptor(data []byte, e *Entry) (format.BLDesc, error) {
	if !e.Loader() {
		return nil, nil
	}
	b, ok := buf.Slice(data, int(e.LSB.BLDataOff), int(e.LSB.BLDataSize))
	if !ok {
		return nil, &ValidationError{
			Type:    "Regions",
			Message: fmt.Sprintf("falcon %d bootloader data exceeds manifest", e.WPR.FalconID),
			Offset:  int(e.LSB.BLDataOff),
		}
	}
	if e.LSB.Flags&format.FlagDMACtlReqCtx != 0 {
		c, err := format.ParseLoaderConfig(b)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
	d, err := format.ParseBLDmemDesc(b)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
