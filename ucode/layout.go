package ucode

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
)

// Layout describes a bootloader-relocated image. Offsets are relative to the
// start of the image data.
type Layout struct {
	ImageSize uint32

	BootloaderStartOffset uint32
	BootloaderSize        uint32
	BootloaderIMEMOffset  uint32
	BootloaderEntryPoint  uint32

	AppStartOffset uint32
	AppSize        uint32
	AppIMEMOffset  uint32
	AppIMEMEntry   uint32
	AppDMEMOffset  uint32

	AppResidentCodeOffset uint32
	AppResidentCodeSize   uint32
	AppResidentDataOffset uint32
	AppResidentDataSize   uint32

	// AppVersion and Date are informational, taken from a PMU descriptor.
	AppVersion uint32
	Date       string
}

func (*Layout) isSource() {}

// Strategy returns StrategyLoader.
func (*Layout) Strategy() Strategy { return StrategyLoader }

// Clone returns a copy of l.
func (l *Layout) Clone() *Layout {
	c := *l
	return &c
}

// ParseLayout decodes a binary PMU ucode descriptor.
func ParseLayout(b []byte) (*Layout, error) {
	d, err := format.ParsePMUDesc(b)
	if err != nil {
		return nil, types.Wrap(types.ErrKindInvalidInput, "ucode: layout", err)
	}
	date, err := decodeDate(d.Date[:])
	if err != nil {
		return nil, types.Wrap(types.ErrKindInvalidInput, "ucode: layout date", err)
	}
	return &Layout{
		ImageSize:             d.ImageSize,
		BootloaderStartOffset: d.BootloaderStartOffset,
		BootloaderSize:        d.BootloaderSize,
		BootloaderIMEMOffset:  d.BootloaderIMEMOffset,
		BootloaderEntryPoint:  d.BootloaderEntryPoint,
		AppStartOffset:        d.AppStartOffset,
		AppSize:               d.AppSize,
		AppIMEMOffset:         d.AppIMEMOffset,
		AppIMEMEntry:          d.AppIMEMEntry,
		AppDMEMOffset:         d.AppDMEMOffset,
		AppResidentCodeOffset: d.AppResidentCodeOffset,
		AppResidentCodeSize:   d.AppResidentCodeSize,
		AppResidentDataOffset: d.AppResidentDataOffset,
		AppResidentDataSize:   d.AppResidentDataSize,
		AppVersion:            d.AppVersion,
		Date:                  date,
	}, nil
}

// MarshalBinary encodes l as a binary PMU ucode descriptor. Characters of
// Date outside ISO-8859-1 are rejected.
func (l *Layout) MarshalBinary() ([]byte, error) {
	d := format.PMUDesc{
		DescriptorSize:        format.PMUDescSize,
		ImageSize:             l.ImageSize,
		AppVersion:            l.AppVersion,
		BootloaderStartOffset: l.BootloaderStartOffset,
		BootloaderSize:        l.BootloaderSize,
		BootloaderIMEMOffset:  l.BootloaderIMEMOffset,
		BootloaderEntryPoint:  l.BootloaderEntryPoint,
		AppStartOffset:        l.AppStartOffset,
		AppSize:               l.AppSize,
		AppIMEMOffset:         l.AppIMEMOffset,
		AppIMEMEntry:          l.AppIMEMEntry,
		AppDMEMOffset:         l.AppDMEMOffset,
		AppResidentCodeOffset: l.AppResidentCodeOffset,
		AppResidentCodeSize:   l.AppResidentCodeSize,
		AppResidentDataOffset: l.AppResidentDataOffset,
		AppResidentDataSize:   l.AppResidentDataSize,
	}
	date, err := charmap.ISO8859_1.NewEncoder().String(l.Date)
	if err != nil {
		return nil, fmt.Errorf("encode date: %w", err)
	}
	if len(date) > format.PMUDescDateLen {
		return nil, fmt.Errorf("date %q longer than %d bytes", l.Date, format.PMUDescDateLen)
	}
	copy(d.Date[:], date)

	b := make([]byte, format.PMUDescSize)
	d.Put(b)
	return b, nil
}

// decodeDate turns the NUL-padded 8-bit date field into UTF-8.
func decodeDate(raw []byte) (string, error) {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return charmap.ISO8859_1.NewDecoder().String(string(raw))
}
