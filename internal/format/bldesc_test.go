package format

import (
	"bytes"
	"testing"
)

func TestLoaderConfigLayout(t *testing.T) {
	c := &LoaderConfig{
		DMAIdx:         1,
		CodeDMABase:    0x00123456,
		CodeSizeTotal:  0x8000,
		CodeSizeToLoad: 0x6000,
		CodeEntryPoint: 0x10,
		DataDMABase:    0x00123480,
		DataSize:       0x1000,
		OverlayDMABase: 0x00123456,
		Argc:           1,
		Argv:           0xF000,
	}
	b := bytes.Repeat([]byte{0xEE}, LoaderConfigSize)
	c.Put(b)
	if ReadU32(b, 0x04) != 0x00123456 || ReadU32(b, 0x1C) != 0x00123456 {
		t.Fatalf("code/overlay base misplaced: % x", b)
	}
	if ReadU32(b, 0x20) != 1 || ReadU32(b, 0x24) != 0xF000 {
		t.Fatalf("argc/argv misplaced: % x", b[0x20:0x28])
	}
	if !bytes.Equal(b[0x28:0x30], make([]byte, 8)) {
		t.Fatalf("high words and padding must be zero: % x", b[0x28:])
	}
	got, err := ParseLoaderConfig(b)
	if err != nil || got != *c {
		t.Fatalf("ParseLoaderConfig = %+v, %v", got, err)
	}
	if c.Size() != LoaderConfigSize {
		t.Fatalf("Size = %d", c.Size())
	}
}

func TestBLDmemDescLayout(t *testing.T) {
	d := &BLDmemDesc{
		CtxDMA:         2,
		CodeDMABase:    0x100,
		NonSecCodeSize: 0x400,
		CodeEntryPoint: 0,
		DataDMABase:    0x104,
		DataSize:       0x200,
	}
	b := make([]byte, BLDmemDescSize)
	d.Put(b)
	if !bytes.Equal(b[:0x20], make([]byte, 0x20)) {
		t.Fatalf("reserved/signature words must be zero")
	}
	if ReadU32(b, 0x20) != 2 || ReadU32(b, 0x24) != 0x100 || ReadU32(b, 0x2C) != 0x400 {
		t.Fatalf("fields misplaced: % x", b)
	}
	if ReadU32(b, 0x3C) != 0x104 || ReadU32(b, 0x40) != 0x200 {
		t.Fatalf("data fields misplaced: % x", b[0x3C:])
	}
	got, err := ParseBLDmemDesc(b)
	if err != nil || got != *d {
		t.Fatalf("ParseBLDmemDesc = %+v, %v", got, err)
	}
	var _ BLDesc = d
	var _ BLDesc = &LoaderConfig{}
}

func TestPMUDescLayout(t *testing.T) {
	raw := make([]byte, PMUDescSize)
	PutU32(raw, PMUDescImageSizeOffset, 0x9000)
	PutU32(raw, PMUDescBLSizeOffset, 300)
	PutU32(raw, PMUDescAppSizeOffset, 0x8000)
	PutU32(raw, PMUDescResDataOffOffset, 0x6000)
	copy(raw[PMUDescDateOffset:], "Mon Jan 1")
	PutU32(raw, PMUDescOverlaysOffset+12, 77)

	d, err := ParsePMUDesc(raw)
	if err != nil {
		t.Fatalf("ParsePMUDesc: %v", err)
	}
	if d.ImageSize != 0x9000 || d.BootloaderSize != 300 || d.AppResidentDataOffset != 0x6000 {
		t.Fatalf("decoded %+v", d)
	}
	if d.Overlays[1].Size != 77 || string(d.Date[:9]) != "Mon Jan 1" {
		t.Fatalf("overlay/date wrong: %+v", d)
	}

	out := make([]byte, PMUDescSize)
	d.Put(out)
	if !bytes.Equal(out, raw) {
		t.Fatalf("re-encoding differs")
	}
	if _, err := ParsePMUDesc(raw[:PMUDescSize-4]); err == nil {
		t.Fatalf("expected truncation error")
	}
}
