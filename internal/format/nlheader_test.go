package format

import (
	"errors"
	"testing"
)

func TestParseNLSizes_TwoApps(t *testing.T) {
	// os code off/size, os data off/size, 2 apps,
	// app code (off,size)x2, app data (off,size)x2, overlay (off,size)
	hdr := []uint32{
		0, 0x1000, 0x2000, 0x100, 2,
		0x1000, 0x400, 0x1400, 0x200,
		0x2100, 0x80, 0x2180, 0x40,
		0x1600, 0x100,
	}
	if NLHdrWords(2) != len(hdr) {
		t.Fatalf("NLHdrWords(2) = %d, want %d", NLHdrWords(2), len(hdr))
	}
	s, err := ParseNLSizes(hdr)
	if err != nil {
		t.Fatalf("ParseNLSizes: %v", err)
	}
	if s.CodeSize != 0x1000+0x400+0x200+0x100 {
		t.Fatalf("code size = %#x", s.CodeSize)
	}
	if s.DataSize != 0x100+0x80+0x40 {
		t.Fatalf("data size = %#x", s.DataSize)
	}
	if s.BLCodeSize != 0x1000 || s.BLDataOff != 0x2000 || s.BLDataSize != 0x100 {
		t.Fatalf("bl fields = %+v", s)
	}
}

func TestParseNLSizes_NoApps(t *testing.T) {
	hdr := []uint32{0, 4096, 4096, 512, 0, 0, 0}
	s, err := ParseNLSizes(hdr)
	if err != nil {
		t.Fatalf("ParseNLSizes: %v", err)
	}
	if s.CodeSize != 4096 || s.DataSize != 512 {
		t.Fatalf("sizes = %+v", s)
	}
}

func TestParseNLSizes_Malformed(t *testing.T) {
	if _, err := ParseNLSizes([]uint32{1, 2, 3}); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader for short header, got %v", err)
	}
	if _, err := ParseNLSizes([]uint32{0, 1, 2, 3, 3, 0, 0}); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader for app count beyond words, got %v", err)
	}
	if _, err := ParseNLSizes([]uint32{0, 1, 2, 3, 0xFFFFFFFF}); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader for hostile count, got %v", err)
	}
}
