package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/ucode"
)

// writeFirmware writes a PMU loader image and a SEC2 no-loader image plus a
// config referencing them by relative path, and returns the config path.
func writeFirmware(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(name string, data []byte) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	sig := func(id uint32) []byte {
		d := format.UcodeDesc{ProdPresent: 1, FalconID: id}
		b := make([]byte, format.UcodeDescSize)
		d.Put(b)
		return b
	}

	layout := &ucode.Layout{
		ImageSize:             512 + 8192,
		BootloaderSize:        300,
		AppStartOffset:        512,
		AppSize:               8192,
		AppResidentCodeSize:   4096,
		AppResidentDataOffset: 4096,
		AppResidentDataSize:   4096,
	}
	desc, err := layout.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal layout: %v", err)
	}
	write("pmu_desc.bin", desc)
	write("pmu_image.bin", make([]byte, layout.ImageSize))
	write("pmu_sig.bin", sig(format.FalconIDPMU))

	hdr := make([]byte, 4*format.NLHdrWords(0))
	binary.LittleEndian.PutUint32(hdr[4*format.NLHdrOSCodeSizeInd:], 4096)
	binary.LittleEndian.PutUint32(hdr[4*format.NLHdrOSDataOffInd:], 4096)
	binary.LittleEndian.PutUint32(hdr[4*format.NLHdrOSDataSizeInd:], 512)
	write("sec2_header.bin", hdr)
	write("sec2_image.bin", make([]byte, 4096+512))
	write("sec2_sig.bin", sig(format.FalconIDSEC2))

	write("wprkit.yaml", []byte(`
wpr_base: 0x80000000
args_offset: 0x7000
slots:
  - id: 0
    kind: pmu
    image: pmu_image.bin
    desc: pmu_desc.bin
    sig: pmu_sig.bin
  - id: 7
    kind: noloader
    image: sec2_image.bin
    header: sec2_header.bin
    sig: sec2_sig.bin
`))
	return filepath.Join(dir, "wprkit.yaml")
}

// resetFlags restores every global flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	buildMapped, buildNoVerify = false, false
	dumpDesc = false
	initForce = false
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return string(<-done), fnErr
}

// assertJSON checks that output is valid JSON and decodes it
func assertJSON(t *testing.T, output string) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, output)
	}
	return result
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
