package firmware

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/wprkit/internal/config"
	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/ucode"
	"github.com/joshuapare/wprkit/wpr"
	"github.com/joshuapare/wprkit/wpr/verify"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func sigFile(id uint32) []byte {
	d := format.UcodeDesc{ProdPresent: 1, FalconID: id}
	b := make([]byte, format.UcodeDescSize)
	d.Put(b)
	return b
}

func headerFile(words ...uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

// fixture writes firmware for a PMU, a FECS, a signed SEC2 and an unsigned
// NVDEC slot and returns the matching configuration.
func fixture(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	layout := &ucode.Layout{
		ImageSize:             512 + 8192,
		BootloaderSize:        300,
		BootloaderIMEMOffset:  0xFE00,
		AppStartOffset:        512,
		AppSize:               8192,
		AppResidentCodeSize:   4096,
		AppResidentDataOffset: 4096,
		AppResidentDataSize:   4096,
		Date:                  "Mar 1 2018",
	}
	desc, err := layout.MarshalBinary()
	require.NoError(t, err)

	nlHdr := make([]uint32, format.NLHdrWords(0))
	nlHdr[format.NLHdrOSCodeSizeInd] = 4096
	nlHdr[format.NLHdrOSDataOffInd] = 4096
	nlHdr[format.NLHdrOSDataSizeInd] = 512

	cfg := &config.Config{
		WPRBase:    0x80000000,
		ArgsOffset: 0x7000,
		Slots: []config.Slot{
			{
				ID:     format.FalconIDPMU,
				Kind:   config.KindPMU,
				Image:  writeFile(t, dir, "pmu_image.bin", make([]byte, layout.ImageSize)),
				Desc:   writeFile(t, dir, "pmu_desc.bin", desc),
				Sig:    writeFile(t, dir, "pmu_sig.bin", sigFile(format.FalconIDPMU)),
				DMAIdx: 2,
			},
			{
				ID:       format.FalconIDFECS,
				Kind:     config.KindFECS,
				Image:    writeFile(t, dir, "ctxsw.bin", make([]byte, 0x2000)),
				Sig:      writeFile(t, dir, "fecs_sig.bin", sigFile(0)),
				PrivLoad: true,
				Segments: &config.Segments{
					Boot: config.Segment{Offset: 0, Size: 0x200},
					Code: config.Segment{Offset: 0x200, Size: 0x1000},
					Data: config.Segment{Offset: 0x1200, Size: 0x300},
				},
			},
			{
				ID:     format.FalconIDSEC2,
				Kind:   config.KindNoLoader,
				Image:  writeFile(t, dir, "sec2_image.bin", make([]byte, 4096+512)),
				Header: writeFile(t, dir, "sec2_header.bin", headerFile(nlHdr...)),
				Sig:    writeFile(t, dir, "sec2_sig.bin", sigFile(format.FalconIDSEC2)),
				Lazy:   true,
			},
			{
				ID:       format.FalconIDNVDEC,
				Kind:     config.KindNoLoader,
				Image:    writeFile(t, dir, "nvdec_image.bin", make([]byte, 4096+512)),
				Header:   writeFile(t, dir, "nvdec_header.bin", headerFile(nlHdr...)),
				Instance: 1,
			},
		},
	}
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestLoad(t *testing.T) {
	cfg := fixture(t)
	set, err := Load(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, set.Close()) })

	pmu := set.Image(format.FalconIDPMU)
	require.NotNil(t, pmu)
	require.Equal(t, ucode.StrategyLoader, pmu.Source.Strategy())
	require.Equal(t, "Mar 1 2018", pmu.Layout().Date)

	fecs := set.Image(format.FalconIDFECS)
	require.NotNil(t, fecs)
	require.Equal(t, format.FalconIDFECS, fecs.FalconID())
	require.Equal(t, fecs.Layout().ImageSize, fecs.Size())

	sec2 := set.Image(format.FalconIDSEC2)
	require.NotNil(t, sec2)
	require.Equal(t, format.FalconIDSEC2, sec2.FalconID())

	nvdec := set.Image(format.FalconIDNVDEC)
	require.NotNil(t, nvdec)
	require.Nil(t, nvdec.Signature)
	require.Equal(t, uint32(1), nvdec.Instance)

	require.Nil(t, set.Image(format.FalconIDGPCCS))
	require.Nil(t, set.Image(format.FalconIDEnd))
}

func TestBuildConfig(t *testing.T) {
	cfg := fixture(t)
	set, err := Load(context.Background(), cfg)
	require.NoError(t, err)
	defer set.Close()

	wcfg := set.BuildConfig(cfg)
	want := uint32(1<<format.FalconIDPMU | 1<<format.FalconIDFECS | 1<<format.FalconIDSEC2 | 1<<format.FalconIDNVDEC)
	require.Equal(t, want, wcfg.EnableMask)
	require.Equal(t, uint64(0x80000000), wcfg.WPRBase())
	require.Equal(t, uint32(0x7000), wcfg.CmdLineArgsOffset)
	require.Equal(t, uint32(2), wcfg.Slots[format.FalconIDPMU].DMAIdx)
	require.True(t, wcfg.Slots[format.FalconIDFECS].PrivLoad)
	require.True(t, wcfg.Slots[format.FalconIDSEC2].LazyBootstrap)

	b, err := wpr.New(wcfg, nil)
	require.NoError(t, err)
	m, err := b.Prepare(context.Background(), nil)
	require.NoError(t, err)
	defer m.Close()

	// The unsigned NVDEC slot is not managed.
	require.Equal(t, 3, m.Count())
	require.NoError(t, verify.All(m.Bytes()))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"missing image", func(cfg *config.Config) { cfg.Slots[0].Image += ".missing" }},
		{"short pmu image", func(cfg *config.Config) { cfg.Slots[0].Image = cfg.Slots[0].Sig }},
		{"bad header", func(cfg *config.Config) { cfg.Slots[2].Header = cfg.Slots[2].Sig + ".missing" }},
		{"surface too small", func(cfg *config.Config) { cfg.Slots[1].Segments.Data.Size = 0x4000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fixture(t)
			tt.mutate(cfg)
			_, err := Load(context.Background(), cfg)
			require.Error(t, err)
		})
	}
}

func TestLoad_Cancelled(t *testing.T) {
	cfg := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, cfg)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad_NoSlots(t *testing.T) {
	set, err := Load(context.Background(), &config.Config{})
	require.NoError(t, err)
	require.Zero(t, set.BuildConfig(&config.Config{}).EnableMask)
	require.NoError(t, set.Close())
}
