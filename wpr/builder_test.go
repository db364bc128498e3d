package wpr

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
	"github.com/joshuapare/wprkit/ucode"
	"github.com/joshuapare/wprkit/wpr/alloc"
)

func newBuilder(t *testing.T, cfg *Config, heap alloc.Heap, a alloc.BlobAllocator) *Builder {
	t.Helper()
	b, err := New(cfg, &Options{Heap: heap, Allocator: a})
	require.NoError(t, err)
	return b
}

// TestPrepare_TwoImageLayout places a no-loader image (4096 code / 512 data) and a
// loader image (300-byte bootloader, 8 KiB app) and checks every offset.
func TestPrepare_TwoImageLayout(t *testing.T) {
	pmu := loaderImage(format.FalconIDPMU, pmuLayout())
	sec2 := noLoaderImage(format.FalconIDSEC2, 4096, 512)
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU:  ucode.Static(pmu),
		format.FalconIDSEC2: ucode.Static(sec2),
	})
	cfg.Slots[format.FalconIDPMU].DMAIdx = 2

	m, err := newBuilder(t, cfg, nil, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, m.Built())
	assert.Equal(t, 2, m.Count())
	assert.Equal(t, uint32(21248), m.Size())
	blob := m.Bytes()
	require.Len(t, blob, 21248)

	// Records appear in reverse discovery order.
	hdrs := headers(t, blob)
	require.Len(t, hdrs, 3)
	assert.Equal(t, format.WPRHeader{
		FalconID:       format.FalconIDSEC2,
		LSBOffset:      256,
		BootstrapOwner: format.FalconIDPMU,
		Status:         format.ImageStatusCopy,
	}, hdrs[0])
	assert.Equal(t, format.FalconIDPMU, hdrs[1].FalconID)
	assert.Equal(t, uint32(8704), hdrs[1].LSBOffset)
	assert.Equal(t, format.Terminator(), hdrs[2])

	wantSEC2 := format.LSBHeader{
		Signature:   *signature(format.FalconIDSEC2),
		UcodeOff:    4096,
		UcodeSize:   4096,
		DataSize:    512,
		BLCodeSize:  4096,
		BLDataOff:   4096 + 4096,
		BLDataSize:  512,
		AppCodeOff:  4096,
		AppCodeSize: 0,
		AppDataOff:  4096,
		AppDataSize: 512,
		Flags:       format.FlagLoadCodeAt0 | format.FlagDMACtlReqCtx,
	}
	if diff := cmp.Diff(wantSEC2, lsbAt(t, blob, 256)); diff != "" {
		t.Fatalf("sec2 lsb header mismatch (-want +got):\n%s", diff)
	}

	wantPMU := format.LSBHeader{
		Signature:  *signature(format.FalconIDPMU),
		UcodeOff:   12288,
		UcodeSize:  4096 + 512,
		DataSize:   4096,
		BLCodeSize: 512,
		BLIMEMOff:  0xFE00,
		BLDataOff:  20992,
		BLDataSize: 256,
		Flags:      format.FlagDMACtlReqCtx,
	}
	if diff := cmp.Diff(wantPMU, lsbAt(t, blob, 8704)); diff != "" {
		t.Fatalf("pmu lsb header mismatch (-want +got):\n%s", diff)
	}

	// The reserved area is the generic size rounded up, not the 48-byte
	// LoaderConfig that is written into it.
	cfgDesc, err := format.ParseLoaderConfig(blob[20992:])
	require.NoError(t, err)
	assert.Equal(t, format.LoaderConfig{
		DMAIdx:         2,
		CodeDMABase:    (testWPRBase + 12288 + 512) >> 8,
		CodeSizeTotal:  8192,
		CodeSizeToLoad: 4096,
		CodeEntryPoint: 0x10,
		DataDMABase:    (testWPRBase + 12288 + 512 + 4096) >> 8,
		DataSize:       4096,
		OverlayDMABase: (testWPRBase + 12288 + 512) >> 8,
		Argc:           1,
		Argv:           0x7000,
	}, cfgDesc)
	assert.Equal(t, make([]byte, 256-format.LoaderConfigSize), blob[20992+format.LoaderConfigSize:21248])

	assert.Equal(t, sec2.Data, blob[4096:4096+4608])
	assert.Equal(t, pmu.Data, blob[12288:12288+8704])
}

func TestPrepare_SecondaryDescriptor(t *testing.T) {
	l := pmuLayout()
	l.AppResidentCodeOffset = 0x40
	fecs := loaderImage(format.FalconIDFECS, l)
	cfg := newConfig(map[uint32]ucode.Provider{format.FalconIDFECS: ucode.Static(fecs)})
	cfg.Slots[format.FalconIDFECS].DMAIdx = 5
	cfg.Slots[format.FalconIDFECS].PrivLoad = true
	cfg.Slots[format.FalconIDFECS].LazyBootstrap = true

	m, err := newBuilder(t, cfg, nil, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)
	blob := m.Bytes()

	hdrs := headers(t, blob)
	require.Len(t, hdrs, 2)
	assert.Equal(t, uint32(1), hdrs[0].LazyBootstrap)

	lsb := lsbAt(t, blob, hdrs[0].LSBOffset)
	assert.Equal(t, format.FlagForcePrivLoad, lsb.Flags, "secondary loader images never request a DMA context")
	assert.Equal(t, lsb.BLCodeSize, lsb.AppCodeOff)
	assert.Equal(t, lsb.UcodeSize-lsb.BLCodeSize, lsb.AppCodeSize)
	assert.Equal(t, lsb.UcodeSize, lsb.AppDataOff)
	assert.Equal(t, lsb.DataSize, lsb.AppDataSize)

	desc, err := format.ParseBLDmemDesc(blob[lsb.BLDataOff:])
	require.NoError(t, err)
	base := uint64(testWPRBase) + uint64(lsb.UcodeOff) + 512
	assert.Equal(t, format.BLDmemDesc{
		CtxDMA:         5,
		CodeDMABase:    uint32((base + 0x40) >> 8),
		NonSecCodeSize: 4096,
		CodeEntryPoint: 0x10,
		DataDMABase:    uint32((base + 4096) >> 8),
		DataSize:       4096,
	}, desc)
	assert.Equal(t, uint32(256), lsb.BLDataSize)
}

func TestPrepare_ManyImagesInvariants(t *testing.T) {
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU:   ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
		format.FalconIDFECS:  ucode.Static(loaderImage(format.FalconIDFECS, pmuLayout())),
		format.FalconIDGPCCS: ucode.Static(loaderImage(format.FalconIDGPCCS, pmuLayout())),
		format.FalconIDSEC2:  ucode.Static(noLoaderImage(format.FalconIDSEC2, 1000, 300)),
		format.FalconIDNVDEC: ucode.Static(noLoaderImage(format.FalconIDNVDEC, 5000, 17)),
	})

	m, err := newBuilder(t, cfg, nil, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)
	blob := m.Bytes()

	hdrs := headers(t, blob)
	require.Len(t, hdrs, m.Count()+1)
	require.Equal(t, 5, m.Count())
	assert.True(t, hdrs[m.Count()].IsTerminator())

	seen := map[uint32]bool{}
	for _, h := range hdrs[:m.Count()] {
		assert.False(t, seen[h.FalconID], "duplicate falcon %d", h.FalconID)
		seen[h.FalconID] = true

		assert.True(t, format.IsAligned(h.LSBOffset, format.LSBHeaderAlignment))
		lsb := lsbAt(t, blob, h.LSBOffset)
		assert.True(t, format.IsAligned(lsb.UcodeOff, format.UcodeDataAlignment))
		assert.Greater(t, lsb.UcodeOff, h.LSBOffset)
		assert.LessOrEqual(t, lsb.UcodeOff, m.Size())

		loader := lsb.Flags&format.FlagLoadCodeAt0 == 0
		if loader {
			assert.True(t, format.IsAligned(lsb.BLDataOff, format.BLDataAlignment))
			assert.Equal(t, uint32(256), lsb.BLDataSize)
			assert.LessOrEqual(t, lsb.BLDataOff+lsb.BLDataSize, m.Size())
		}
	}
}

func TestPrepare_NoSlots(t *testing.T) {
	mem := &alloc.Mem{}
	heap := &alloc.Accounting{}
	m, err := newBuilder(t, newConfig(nil), heap, mem).Prepare(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, m.Built())
	assert.Nil(t, m.Bytes())
	assert.Zero(t, m.Count())
	assert.Zero(t, mem.Allocs(), "no buffer may be allocated for an empty manifest")
	assert.Zero(t, heap.Reservations())
}

func TestPrepare_SkipsDisabledAndUnsigned(t *testing.T) {
	disabled := &countingProvider{img: loaderImage(format.FalconIDFECS, pmuLayout())}
	unsigned := &countingProvider{img: &ucode.Image{Source: pmuLayout()}}
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU:   ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
		format.FalconIDGPCCS: unsigned,
	})
	cfg.Slots[format.FalconIDFECS].Provider = disabled

	m, err := newBuilder(t, cfg, nil, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())
	assert.Zero(t, disabled.calls)
	assert.Equal(t, 1, unsigned.calls)
}

func TestPrepare_ReclaimsOnSuccess(t *testing.T) {
	heap := &alloc.Accounting{}
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU:  ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
		format.FalconIDSEC2: ucode.Static(noLoaderImage(format.FalconIDSEC2, 256, 256)),
	})

	_, err := newBuilder(t, cfg, heap, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, heap.InUse())
	assert.Zero(t, heap.Live())
	// record+signature+layout for the loader image, record+signature otherwise
	assert.Equal(t, 5, heap.Reservations())
	assert.Equal(t, 2*recordCost+2*signatureCost+layoutCost, heap.Peak())
}

func TestPrepare_ProviderOutOfMemoryMidList(t *testing.T) {
	heap := &alloc.Accounting{}
	mem := &alloc.Mem{}
	failing := &countingProvider{err: types.Wrap(types.ErrKindOutOfMemory, "gpccs: firmware", errors.New("no memory"))}
	after := &countingProvider{img: noLoaderImage(format.FalconIDSEC2, 256, 256)}
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU:   ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
		format.FalconIDFECS:  ucode.Static(loaderImage(format.FalconIDFECS, pmuLayout())),
		format.FalconIDGPCCS: failing,
		format.FalconIDSEC2:  after,
	})

	m, err := newBuilder(t, cfg, heap, mem).Prepare(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrOutOfMemory)
	assert.Nil(t, m)
	assert.Equal(t, 1, failing.calls)
	assert.Zero(t, after.calls, "discovery stops at the first failure")
	assert.Zero(t, mem.Allocs())
	assert.Zero(t, heap.InUse())
	assert.Zero(t, heap.Live())
	assert.Equal(t, 6, heap.Reservations(), "both earlier records were inserted before the failure")
}

func TestPrepare_NotFound(t *testing.T) {
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU: &countingProvider{err: types.ErrNotFound},
	})
	_, err := newBuilder(t, cfg, nil, nil).Prepare(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, types.ErrKindNotFound, types.KindOf(err))
}

func TestPrepare_HeapExhaustedMidList(t *testing.T) {
	// The first loader image takes three reservations; the second fails on
	// its signature copy.
	heap := &alloc.Accounting{MaxLive: 4}
	mem := &alloc.Mem{}
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU:  ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
		format.FalconIDFECS: ucode.Static(loaderImage(format.FalconIDFECS, pmuLayout())),
	})

	_, err := newBuilder(t, cfg, heap, mem).Prepare(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrOutOfMemory)
	require.ErrorIs(t, err, alloc.ErrTooManyLive)
	assert.Zero(t, mem.Allocs())
	assert.Zero(t, heap.InUse())
	assert.Zero(t, heap.Live())
	assert.Equal(t, 4, heap.Reservations())
}

func TestPrepare_BlobAllocationFails(t *testing.T) {
	heap := &alloc.Accounting{}
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU: ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
	})

	_, err := newBuilder(t, cfg, heap, &alloc.Mem{Limit: 4096}).Prepare(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrOutOfMemory)
	require.ErrorIs(t, err, alloc.ErrLimit)
	assert.Zero(t, heap.InUse())
}

func TestPrepare_AddressOverflow(t *testing.T) {
	heap := &alloc.Accounting{}
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU: ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
	})
	cfg.WPRBase = func() uint64 { return 1 << 40 }

	m, err := newBuilder(t, cfg, heap, nil).Prepare(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrAddressOverflow)
	assert.Nil(t, m)
	assert.Zero(t, heap.InUse())

	// The largest base that still fits.
	cfg.WPRBase = func() uint64 { return 1<<40 - 1<<20 }
	_, err = newBuilder(t, cfg, heap, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)
}

func TestPrepare_DuplicateFalconID(t *testing.T) {
	fecs := loaderImage(format.FalconIDFECS, pmuLayout())
	again := loaderImage(format.FalconIDFECS, pmuLayout())
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDFECS:  ucode.Static(fecs),
		format.FalconIDGPCCS: ucode.Static(again),
	})

	heap := &alloc.Accounting{}
	_, err := newBuilder(t, cfg, heap, nil).Prepare(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Zero(t, heap.InUse())
}

func TestPrepare_InstanceOffsetsFalconID(t *testing.T) {
	nvdec := noLoaderImage(format.FalconIDNVDEC, 256, 256)
	nvdec1 := noLoaderImage(format.FalconIDNVDEC, 256, 256)
	nvdec1.Instance = 1
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDNVDEC:     ucode.Static(nvdec),
		format.FalconIDNVDEC + 1: ucode.Static(nvdec1),
	})

	m, err := newBuilder(t, cfg, nil, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)
	hdrs := headers(t, m.Bytes())
	assert.Equal(t, format.FalconIDNVDEC+1, hdrs[0].FalconID)
	assert.Equal(t, format.FalconIDNVDEC, hdrs[1].FalconID)
}

func TestPrepare_Recovery(t *testing.T) {
	p := &countingProvider{img: loaderImage(format.FalconIDPMU, pmuLayout())}
	b := newBuilder(t, newConfig(map[uint32]ucode.Provider{format.FalconIDPMU: p}), nil, nil)

	first, err := b.Prepare(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, p.calls)
	snapshot := bytes.Clone(first.Bytes())

	again, err := b.Prepare(context.Background(), first)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, p.calls, "an existing manifest is never rebuilt")
	assert.Equal(t, snapshot, again.Bytes())

	// An empty manifest does not count as existing.
	rebuilt, err := b.Prepare(context.Background(), &Manifest{})
	require.NoError(t, err)
	assert.True(t, rebuilt.Built())
	assert.Equal(t, 2, p.calls)
}

func TestPrepare_Cancelled(t *testing.T) {
	p := &countingProvider{img: loaderImage(format.FalconIDPMU, pmuLayout())}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newBuilder(t, newConfig(map[uint32]ucode.Provider{format.FalconIDPMU: p}), nil, nil).Prepare(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.calls)
}

func TestPrepare_MappedMatchesMem(t *testing.T) {
	cfg := newConfig(map[uint32]ucode.Provider{
		format.FalconIDPMU:  ucode.Static(loaderImage(format.FalconIDPMU, pmuLayout())),
		format.FalconIDSEC2: ucode.Static(noLoaderImage(format.FalconIDSEC2, 4096, 512)),
	})
	want, err := newBuilder(t, cfg, nil, nil).Prepare(context.Background(), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wpr.bin")
	got, err := newBuilder(t, cfg, nil, &alloc.Mapped{Path: path}).Prepare(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, got.Close())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.Bytes(), onDisk)
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = New(&Config{}, nil)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	b, err := New(&Config{WPRBase: func() uint64 { return 0 }}, &Options{})
	require.NoError(t, err)
	assert.NotNil(t, b.opts.Heap)
	assert.NotNil(t, b.opts.Allocator)
}
