package wpr

import (
	"fmt"
	"iter"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
	"github.com/joshuapare/wprkit/ucode"
	"github.com/joshuapare/wprkit/wpr/alloc"
)

// Heap reservation sizes. A record accounts for the headers and descriptor
// it emits; its signature and layout copies are accounted separately.
const (
	recordCost    = format.WPRHeaderSize + format.LSBHeaderSize + format.GenericDescSize
	signatureCost = format.UcodeDescSize
	layoutCost    = format.PMUDescSize
)

// ManagedImage is one image placed in the manifest.
type ManagedImage struct {
	// Image is the registry's copy. Its Signature and Layout are owned by the
	// record; Data and NoLoaderHeader alias the provider's memory.
	Image ucode.Image

	WPR format.WPRHeader
	LSB format.LSBHeader

	// Desc is the generated bootloader descriptor, nil for no-loader images
	// and until the manifest is written.
	Desc format.BLDesc
	// DescSize is the number of descriptor bytes written.
	DescSize uint32

	// FullSize spans the ucode and any bootloader descriptor area.
	FullSize uint32

	sigHeld    bool
	layoutHeld bool
}

// FalconID returns the record's falcon id.
func (m *ManagedImage) FalconID() uint32 { return m.WPR.FalconID }

// Strategy returns the record's boot strategy.
func (m *ManagedImage) Strategy() ucode.Strategy { return m.Image.Source.Strategy() }

// Registry holds the managed images of one build. Records live in an arena
// in insertion order; iteration is in reverse insertion order, the order
// images appear in the manifest.
type Registry struct {
	heap    alloc.Heap
	records []ManagedImage
	size    uint32
	planned bool
}

// NewRegistry returns an empty registry accounting against heap. A nil heap
// is alloc.Unlimited.
func NewRegistry(heap alloc.Heap) *Registry {
	if heap == nil {
		heap = alloc.Unlimited
	}
	return &Registry{heap: heap}
}

// Len returns the number of managed images.
func (r *Registry) Len() int { return len(r.records) }

// Size returns the planned manifest size, zero before Plan.
func (r *Registry) Size() uint32 { return r.size }

// Records iterates over the records in manifest order, yielding each record's
// WPR header index.
func (r *Registry) Records() iter.Seq2[int, *ManagedImage] {
	return func(yield func(int, *ManagedImage) bool) {
		n := len(r.records)
		for i := range n {
			if !yield(i, &r.records[n-1-i]) {
				return
			}
		}
	}
}

// Lookup returns the record for falcon id.
func (r *Registry) Lookup(id uint32) (*ManagedImage, bool) {
	for i := range r.records {
		if r.records[i].WPR.FalconID == id {
			return &r.records[i], true
		}
	}
	return nil, false
}

// Add inserts img under falcon id, filling its WPR header and the static LSB
// fields from cfg. On error nothing is inserted and the image's reservations
// are returned.
func (r *Registry) Add(img *ucode.Image, id uint32, cfg *Config) (*ManagedImage, error) {
	if r.planned {
		return nil, types.New(types.ErrKindInvalidInput, "wpr: registry already planned")
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if img.Signature == nil {
		return nil, types.New(types.ErrKindInvalidInput,
			fmt.Sprintf("wpr: falcon %d has no signature", id))
	}
	if id == format.FalconIDInvalid {
		return nil, types.New(types.ErrKindInvalidInput, "wpr: falcon id collides with terminator")
	}
	if _, dup := r.Lookup(id); dup {
		return nil, types.New(types.ErrKindInvalidInput,
			fmt.Sprintf("wpr: falcon %d managed twice", id))
	}

	m := ManagedImage{Image: *img}
	if err := r.reserve(&m); err != nil {
		return nil, fmt.Errorf("falcon %d: %w", id, err)
	}

	sig := *img.Signature
	m.Image.Signature = &sig
	if l := img.Layout(); l != nil {
		m.Image.Source = l.Clone()
	}

	m.WPR = format.WPRHeader{
		FalconID:       id,
		BootstrapOwner: cfg.BootstrapOwner,
		Status:         format.ImageStatusCopy,
	}
	slot := cfg.slot(id)
	if slot.LazyBootstrap {
		m.WPR.LazyBootstrap = 1
	}
	if err := fillStaticLSB(&m, slot, id == cfg.Primary); err != nil {
		r.unreserve(&m)
		return nil, fmt.Errorf("falcon %d: %w", id, err)
	}

	r.records = append(r.records, m)
	return &r.records[len(r.records)-1], nil
}

// reserve accounts a new record, its signature copy and, for loader images,
// its layout copy. A partial reservation is rolled back.
func (r *Registry) reserve(m *ManagedImage) error {
	if err := r.heap.Reserve(recordCost); err != nil {
		return err
	}
	if err := r.heap.Reserve(signatureCost); err != nil {
		r.heap.Release(recordCost)
		return err
	}
	m.sigHeld = true
	if m.Strategy() == ucode.StrategyLoader {
		if err := r.heap.Reserve(layoutCost); err != nil {
			r.unreserve(m)
			return err
		}
		m.layoutHeld = true
	}
	return nil
}

func (r *Registry) unreserve(m *ManagedImage) {
	if m.sigHeld {
		r.heap.Release(signatureCost)
		m.sigHeld = false
		m.Image.Signature = nil
	}
	if m.layoutHeld {
		r.heap.Release(layoutCost)
		m.layoutHeld = false
	}
	r.heap.Release(recordCost)
}

// Release frees every record and its owned copies. The registry is empty
// and may be reused afterwards.
func (r *Registry) Release() {
	for i := len(r.records) - 1; i >= 0; i-- {
		r.unreserve(&r.records[i])
	}
	clear(r.records)
	r.records = r.records[:0]
	r.size = 0
	r.planned = false
}
