package wpr

import (
	"context"
	"fmt"

	"github.com/c2h5oh/datasize"

	"github.com/joshuapare/wprkit/internal/logger"
	"github.com/joshuapare/wprkit/wpr/alloc"
)

// Builder prepares manifests for one device configuration.
type Builder struct {
	cfg  Config
	opts Options
}

// New returns a Builder for cfg. A nil opts uses DefaultOptions(); nil fields
// of opts take their defaults.
func New(cfg *Config, opts *Options) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def := DefaultOptions()
	if opts == nil {
		opts = def
	}
	b := &Builder{cfg: *cfg, opts: *opts}
	if b.opts.Heap == nil {
		b.opts.Heap = def.Heap
	}
	if b.opts.Allocator == nil {
		b.opts.Allocator = def.Allocator
	}
	return b, nil
}

// Manifest is a materialized manifest. The zero Manifest is empty: no falcon
// was managed and no buffer was allocated.
type Manifest struct {
	buf   alloc.Buffer
	size  uint32
	count int
	base  uint64
}

// Bytes returns the manifest contents, nil for an empty manifest.
func (m *Manifest) Bytes() []byte {
	if m == nil || m.buf == nil {
		return nil
	}
	return m.buf.Bytes()
}

// Size returns the manifest size in bytes.
func (m *Manifest) Size() uint32 { return m.size }

// Count returns the number of managed images.
func (m *Manifest) Count() int { return m.count }

// Base returns the physical base address the manifest was built for.
func (m *Manifest) Base() uint64 { return m.base }

// Built reports whether m holds a materialized buffer.
func (m *Manifest) Built() bool { return m != nil && m.buf != nil }

// Close releases the manifest buffer.
func (m *Manifest) Close() error {
	if m == nil || m.buf == nil {
		return nil
	}
	err := m.buf.Close()
	m.buf = nil
	return err
}

// Prepare builds the manifest. If existing is already built it is returned
// unchanged: the device keeps the manifest it booted with. An empty existing
// manifest is rebuilt.
//
// On error every record is released, any allocated buffer is closed and no
// manifest is returned.
func (b *Builder) Prepare(ctx context.Context, existing *Manifest) (*Manifest, error) {
	if existing.Built() {
		logger.DebugKV(ctx, "manifest already built, skipping")
		return existing, nil
	}
	ctx = logger.WithName(ctx, "wpr")

	wprBase := b.cfg.WPRBase()
	logger.DebugKV(ctx, "wpr carveout", "base", fmt.Sprintf("%#x", wprBase))

	reg := NewRegistry(b.opts.Heap)
	defer reg.Release()

	err := b.discover(ctx, reg)
	logger.DebugKV(ctx, "discovery done", "managed", reg.Len())
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		logger.InfoKV(ctx, "no falcons managed")
		return &Manifest{base: wprBase}, nil
	}

	size, err := reg.Plan(b.cfg.Primary)
	if err != nil {
		return nil, err
	}

	dst, err := b.opts.Allocator.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("allocate manifest of %d bytes: %w", size, err)
	}
	if err := b.materialize(ctx, reg, dst, wprBase); err != nil {
		_ = dst.Close()
		return nil, err
	}

	logger.InfoKV(ctx, "manifest built",
		"managed", reg.Len(),
		"size", datasize.ByteSize(size).HumanReadable(),
	)
	return &Manifest{buf: dst, size: size, count: reg.Len(), base: wprBase}, nil
}
