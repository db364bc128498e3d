package wpr

import (
	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
	"github.com/joshuapare/wprkit/ucode"
	"github.com/joshuapare/wprkit/wpr/alloc"
)

// SlotConfig is the per-falcon configuration. Slots are indexed by falcon id.
type SlotConfig struct {
	// Provider returns the slot's image. A nil Provider disables the slot.
	Provider ucode.Provider
	// LazyBootstrap defers booting the falcon until it is first needed.
	LazyBootstrap bool
	// PrivLoad forces a privileged load of a loader image.
	PrivLoad bool
	// DMAIdx is the DMA context index the falcon's bootloader uses.
	DMAIdx uint32
}

// Config describes the device the manifest is built for.
type Config struct {
	// EnableMask has bit i set for every slot i that may be managed.
	EnableMask uint32
	// Slots holds per-falcon configuration, indexed by falcon id.
	Slots [format.FalconIDEnd]SlotConfig
	// Primary is the falcon id of the primary co-processor.
	Primary uint32
	// BootstrapOwner is the falcon id written into every WPR header.
	BootstrapOwner uint32
	// WPRBase returns the physical base address of the manifest.
	WPRBase func() uint64
	// CmdLineArgsOffset is the primary's DMEM offset of its command line
	// arguments, passed as argv in its LoaderConfig.
	CmdLineArgsOffset uint32
}

// Enabled reports whether slot i participates in discovery.
func (c *Config) Enabled(i uint32) bool {
	return i < format.FalconIDEnd && c.EnableMask&(1<<i) != 0 && c.Slots[i].Provider != nil
}

// slot returns the configuration of falcon id, or the zero SlotConfig for ids
// outside the slot space.
func (c *Config) slot(id uint32) SlotConfig {
	if id >= format.FalconIDEnd {
		return SlotConfig{}
	}
	return c.Slots[id]
}

// Validate checks that c can drive a build.
func (c *Config) Validate() error {
	if c == nil {
		return types.New(types.ErrKindInvalidInput, "wpr: nil config")
	}
	if c.WPRBase == nil {
		return types.New(types.ErrKindInvalidInput, "wpr: config has no WPR base accessor")
	}
	return nil
}

// Options controls the resources a Builder draws on.
type Options struct {
	// Heap accounts the records held during a build.
	// Default: alloc.Unlimited
	Heap alloc.Heap

	// Allocator provides the destination buffer.
	// Default: &alloc.Mem{}
	Allocator alloc.BlobAllocator
}

// DefaultOptions returns options backed by the Go heap with no limits.
func DefaultOptions() *Options {
	return &Options{
		Heap:      alloc.Unlimited,
		Allocator: &alloc.Mem{},
	}
}
