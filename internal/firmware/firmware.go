// Package firmware turns a build configuration into ucode images. Firmware
// files are mapped read-only and stay mapped until the Set is closed.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/wprkit/internal/config"
	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/internal/logger"
	"github.com/joshuapare/wprkit/internal/mmfile"
	"github.com/joshuapare/wprkit/ucode"
	"github.com/joshuapare/wprkit/wpr"
)

// maxParallel bounds the number of slots loaded at once.
const maxParallel = 4

// Set holds the images of every configured slot.
type Set struct {
	images [format.FalconIDEnd]*ucode.Image

	mu     sync.Mutex
	unmaps []func() error
}

// Load maps and decodes the firmware of every slot in cfg. On failure all
// mappings made so far are released.
func Load(ctx context.Context, cfg *config.Config) (*Set, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	ctx = logger.WithName(ctx, "firmware")
	s := &Set{}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxParallel)
	for i := range cfg.Slots {
		slot := &cfg.Slots[i]
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := s.loadSlot(slot)
			if err != nil {
				logger.ErrorKV(gctx, "failed to load slot", "slot", slot.ID, "kind", slot.Kind, "error", err)
				return fmt.Errorf("slot %d (%s): %w", slot.ID, slot.Kind, err)
			}
			// Validate made slot ids unique, so every goroutine owns its element.
			s.images[slot.ID] = img
			logger.DebugKV(gctx, "slot loaded", "slot", slot.ID, "kind", slot.Kind, "size", len(img.Data))
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

func (s *Set) loadSlot(slot *config.Slot) (*ucode.Image, error) {
	image, err := s.mapFile(slot.Image)
	if err != nil {
		return nil, err
	}
	sig, err := s.mapFile(slot.Sig)
	if err != nil {
		return nil, err
	}

	var img *ucode.Image
	switch slot.Kind {
	case config.KindPMU:
		desc, err := s.mapFile(slot.Desc)
		if err != nil {
			return nil, err
		}
		img, err = ucode.PMUImage(desc, image, sig)
		if err != nil {
			return nil, err
		}
	case config.KindFECS:
		if img, err = ucode.FECSImage(image, segments(slot.Segments), sig); err != nil {
			return nil, err
		}
	case config.KindGPCCS:
		if img, err = ucode.GPCCSImage(image, segments(slot.Segments), sig); err != nil {
			return nil, err
		}
	case config.KindNoLoader:
		hdr, err := s.mapFile(slot.Header)
		if err != nil {
			return nil, err
		}
		if img, err = ucode.NoLoaderImage(image, hdr, sig); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", slot.Kind)
	}
	img.Instance = slot.Instance
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// mapFile maps path. An empty path yields nil.
func (s *Set) mapFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.unmaps = append(s.unmaps, unmap)
	s.mu.Unlock()
	return data, nil
}

func segments(c *config.Segments) ucode.CtxswSegments {
	return ucode.CtxswSegments{
		Boot:           ucode.Segment{Offset: c.Boot.Offset, Size: c.Boot.Size},
		Code:           ucode.Segment{Offset: c.Code.Offset, Size: c.Code.Size},
		Data:           ucode.Segment{Offset: c.Data.Offset, Size: c.Data.Size},
		BootIMEMOffset: c.BootIMEMOffset,
		BootEntry:      c.BootEntry,
	}
}

// Image returns the image loaded for slot id, or nil.
func (s *Set) Image(id uint32) *ucode.Image {
	if id >= format.FalconIDEnd {
		return nil
	}
	return s.images[id]
}

// BuildConfig returns the builder configuration for cfg with every loaded
// slot enabled.
func (s *Set) BuildConfig(cfg *config.Config) *wpr.Config {
	base := cfg.WPRBase
	out := &wpr.Config{
		Primary:           cfg.Primary,
		BootstrapOwner:    cfg.BootstrapOwner,
		WPRBase:           func() uint64 { return base },
		CmdLineArgsOffset: cfg.ArgsOffset,
	}
	for _, slot := range cfg.Slots {
		img := s.images[slot.ID]
		if img == nil {
			continue
		}
		out.EnableMask |= 1 << slot.ID
		out.Slots[slot.ID] = wpr.SlotConfig{
			Provider:      ucode.Static(img),
			LazyBootstrap: slot.Lazy,
			PrivLoad:      slot.PrivLoad,
			DMAIdx:        slot.DMAIdx,
		}
	}
	return out
}

// Close unmaps every firmware file. Images of the set must not be used
// afterwards.
func (s *Set) Close() error {
	s.mu.Lock()
	unmaps := s.unmaps
	s.unmaps = nil
	s.mu.Unlock()

	var errs []error
	for _, unmap := range unmaps {
		errs = append(errs, unmap())
	}
	s.images = [format.FalconIDEnd]*ucode.Image{}
	return errors.Join(errs...)
}
