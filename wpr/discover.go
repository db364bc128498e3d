package wpr

import (
	"context"
	"fmt"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/internal/logger"
)

// discover queries every enabled slot and inserts the managed images into
// reg. Records inserted before a failure stay in reg for Release.
func (b *Builder) discover(ctx context.Context, reg *Registry) error {
	for i := range format.FalconIDEnd {
		if !b.cfg.Enabled(i) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := b.cfg.Slots[i].Provider.UcodeDetails(ctx)
		if err != nil {
			logger.ErrorKV(ctx, "ucode get failed", "slot", i, "error", err)
			return fmt.Errorf("falcon slot %d: %w", i, err)
		}
		if img == nil || img.Signature == nil {
			logger.DebugKV(ctx, "slot not managed", "slot", i)
			continue
		}

		id := img.FalconID()
		if _, err := reg.Add(img, id, &b.cfg); err != nil {
			logger.ErrorKV(ctx, "failed to add falcon", "falcon", id, "error", err)
			return err
		}
		logger.DebugKV(ctx, "falcon managed",
			"slot", i,
			"falcon", id,
			"name", format.FalconName(id-img.Instance),
			"strategy", img.Source.Strategy().String(),
		)
	}
	return nil
}
