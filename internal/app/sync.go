package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/pkg/health"
)

// syncLoop reconciles the local cart with the remote one every interval
// until ctx is done. Passes are skipped while logged out. Every finished
// pass beats hb, successful or not.
func syncLoop(ctx context.Context, carts *cart.Store, interval time.Duration, hb *health.Heartbeat) error {
	lg := zctx.From(ctx).Named("sync")
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		report, err := carts.Sync(ctx)
		hb.Beat()
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
			lg.Debug("Skipped, not logged in")
		case ctx.Err() != nil:
			return nil
		case err != nil:
			lg.Warn("Cart sync failed", zap.Error(err))
		case report.Pushed+report.Updated+report.Imported > 0:
			lg.Info("Cart synced",
				zap.Int("pushed", report.Pushed),
				zap.Int("updated", report.Updated),
				zap.Int("imported", report.Imported),
			)
		}
	}
}
