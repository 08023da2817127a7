package cart

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SyncReport summarises one reconciliation pass.
type SyncReport struct {
	Pushed   int // local lines added to the remote cart
	Updated  int // remote quantities overwritten with the local value
	Imported int // remote-only lines copied into the local cart
	Failed   int
	// Unsynced lists the local lines whose push failed.
	Unsynced []Key
}

// Sync reconciles the local cart with the remote one. The local cart wins for
// lines it knows about: missing lines are added remotely and differing
// quantities are pushed. Lines that only exist remotely (added from another
// device) are imported. Failures on individual lines do not stop the pass;
// they are reported together in the returned error.
func (s *Store) Sync(ctx context.Context) (SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	var report SyncReport
	lg := zctx.From(ctx)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return report, err
	}

	rc, err := s.remote.GetCart(ctx, token)
	if err != nil {
		return report, &RemoteError{Op: "fetch cart", Err: err}
	}

	next := s.cart.Clone()
	if rc.ID != "" {
		next.RemoteID = rc.ID
	}

	var errs error
	for i := range next.Items {
		li := &next.Items[i]
		ri := rc.find(li.Key())

		switch {
		case ri == nil:
			added, err := s.remote.AddItem(ctx, token, AddRequest{
				ProductID: li.ProductID,
				Variant:   li.Variant,
				Quantity:  li.Quantity,
			})
			if err != nil {
				report.Failed++
				report.Unsynced = append(report.Unsynced, li.Key())
				errs = multierr.Append(errs, &RemoteError{Op: "add " + li.ProductID, Err: err})
				continue
			}
			if added != nil {
				if added.ID != "" {
					next.RemoteID = added.ID
				}
				if ari := added.find(li.Key()); ari != nil {
					li.CartItemID = ari.CartItemID
				}
			}
			report.Pushed++
		case ri.Quantity != li.Quantity:
			cartID := next.RemoteID
			if err := s.remote.UpdateQuantity(ctx, token, ri.CartItemID, cartID, li.Quantity); err != nil {
				report.Failed++
				report.Unsynced = append(report.Unsynced, li.Key())
				errs = multierr.Append(errs, &RemoteError{Op: "update " + li.ProductID, Err: err})
				continue
			}
			li.CartItemID = ri.CartItemID
			report.Updated++
		default:
			li.CartItemID = ri.CartItemID
		}
	}

	for _, ri := range rc.Items {
		if ri.Quantity <= 0 || next.indexOf(ri.Key()) >= 0 {
			continue
		}
		next.Items = append(next.Items, LineItem{
			ProductID:  ri.ProductID,
			CartItemID: ri.CartItemID,
			Title:      ri.Title,
			UnitPrice:  ri.UnitPrice,
			Quantity:   ri.Quantity,
			Selected:   true,
			ImageRef:   ri.ImageRef,
			Variant:    ri.Variant,
		})
		report.Imported++
	}

	if err := s.persist(ctx, next); err != nil {
		return report, multierr.Append(errs, err)
	}

	if report.Failed > 0 {
		lg.Warn("Cart sync finished with failures",
			zap.Int("pushed", report.Pushed),
			zap.Int("updated", report.Updated),
			zap.Int("imported", report.Imported),
			zap.Int("failed", report.Failed),
		)
	}
	return report, errs
}
