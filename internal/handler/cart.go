package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/cart"
)

// writeCart writes the cart. A *cart.SyncError means the local change was
// kept; it is reported as a warning next to the cart instead of a failure.
func writeCart(w http.ResponseWriter, r *http.Request, c cart.Cart, err error) {
	var syncErr *cart.SyncError
	if err != nil && !errors.As(err, &syncErr) {
		writeError(w, r, err)
		return
	}
	writeObject(w, func(e *jx.Encoder) {
		encodeCart(e, c)
		if syncErr != nil {
			zctx.From(r.Context()).Warn("Cart change not synced", zap.Error(syncErr))
			strField(e, "warning", syncErr.Error())
		}
	})
}

func decodeKey(r *http.Request) (cart.Key, error) {
	var k cart.Key
	if err := stringFields(r, map[string]*string{
		"productId": &k.ProductID,
		"variant":   &k.Variant,
	}); err != nil {
		return k, err
	}
	if k.ProductID == "" {
		return k, cart.ErrMissingProductID
	}
	return k, nil
}

// GetCart returns the local cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeCart(w, r, h.carts.Snapshot(r.Context()), nil)
}

// AddItem adds a product or merges it into the existing line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req cart.AddItemRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = readString(d)
		case "variant":
			req.Variant, err = readString(d)
		case "title":
			req.Title, err = readString(d)
		case "imageRef":
			req.ImageRef, err = readString(d)
		case "quantity":
			req.Quantity, err = readInt(d)
		case "unitPrice":
			req.UnitPrice, err = readDecimal(d)
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.AddItem(r.Context(), req)
	writeCart(w, r, c, err)
}

// IncreaseQuantity adds one to the line identified by productId and variant.
func (h *Handler) IncreaseQuantity(w http.ResponseWriter, r *http.Request) {
	k, err := decodeKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.IncreaseQuantity(r.Context(), k)
	writeCart(w, r, c, err)
}

// DecreaseQuantity subtracts one, removing the line at zero.
func (h *Handler) DecreaseQuantity(w http.ResponseWriter, r *http.Request) {
	k, err := decodeKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.DecreaseQuantity(r.Context(), k)
	writeCart(w, r, c, err)
}

// ToggleSelected flips the checkout selection of a line.
func (h *Handler) ToggleSelected(w http.ResponseWriter, r *http.Request) {
	k, err := decodeKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.ToggleSelected(r.Context(), k)
	writeCart(w, r, c, err)
}

// RemoveItem deletes a synced line by its remote cart item id.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), chi.URLParam(r, "cartItemID"))
	writeCart(w, r, c, err)
}

// RemoveLine deletes the line identified by productId and variant. Unlike
// RemoveItem it also reaches lines that never got a remote cart item id.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	k, err := decodeKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.RemoveLine(r.Context(), k)
	writeCart(w, r, c, err)
}

// SyncCart runs one reconciliation pass and returns its report with the
// resulting cart. A partially failed pass still returns 200 with a warning.
func (h *Handler) SyncCart(w http.ResponseWriter, r *http.Request) {
	report, err := h.carts.Sync(r.Context())
	if err != nil && report.Pushed+report.Updated+report.Imported+report.Failed == 0 {
		writeError(w, r, err)
		return
	}
	c := h.carts.Snapshot(r.Context())
	writeObject(w, func(e *jx.Encoder) {
		encodeCart(e, c)
		e.FieldStart("sync")
		e.ObjStart()
		for _, f := range []struct {
			name string
			n    int
		}{
			{"pushed", report.Pushed},
			{"updated", report.Updated},
			{"imported", report.Imported},
			{"failed", report.Failed},
		} {
			e.FieldStart(f.name)
			e.Int(f.n)
		}
		e.ObjEnd()
		if err != nil {
			strField(e, "warning", err.Error())
		}
	})
}
