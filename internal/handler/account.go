package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// Login stores the session token issued by the commerce backend.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var token string
	if err := stringFields(r, map[string]*string{"token": &token}); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(token) == "" {
		writeErrorBody(w, http.StatusUnprocessableEntity, errorBody{
			Code:    "invalid_field",
			Message: "token: is required",
			Field:   "token",
		})
		return
	}
	if err := h.tokens.Login(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Logout forgets the token and the local cart. A running checkout fails on
// its next remote step.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.Clear(r.Context()); err != nil {
		writeError(w, r, errors.Wrap(err, "clear cart"))
		return
	}
	zctx.From(r.Context()).Info("Logged out")
	w.WriteHeader(http.StatusNoContent)
}

// Favorites lists favorite product ids.
func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	favs := h.prefs.Favorites(r.Context())
	writeObject(w, func(e *jx.Encoder) { strArray(e, "favorites", favs) })
}

// ToggleFavorite adds or removes a product from the favorites.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	added, err := h.prefs.ToggleFavorite(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	favs := h.prefs.Favorites(r.Context())
	writeObject(w, func(e *jx.Encoder) {
		e.FieldStart("favorite")
		e.Bool(added)
		strArray(e, "favorites", favs)
	})
}

// SearchHistory lists recent queries, most recent first.
func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	history := h.prefs.SearchHistory(r.Context())
	writeObject(w, func(e *jx.Encoder) { strArray(e, "history", history) })
}

// PushSearch records a query.
func (h *Handler) PushSearch(w http.ResponseWriter, r *http.Request) {
	var query string
	if err := stringFields(r, map[string]*string{"query": &query}); err != nil {
		writeError(w, r, err)
		return
	}
	history, err := h.prefs.PushSearch(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeObject(w, func(e *jx.Encoder) { strArray(e, "history", history) })
}

// ClearSearchHistory forgets all queries.
func (h *Handler) ClearSearchHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.ClearSearchHistory(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Currency returns the selected display currency.
func (h *Handler) Currency(w http.ResponseWriter, r *http.Request) {
	code := h.prefs.Currency(r.Context())
	writeObject(w, func(e *jx.Encoder) { strField(e, "code", code) })
}

// SetCurrency changes the display currency.
func (h *Handler) SetCurrency(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := stringFields(r, map[string]*string{"code": &code}); err != nil {
		writeError(w, r, err)
		return
	}
	code, err := h.prefs.SetCurrency(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeObject(w, func(e *jx.Encoder) { strField(e, "code", code) })
}

const (
	defaultReceiptLimit = 20
	maxReceiptLimit     = 100
)

// Receipts lists recorded orders, newest first. ?limit= caps the count.
func (h *Handler) Receipts(w http.ResponseWriter, r *http.Request) {
	limit := defaultReceiptLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErrorBody(w, http.StatusUnprocessableEntity, errorBody{
				Code:    "invalid_field",
				Message: "limit: must be a positive integer",
				Field:   "limit",
			})
			return
		}
		limit = min(n, maxReceiptLimit)
	}

	receipts, err := h.receipts.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list receipts"))
		return
	}
	writeObject(w, func(e *jx.Encoder) {
		e.FieldStart("receipts")
		e.ArrStart()
		for _, rc := range receipts {
			encodeReceipt(e, rc)
		}
		e.ArrEnd()
	})
}

func encodeReceipt(e *jx.Encoder, rc checkout.Receipt) {
	e.ObjStart()
	strField(e, "orderId", rc.OrderID)
	strField(e, "total", pricing.Display(rc.Total))
	strField(e, "placedAt", rc.PlacedAt.UTC().Format(time.RFC3339))
	encodeItems(e, "items", rc.Items)
	e.ObjEnd()
}
