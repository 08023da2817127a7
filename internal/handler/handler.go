// Package handler is the local HTTP facade the app shell talks to. It exposes
// the cart, checkout, session and preference operations under /api as JSON.
//
// Money is rendered with two decimal places; the engine keeps full precision.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/prefs"
)

// ReceiptLister lists recorded receipts, newest first.
type ReceiptLister interface {
	Recent(ctx context.Context, limit int) ([]checkout.Receipt, error)
}

// Handler serves the facade routes.
type Handler struct {
	carts    *cart.Store
	checkout *checkout.Coordinator
	prefs    *prefs.Store
	tokens   *auth.Tokens
	receipts ReceiptLister
}

// Deps are the engine components behind the facade. Receipts is optional.
type Deps struct {
	Carts    *cart.Store
	Checkout *checkout.Coordinator
	Prefs    *prefs.Store
	Tokens   *auth.Tokens
	Receipts ReceiptLister
}

// New returns a Handler over deps.
func New(deps Deps) *Handler {
	return &Handler{
		carts:    deps.Carts,
		checkout: deps.Checkout,
		prefs:    deps.Prefs,
		tokens:   deps.Tokens,
		receipts: deps.Receipts,
	}
}

// Routes returns the /api router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorBody(w, http.StatusNotFound, errorBody{Code: "not_found", Message: "no such endpoint"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorBody(w, http.StatusMethodNotAllowed, errorBody{Code: "method_not_allowed", Message: "method not allowed"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/", h.Login)
			r.Delete("/", h.Logout)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/sync", h.SyncCart)
			r.Post("/items", h.AddItem)
			r.Post("/items/increase", h.IncreaseQuantity)
			r.Post("/items/decrease", h.DecreaseQuantity)
			r.Post("/items/toggle", h.ToggleSelected)
			r.Post("/items/remove", h.RemoveLine)
			r.Delete("/items/{cartItemID}", h.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.BeginCheckout)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.AbandonCheckout)
				r.Put("/address", h.SetAddress)
				r.Put("/country", h.SelectCountry)
				r.Put("/shipping", h.SelectShipping)
				r.Post("/shipping/confirm", h.ConfirmShipping)
				r.Get("/payment-methods", h.PaymentMethods)
				r.Put("/payment", h.SelectPayment)
				r.Post("/coupon", h.ApplyCoupon)
				r.Post("/order", h.PlaceOrder)
			})
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", h.Favorites)
			r.Post("/{productID}/toggle", h.ToggleFavorite)
		})
		r.Route("/search-history", func(r chi.Router) {
			r.Get("/", h.SearchHistory)
			r.Post("/", h.PushSearch)
			r.Delete("/", h.ClearSearchHistory)
		})
		r.Get("/currency", h.Currency)
		r.Put("/currency", h.SetCurrency)

		if h.receipts != nil {
			r.Get("/receipts", h.Receipts)
		}
	})
	return r
}
