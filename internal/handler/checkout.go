package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
)

// writeSession writes the session. On error the session is still included
// when the coordinator returned one, so the shell can render the current
// step next to the message.
func writeSession(w http.ResponseWriter, r *http.Request, s checkout.Session, err error) {
	if err == nil {
		writeObject(w, func(e *jx.Encoder) { encodeSession(e, s) })
		return
	}
	status, b := classify(err)
	if status == http.StatusInternalServerError || s.ID == "" {
		writeError(w, r, err)
		return
	}
	e := newEncoder()
	e.ObjStart()
	encodeErrorField(e, b)
	encodeSession(e, s)
	e.ObjEnd()
	write(w, status, e)
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

// BeginCheckout starts a session over the selected cart items.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Begin(r.Context())
	writeSession(w, r, s, err)
}

// GetSession returns the session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Session(r.Context(), sessionID(r))
	writeSession(w, r, s, err)
}

// SetAddress stores the shipping address.
func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	var a checkout.Address
	if err := stringFields(r, map[string]*string{
		"fullName": &a.FullName,
		"phone":    &a.Phone,
		"address1": &a.AddressLine1,
		"address2": &a.AddressLine2,
		"postcode": &a.Postcode,
		"cityId":   &a.CityID,
	}); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.checkout.SetAddress(r.Context(), sessionID(r), a)
	writeSession(w, r, s, err)
}

// SelectCountry loads the shipping methods of a country.
func (h *Handler) SelectCountry(w http.ResponseWriter, r *http.Request) {
	var country string
	if err := stringFields(r, map[string]*string{"countryId": &country}); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.checkout.SelectCountry(r.Context(), sessionID(r), country)
	writeSession(w, r, s, err)
}

// SelectShipping picks one of the loaded shipping methods.
func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var method string
	if err := stringFields(r, map[string]*string{"methodId": &method}); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.checkout.SelectShipping(r.Context(), sessionID(r), method)
	writeSession(w, r, s, err)
}

// ConfirmShipping runs the remote address and shipping steps.
func (h *Handler) ConfirmShipping(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.ConfirmShipping(r.Context(), sessionID(r))
	writeSession(w, r, s, err)
}

// PaymentMethods loads the payment options into the session.
func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.PaymentMethods(r.Context(), sessionID(r))
	writeSession(w, r, s, err)
}

// SelectPayment picks the payment method.
func (h *Handler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := stringFields(r, map[string]*string{"code": &code}); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.checkout.SelectPayment(r.Context(), sessionID(r), code)
	writeSession(w, r, s, err)
}

// ApplyCoupon applies a coupon code; the remote grand total becomes the total.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := stringFields(r, map[string]*string{"code": &code}); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.checkout.ApplyCoupon(r.Context(), sessionID(r), code)
	writeSession(w, r, s, err)
}

// PlaceOrder places the order. Retrying after a transient failure reuses the
// session's idempotency key.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.PlaceOrder(r.Context(), sessionID(r))
	writeSession(w, r, s, err)
}

// AbandonCheckout fails the session.
func (h *Handler) AbandonCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Abandon(r.Context(), sessionID(r))
	writeSession(w, r, s, err)
}
