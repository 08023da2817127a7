package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/prefs"
	"github.com/xenking/kart-checkout/internal/gateway"
)

// errorBody is the "error" object of a failed response. Field and Step are
// set when the error names them.
type errorBody struct {
	Code    string
	Message string
	Field   string
	Step    string
}

// errBadRequest marks an undecodable request body.
type errBadRequest struct{ err error }

func (e *errBadRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e *errBadRequest) Unwrap() error { return e.err }

// classify maps an engine error to a status and error body. The message is
// user-facing; unknown errors get a generic one.
func classify(err error) (int, errorBody) {
	b := errorBody{Message: err.Error()}

	var (
		fieldErr   *checkout.FieldError
		stepErr    *checkout.StepError
		transErr   *checkout.TransitionError
		qtyErr     *cart.InvalidQuantityError
		missingErr *cart.ItemNotFoundError
		remoteErr  *cart.RemoteError
		apiErr     *gateway.APIError
		badReq     *errBadRequest
		unsynced   *checkout.UnsyncedItemsError
		couponErr  *gateway.CouponRejectedError
	)
	switch {
	case errors.As(err, &stepErr):
		b.Step = stepErr.Step
	case errors.As(err, &remoteErr):
		b.Step = remoteErr.Op
	}

	switch {
	case errors.As(err, &badReq):
		b.Code = "bad_request"
		return http.StatusBadRequest, b
	case errors.Is(err, auth.ErrNotAuthenticated):
		b.Code = "not_authenticated"
		return http.StatusUnauthorized, b
	case errors.As(err, &unsynced):
		b.Code, b.Step = "cart_not_synced", checkout.StepSyncCart
		return http.StatusConflict, b
	case errors.As(err, &couponErr):
		b.Code, b.Field = "coupon_rejected", "code"
		return http.StatusUnprocessableEntity, b
	case errors.Is(err, cart.ErrCartNotFound):
		b.Code = "cart_not_found"
		return http.StatusConflict, b
	case errors.As(err, &fieldErr):
		b.Code, b.Field = "invalid_field", fieldErr.Field
		return http.StatusUnprocessableEntity, b
	case errors.As(err, &qtyErr):
		b.Code, b.Field = "invalid_field", "quantity"
		return http.StatusUnprocessableEntity, b
	case errors.Is(err, cart.ErrMissingCartItemID):
		b.Code, b.Field = "invalid_field", "cartItemId"
		return http.StatusUnprocessableEntity, b
	case errors.Is(err, cart.ErrMissingProductID), errors.Is(err, prefs.ErrMissingProductID):
		b.Code, b.Field = "invalid_field", "productId"
		return http.StatusUnprocessableEntity, b
	case errors.Is(err, cart.ErrNegativeUnitPrice):
		b.Code, b.Field = "invalid_field", "unitPrice"
		return http.StatusUnprocessableEntity, b
	case errors.Is(err, prefs.ErrInvalidCurrency):
		b.Code, b.Field = "invalid_field", "code"
		return http.StatusUnprocessableEntity, b
	case errors.Is(err, checkout.ErrNoShippingMethods):
		b.Code = "no_shipping_methods"
		return http.StatusUnprocessableEntity, b
	case errors.Is(err, checkout.ErrEmptySelection):
		b.Code = "empty_selection"
		return http.StatusUnprocessableEntity, b
	case errors.As(err, &transErr):
		b.Code = "invalid_state"
		return http.StatusConflict, b
	case errors.Is(err, checkout.ErrBusy):
		b.Code = "busy"
		return http.StatusConflict, b
	case errors.Is(err, checkout.ErrSessionClosed):
		b.Code = "session_closed"
		return http.StatusConflict, b
	case errors.Is(err, checkout.ErrSessionNotFound):
		b.Code = "session_not_found"
		return http.StatusNotFound, b
	case errors.As(err, &missingErr):
		b.Code = "item_not_found"
		return http.StatusNotFound, b
	case errors.Is(err, gateway.ErrUnavailable):
		b.Code = "remote_unavailable"
		return http.StatusServiceUnavailable, b
	case stepErr != nil:
		b.Code = "step_failed"
		return http.StatusBadGateway, b
	case remoteErr != nil, errors.As(err, &apiErr):
		b.Code = "remote_failed"
		return http.StatusBadGateway, b
	default:
		b.Code = "internal"
		b.Message = "internal error"
		return http.StatusInternalServerError, b
	}
}

// writeError writes err's response. Server errors are logged with the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, b := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.String("code", b.Code), zap.Error(err))
	}
	writeErrorBody(w, status, b)
}

func writeErrorBody(w http.ResponseWriter, status int, b errorBody) {
	e := newEncoder()
	e.ObjStart()
	encodeErrorField(e, b)
	e.ObjEnd()
	write(w, status, e)
}
