package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
)

var (
	// ErrNoShippingMethods is returned when the selected country offers no
	// usable shipping method. Checkout cannot continue for that country.
	ErrNoShippingMethods = errors.New("no shipping methods available for the selected country")
	// ErrEmptySelection is returned by Begin when no cart item is selected.
	ErrEmptySelection = errors.New("select at least one item to check out")
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSessionClosed is returned when a session was abandoned or replaced
	// while a remote call was in flight. The call's result is discarded.
	ErrSessionClosed = errors.New("checkout session was closed")
)

// FieldError reports a missing or invalid input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func required(field string) *FieldError {
	return &FieldError{Field: field, Reason: "is required"}
}

// StepError reports a failed remote checkout step. Steps that succeeded
// before it stay applied on the remote side.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("checkout step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// UnsyncedItemsError reports selected lines that are missing from the remote
// cart or carry a quantity it does not have. The order is placed against the
// remote cart, so checkout cannot start until they sync or are removed.
type UnsyncedItemsError struct {
	Keys []cart.Key
	Err  error
}

func (e *UnsyncedItemsError) Error() string {
	ids := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		if k.Variant != "" {
			ids = append(ids, k.ProductID+" ("+k.Variant+")")
			continue
		}
		ids = append(ids, k.ProductID)
	}
	return fmt.Sprintf("items not synced to online cart: %s; sync the cart or remove them", strings.Join(ids, ", "))
}

func (e *UnsyncedItemsError) Unwrap() error {
	return e.Err
}

// TransitionError reports an operation that is not allowed in the session's
// current state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while checkout is %s", e.Op, e.State)
}

// Step names reported in StepError.
const (
	StepSyncCart        = "sync cart"
	StepAddress         = "address"
	StepShippingAddress = "shipping address"
	StepShippingMethod  = "shipping method"
	StepShippingZones   = "shipping zones"
	StepPaymentMethods  = "payment methods"
	StepCoupon          = "coupon"
	StepOrder           = "order"
)

// retryable reports whether an order attempt may be repeated. Errors that do
// not classify themselves count as retryable: the order may or may not exist,
// and a retry with the same idempotency key is safe. An expired session is
// retryable after the user logs in again.
func retryable(err error) bool {
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return true
	}
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}
