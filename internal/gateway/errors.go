package gateway

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
)

var (
	// ErrUnauthorized is a remote 401. It wraps auth.ErrNotAuthenticated so
	// callers treat it like a missing token.
	ErrUnauthorized = fmt.Errorf("session expired: %w", auth.ErrNotAuthenticated)
	// ErrNotFound is a remote 404.
	ErrNotFound = cart.ErrRemoteNotFound
	// ErrUnavailable is returned without a network call while the circuit
	// breaker is open.
	ErrUnavailable = errors.New("remote cart service unavailable")
)

// CouponRejectedError is a successful coupon response that carries no grand
// total, only the remote explanation.
type CouponRejectedError struct {
	Message string
}

func (e *CouponRejectedError) Error() string {
	return "coupon rejected: " + e.Message
}

// APIError is a failed remote call. Status is zero for transport failures.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	default:
		return fmt.Sprintf("%s: status %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return e.Err
	}
}

// Temporary reports whether the same call may succeed later: transport
// failures, timeouts, throttling and server errors.
func (e *APIError) Temporary() bool {
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	default:
		return e.Status >= 500
	}
}
