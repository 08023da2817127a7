package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrCartNotFound is returned when no remote cart id can be resolved.
	ErrCartNotFound = errors.New("your cart could not be found")
	// ErrMissingProductID is returned when an item is added without a product id.
	ErrMissingProductID = errors.New("product id is required")
	// ErrNegativeUnitPrice is returned when an item is added with a negative price.
	ErrNegativeUnitPrice = errors.New("unit price must not be negative")
	// ErrMissingCartItemID is returned by RemoveItem for an empty id.
	ErrMissingCartItemID = errors.New("cart item id is required")
	// ErrNotSynced marks a change to a line that is not in the online cart
	// yet. It is kept locally and pushed by Sync.
	ErrNotSynced = errors.New("item is not in the online cart yet")
)

// InvalidQuantityError indicates an add request with a quantity below one.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %s, got %d", e.ProductID, e.Quantity)
}

// ItemNotFoundError indicates the line item is not in the cart. Exactly one of
// Key or CartItemID is set, depending on how the item was addressed.
type ItemNotFoundError struct {
	Key        Key
	CartItemID string
	// Remote is set when the item exists locally but not in the remote cart.
	Remote bool
}

func (e *ItemNotFoundError) Error() string {
	where := "cart"
	if e.Remote {
		where = "online cart"
	}
	if e.CartItemID != "" {
		return fmt.Sprintf("cart item %s not found in %s", e.CartItemID, where)
	}
	if e.Key.ProductID == "" {
		return "item not found in " + where
	}
	if e.Key.Variant != "" {
		return fmt.Sprintf("product %s (%s) not found in %s", e.Key.ProductID, e.Key.Variant, where)
	}
	return fmt.Sprintf("product %s not found in %s", e.Key.ProductID, where)
}

// RemoteError reports a failed remote cart call. Op names the failed step.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// SyncError reports that a local change was kept but could not be pushed to
// the remote cart.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("saved locally, not synced to online cart: %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
