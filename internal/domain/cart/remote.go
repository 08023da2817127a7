package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrRemoteNotFound is wrapped by Remote implementations when the remote
// system has no such cart or line.
var ErrRemoteNotFound = errors.New("not found in online cart")

// RemoteItem is a remote cart line normalised to the local shape.
type RemoteItem struct {
	CartItemID string
	ProductID  string
	Variant    string
	Quantity   int
	UnitPrice  decimal.Decimal
	Title      string
	ImageRef   string
}

// Key returns the local identity of the remote line.
func (ri RemoteItem) Key() Key {
	return Key{ProductID: ri.ProductID, Variant: ri.Variant}
}

// RemoteCart is the authoritative server-side cart.
type RemoteCart struct {
	ID    string
	Items []RemoteItem
}

func (rc *RemoteCart) find(k Key) *RemoteItem {
	for i := range rc.Items {
		if rc.Items[i].Key() == k {
			return &rc.Items[i]
		}
	}
	return nil
}

// AddRequest is the payload of a remote add-to-cart call.
type AddRequest struct {
	ProductID string
	Variant   string
	Quantity  int
}

// Remote is the cart half of the remote commerce API.
type Remote interface {
	GetCart(ctx context.Context, token string) (*RemoteCart, error)
	AddItem(ctx context.Context, token string, req AddRequest) (*RemoteCart, error)
	UpdateQuantity(ctx context.Context, token, cartItemID, cartID string, qty int) error
	DeleteItem(ctx context.Context, token, cartID, cartItemID string) error
}
