// Package cart owns the local shopping cart: the single source of truth the
// UI renders from, kept eventually consistent with the remote cart.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// Key identifies a line item locally: one entry per product and color variant.
type Key struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant,omitempty"`
}

// LineItem is one product (+variant) in the cart. Quantity is always >= 1;
// a line reaching zero is removed rather than kept.
type LineItem struct {
	ProductID string `json:"productId"`
	// CartItemID is the remote line identifier, empty until synced.
	CartItemID string          `json:"cartItemId,omitempty"`
	Title      string          `json:"title"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Selected   bool            `json:"selected"`
	ImageRef   string          `json:"imageRef,omitempty"`
	Variant    string          `json:"variant,omitempty"`
}

// Key returns the local identity of the line.
func (li LineItem) Key() Key {
	return Key{ProductID: li.ProductID, Variant: li.Variant}
}

// Cart is the ordered set of line items plus the remote cart id, which stays
// empty until the first remote cart operation succeeds.
type Cart struct {
	RemoteID string     `json:"remoteId,omitempty"`
	Items    []LineItem `json:"items"`
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	return Cart{RemoteID: c.RemoteID, Items: slices.Clone(c.Items)}
}

// Selected returns copies of the selected line items in cart order.
func (c Cart) Selected() []LineItem {
	var out []LineItem
	for _, li := range c.Items {
		if li.Selected {
			out = append(out, li)
		}
	}
	return out
}

// Lines converts the items to their pricing view.
func (c Cart) Lines() []pricing.Line {
	return Lines(c.Items)
}

// Totals computes the cart totals with no shipping or coupon applied.
func (c Cart) Totals() pricing.Totals {
	return pricing.Compute(c.Lines(), decimal.Zero, nil)
}

// Lines converts line items to their pricing view.
func Lines(items []LineItem) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, li := range items {
		lines[i] = pricing.Line{
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
			Selected:  li.Selected,
		}
	}
	return lines
}

func (c Cart) indexOf(k Key) int {
	return slices.IndexFunc(c.Items, func(li LineItem) bool { return li.Key() == k })
}

func (c Cart) indexOfCartItem(cartItemID string) int {
	if cartItemID == "" {
		return -1
	}
	return slices.IndexFunc(c.Items, func(li LineItem) bool { return li.CartItemID == cartItemID })
}

func (c *Cart) removeAt(i int) {
	c.Items = slices.Delete(c.Items, i, i+1)
}

// withoutNonPositive drops any line whose quantity is not positive. Persisted
// data from older builds or manual edits may carry such lines.
func (c *Cart) withoutNonPositive() {
	c.Items = slices.DeleteFunc(c.Items, func(li LineItem) bool { return li.Quantity <= 0 })
}
