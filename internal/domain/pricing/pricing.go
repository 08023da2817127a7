// Package pricing derives display totals from cart line items. Every function
// is pure: no I/O and no mutation of its inputs.
//
// Sums are carried at full precision in the cart's base currency. Rounding to
// two decimal places happens only in Display.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Line is the pricing view of a cart line item.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Selected  bool
}

// Coupon is the remote outcome of applying a coupon code. The remote system
// is authoritative for discounted totals; GrandTotal is used as-is.
type Coupon struct {
	Code        string
	GrandTotal  decimal.Decimal
	Description string
}

// Totals is the computed price breakdown of a cart or checkout session.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	// Discount is informational: the difference between the local
	// subtotal+shipping and the remote grand total, floored at zero.
	Discount decimal.Decimal
	Total    decimal.Decimal
	// CouponApplied reports that Total comes from the remote coupon result.
	CouponApplied bool
}

// Subtotal returns the sum of UnitPrice*Quantity over selected lines.
// Unselected lines contribute nothing.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if !l.Selected {
			continue
		}
		sum = sum.Add(LineTotal(l))
	}
	return sum
}

// LineTotal returns UnitPrice*Quantity for a single line regardless of selection.
func LineTotal(l Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ApplyShipping returns subtotal + shippingCost.
func ApplyShipping(subtotal, shippingCost decimal.Decimal) decimal.Decimal {
	return subtotal.Add(shippingCost)
}

// ApplyCoupon returns the coupon's grand total when one is present, otherwise
// the locally computed base.
func ApplyCoupon(base decimal.Decimal, c *Coupon) decimal.Decimal {
	if c == nil {
		return base
	}
	return c.GrandTotal
}

// Compute builds the full breakdown for lines with an optional shipping cost
// and an optional coupon result.
func Compute(lines []Line, shipping decimal.Decimal, c *Coupon) Totals {
	subtotal := Subtotal(lines)
	base := ApplyShipping(subtotal, shipping)
	total := ApplyCoupon(base, c)

	discount := base.Sub(total)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return Totals{
		Subtotal:      subtotal,
		Shipping:      shipping,
		Discount:      discount,
		Total:         total,
		CouponApplied: c != nil,
	}
}

// Display formats an amount with exactly two decimal places.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}
