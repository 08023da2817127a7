package checkout

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// State is the checkout step a session is in.
type State int

const (
	SelectingAddress State = iota
	SelectingShipping
	SelectingPayment
	Confirming
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case SelectingAddress:
		return "selecting address"
	case SelectingShipping:
		return "selecting shipping"
	case SelectingPayment:
		return "selecting payment"
	case Confirming:
		return "confirming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Address is the shipping address entered by the user. CountryID is set by
// SelectCountry.
type Address struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address1"`
	AddressLine2 string `json:"address2,omitempty"`
	Postcode     string `json:"postcode"`
	CountryID    string `json:"countryId"`
	CityID       string `json:"cityId,omitempty"`
}

// Validate returns a *FieldError naming the first missing field.
func (a Address) Validate() error {
	switch {
	case a.FullName == "":
		return required("full_name")
	case a.Phone == "":
		return required("phone")
	case a.AddressLine1 == "":
		return required("address1")
	case a.Postcode == "":
		return required("postcode")
	}
	return nil
}

// ShippingMethod is a zone method offered for a country.
type ShippingMethod struct {
	ID     string          `json:"id"`
	ZoneID string          `json:"zoneId"`
	Name   string          `json:"name"`
	Cost   decimal.Decimal `json:"cost"`
}

// ShippingZone groups the methods of one zone.
type ShippingZone struct {
	ID      string
	Name    string
	Methods []ShippingMethod
}

// PaymentMethod is a payment option offered by the remote system.
type PaymentMethod struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Order is the result of a placed order.
type Order struct {
	ID         string          `json:"id"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// Session is the in-memory state of one checkout. It is never persisted.
type Session struct {
	ID    string
	State State
	// Items is the selected cart snapshot taken at Begin.
	Items []cart.LineItem

	Address   Address
	AddressID string
	CartID    string

	Methods  []ShippingMethod
	Shipping *ShippingMethod

	PaymentOptions []PaymentMethod
	PaymentMethod  string

	Coupon *pricing.Coupon
	Totals pricing.Totals

	// IdempotencyKey is sent with every order attempt of this session.
	IdempotencyKey string
	Order          *Order

	busy bool
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() Session {
	out := *s
	out.Items = slices.Clone(s.Items)
	out.Methods = slices.Clone(s.Methods)
	out.PaymentOptions = slices.Clone(s.PaymentOptions)
	if s.Shipping != nil {
		m := *s.Shipping
		out.Shipping = &m
	}
	if s.Coupon != nil {
		c := *s.Coupon
		out.Coupon = &c
	}
	if s.Order != nil {
		o := *s.Order
		out.Order = &o
	}
	return out
}

func (s *Session) recompute() {
	cost := decimal.Zero
	if s.Shipping != nil {
		cost = s.Shipping.Cost
	}
	s.Totals = pricing.Compute(cart.Lines(s.Items), cost, s.Coupon)
}

func (s *Session) method(id string) (ShippingMethod, bool) {
	for _, m := range s.Methods {
		if m.ID == id {
			return m, true
		}
	}
	return ShippingMethod{}, false
}
