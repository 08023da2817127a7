package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

func newEncoder() *jx.Encoder {
	return &jx.Encoder{}
}

func write(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeObject writes a 200 object whose fields are produced by fn.
func writeObject(w http.ResponseWriter, fn func(e *jx.Encoder)) {
	e := newEncoder()
	e.ObjStart()
	fn(e)
	e.ObjEnd()
	write(w, http.StatusOK, e)
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

// optStrField omits empty values.
func optStrField(e *jx.Encoder, name, v string) {
	if v != "" {
		strField(e, name, v)
	}
}

func strArray(e *jx.Encoder, name string, vs []string) {
	e.FieldStart(name)
	e.ArrStart()
	for _, v := range vs {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeErrorField(e *jx.Encoder, b errorBody) {
	e.FieldStart("error")
	e.ObjStart()
	strField(e, "code", b.Code)
	strField(e, "message", b.Message)
	optStrField(e, "field", b.Field)
	optStrField(e, "step", b.Step)
	e.ObjEnd()
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.FieldStart("totals")
	e.ObjStart()
	strField(e, "subtotal", pricing.Display(t.Subtotal))
	strField(e, "shipping", pricing.Display(t.Shipping))
	strField(e, "discount", pricing.Display(t.Discount))
	strField(e, "total", pricing.Display(t.Total))
	e.FieldStart("couponApplied")
	e.Bool(t.CouponApplied)
	e.ObjEnd()
}

func encodeItems(e *jx.Encoder, name string, items []cart.LineItem) {
	e.FieldStart(name)
	e.ArrStart()
	for _, li := range items {
		e.ObjStart()
		strField(e, "productId", li.ProductID)
		optStrField(e, "cartItemId", li.CartItemID)
		optStrField(e, "variant", li.Variant)
		strField(e, "title", li.Title)
		optStrField(e, "imageRef", li.ImageRef)
		strField(e, "unitPrice", pricing.Display(li.UnitPrice))
		e.FieldStart("quantity")
		e.Int(li.Quantity)
		e.FieldStart("selected")
		e.Bool(li.Selected)
		strField(e, "lineTotal", pricing.Display(pricing.LineTotal(pricing.Line{
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		})))
		e.ObjEnd()
	}
	e.ArrEnd()
}

// encodeCart writes the cart fields: remote id, items and totals over the
// selected items.
func encodeCart(e *jx.Encoder, c cart.Cart) {
	optStrField(e, "remoteId", c.RemoteID)
	encodeItems(e, "items", c.Items)
	encodeTotals(e, c.Totals())
}

func encodeMethod(e *jx.Encoder, m checkout.ShippingMethod) {
	e.ObjStart()
	strField(e, "id", m.ID)
	optStrField(e, "zoneId", m.ZoneID)
	strField(e, "name", m.Name)
	strField(e, "cost", pricing.Display(m.Cost))
	e.ObjEnd()
}

func encodeSession(e *jx.Encoder, s checkout.Session) {
	e.FieldStart("session")
	e.ObjStart()
	strField(e, "id", s.ID)
	strField(e, "state", s.State.String())
	encodeItems(e, "items", s.Items)

	a := s.Address
	e.FieldStart("address")
	e.ObjStart()
	strField(e, "fullName", a.FullName)
	strField(e, "phone", a.Phone)
	strField(e, "address1", a.AddressLine1)
	optStrField(e, "address2", a.AddressLine2)
	strField(e, "postcode", a.Postcode)
	optStrField(e, "countryId", a.CountryID)
	optStrField(e, "cityId", a.CityID)
	e.ObjEnd()
	optStrField(e, "addressId", s.AddressID)
	optStrField(e, "cartId", s.CartID)

	e.FieldStart("methods")
	e.ArrStart()
	for _, m := range s.Methods {
		encodeMethod(e, m)
	}
	e.ArrEnd()
	e.FieldStart("shipping")
	if s.Shipping != nil {
		encodeMethod(e, *s.Shipping)
	} else {
		e.Null()
	}

	e.FieldStart("paymentMethods")
	e.ArrStart()
	for _, p := range s.PaymentOptions {
		e.ObjStart()
		strField(e, "code", p.Code)
		strField(e, "name", p.Name)
		e.ObjEnd()
	}
	e.ArrEnd()
	optStrField(e, "paymentMethod", s.PaymentMethod)

	e.FieldStart("coupon")
	if c := s.Coupon; c != nil {
		e.ObjStart()
		strField(e, "code", c.Code)
		strField(e, "grandTotal", pricing.Display(c.GrandTotal))
		optStrField(e, "description", c.Description)
		e.ObjEnd()
	} else {
		e.Null()
	}

	encodeTotals(e, s.Totals)

	e.FieldStart("order")
	if o := s.Order; o != nil {
		e.ObjStart()
		strField(e, "id", o.ID)
		strField(e, "grandTotal", pricing.Display(o.GrandTotal))
		e.ObjEnd()
	} else {
		e.Null()
	}
	e.ObjEnd()
}
