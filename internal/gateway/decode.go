package gateway

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// Remote payloads are inconsistent: ids arrive as numbers or strings, prices
// as numbers or strings, quantities as qty or quantity, names as name or
// title, and any body may be wrapped in a data envelope. Everything is
// normalised here so the domain packages only see one shape.

// unwrap returns the value of a top-level "data" object or array, or body
// itself when there is no envelope.
func unwrap(body []byte) []byte {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return body
	}
	var inner jx.Raw
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "data" || inner != nil {
			return d.Skip()
		}
		switch d.Next() {
		case jx.Object, jx.Array:
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			inner = raw
			return nil
		default:
			return d.Skip()
		}
	}); err != nil || inner == nil {
		return body
	}
	return inner
}

// readString reads a string, a number (as its literal text) or null.
func readString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		t := d.Next()
		if err := d.Skip(); err != nil {
			return "", err
		}
		return "", errors.Errorf("expected string or number, got %s", t)
	}
}

// readDecimal reads a number or a numeric string without going through
// float64.
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := readString(d)
	if err != nil {
		return decimal.Zero, err
	}
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", s)
	}
	return v, nil
}

func readInt(d *jx.Decoder) (int, error) {
	s, err := readString(d)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parse integer %q", s)
	}
	return n, nil
}

// decodeCart decodes a cart payload. Malformed line items are dropped with a
// warning; an empty or null body yields an empty cart.
func decodeCart(lg *zap.Logger, body []byte) (*cart.RemoteCart, error) {
	rc := &cart.RemoteCart{}
	d := jx.DecodeBytes(unwrap(body))
	switch d.Next() {
	case jx.Object:
	case jx.Null, jx.Invalid:
		return rc, nil
	default:
		return nil, errors.Errorf("cart: expected object, got %s", d.Next())
	}

	var cartID string
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := readString(d)
			if rc.ID == "" {
				rc.ID = v
			}
			return err
		case "cart_id":
			v, err := readString(d)
			cartID = v
			return err
		case "items", "cart_items":
			if d.Next() != jx.Array {
				lg.Warn("Ignoring non-array cart items", zap.String("key", key))
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					lg.Warn("Dropping malformed cart item", zap.Error(err))
					return nil
				}
				rc.Items = append(rc.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "cart")
	}
	if cartID != "" {
		rc.ID = cartID
	}
	return rc, nil
}

// decodeCartItem consumes one array element. The element is always consumed,
// so a returned error only drops this item.
func decodeCartItem(d *jx.Decoder) (cart.RemoteItem, error) {
	var (
		it     cart.RemoteItem
		lineID string
		fields []string
	)
	if t := d.Next(); t != jx.Object {
		if err := d.Skip(); err != nil {
			return it, err
		}
		return it, errors.Errorf("expected object, got %s", t)
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cart_item_id":
			it.CartItemID, err = readString(d)
		case "id":
			lineID, err = readString(d)
		case "product_id":
			it.ProductID, err = readString(d)
		case "qty", "quantity":
			it.Quantity, err = readInt(d)
		case "price", "unit_price":
			it.UnitPrice, err = readDecimal(d)
		case "name", "title":
			it.Title, err = readString(d)
		case "image", "image_url":
			it.ImageRef, err = readString(d)
		case "color", "variant":
			it.Variant, err = readString(d)
		case "product":
			return decodeNestedProduct(d, &it)
		default:
			return d.Skip()
		}
		if err != nil {
			fields = append(fields, key)
		}
		return nil
	})
	if err != nil {
		return it, err
	}
	if it.CartItemID == "" {
		it.CartItemID = lineID
	}
	switch {
	case len(fields) > 0:
		return it, errors.Errorf("unreadable fields %v", fields)
	case it.ProductID == "":
		return it, errors.New("missing product_id")
	case it.CartItemID == "":
		return it, errors.Errorf("product %s: missing cart_item_id", it.ProductID)
	}
	return it, nil
}

// decodeNestedProduct fills fields missing on the line from a nested product.
func decodeNestedProduct(d *jx.Decoder, it *cart.RemoteItem) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := readString(d)
			if err == nil && it.ProductID == "" {
				it.ProductID = v
			}
			return nil
		case "name", "title":
			v, err := readString(d)
			if err == nil && it.Title == "" {
				it.Title = v
			}
			return nil
		case "price":
			v, err := readDecimal(d)
			if err == nil && it.UnitPrice.IsZero() {
				it.UnitPrice = v
			}
			return nil
		case "image", "image_url":
			v, err := readString(d)
			if err == nil && it.ImageRef == "" {
				it.ImageRef = v
			}
			return nil
		default:
			return d.Skip()
		}
	})
}

// decodeID reads "id" from an object body, with or without envelope.
func decodeID(body []byte, keys ...string) (string, error) {
	if len(keys) == 0 {
		keys = []string{"id"}
	}
	d := jx.DecodeBytes(unwrap(body))
	if d.Next() != jx.Object {
		return "", errors.New("expected object")
	}
	var id string
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		for _, k := range keys {
			if k == key && id == "" {
				v, err := readString(d)
				id = v
				return err
			}
		}
		return d.Skip()
	}); err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("missing id")
	}
	return id, nil
}

// decodeZones decodes shipping zones. Data-shape problems never fail the
// call: bad zones and methods are dropped with a warning, so the worst case
// is an empty result.
func decodeZones(lg *zap.Logger, body []byte) []checkout.ShippingZone {
	d := jx.DecodeBytes(unwrap(body))
	var zones []checkout.ShippingZone

	readList := func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			z, err := decodeZone(lg, d)
			if err != nil {
				lg.Warn("Dropping malformed shipping zone", zap.Error(err))
				return nil
			}
			zones = append(zones, z)
			return nil
		})
	}

	var err error
	switch d.Next() {
	case jx.Array:
		err = readList(d)
	case jx.Object:
		err = d.Obj(func(d *jx.Decoder, key string) error {
			if (key == "zones" || key == "shipping_zones") && d.Next() == jx.Array {
				return readList(d)
			}
			return d.Skip()
		})
	default:
		lg.Warn("Unexpected shipping zones payload", zap.Stringer("type", d.Next()))
		return nil
	}
	if err != nil {
		lg.Warn("Truncated shipping zones payload", zap.Error(err), zap.Int("zones", len(zones)))
	}
	return zones
}

func decodeZone(lg *zap.Logger, d *jx.Decoder) (checkout.ShippingZone, error) {
	var (
		z   checkout.ShippingZone
		bad []string
	)
	if t := d.Next(); t != jx.Object {
		if err := d.Skip(); err != nil {
			return z, err
		}
		return z, errors.Errorf("expected object, got %s", t)
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id", "name", "title":
			v, err := readString(d)
			switch {
			case err != nil:
				bad = append(bad, key)
			case key == "id":
				z.ID = v
			default:
				z.Name = v
			}
			return nil
		case "methods", "shipping_zone_methods", "shipping_methods":
			if d.Next() != jx.Array {
				lg.Warn("Ignoring non-array zone methods", zap.String("zone_id", z.ID))
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				m, err := decodeMethod(d)
				if err != nil {
					lg.Warn("Dropping malformed shipping method", zap.String("zone_id", z.ID), zap.Error(err))
					return nil
				}
				z.Methods = append(z.Methods, m)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return z, err
	}
	if len(bad) > 0 {
		return z, errors.Errorf("unreadable fields %v", bad)
	}
	for i := range z.Methods {
		z.Methods[i].ZoneID = z.ID
	}
	return z, nil
}

func decodeMethod(d *jx.Decoder) (checkout.ShippingMethod, error) {
	var (
		m       checkout.ShippingMethod
		hasCost bool
		bad     []string
	)
	if t := d.Next(); t != jx.Object {
		if err := d.Skip(); err != nil {
			return m, err
		}
		return m, errors.Errorf("expected object, got %s", t)
	}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "shipping_zone_method_id":
			m.ID, err = readString(d)
		case "name", "title":
			m.Name, err = readString(d)
		case "cost", "price", "rate":
			m.Cost, err = readDecimal(d)
			hasCost = err == nil
		default:
			return d.Skip()
		}
		if err != nil {
			bad = append(bad, key)
		}
		return nil
	}); err != nil {
		return m, err
	}
	switch {
	case len(bad) > 0:
		return m, errors.Errorf("unreadable fields %v", bad)
	case m.ID == "":
		return m, errors.New("missing id")
	case !hasCost:
		return m, errors.Errorf("method %s: missing cost", m.ID)
	case m.Cost.IsNegative():
		return m, errors.Errorf("method %s: negative cost", m.ID)
	}
	return m, nil
}

// decodeCoupon reads the remote coupon result. The grand total is required:
// without it the coupon cannot supersede the local total. A body with only a
// message is the remote refusing the coupon.
func decodeCoupon(body []byte) (*pricing.Coupon, error) {
	d := jx.DecodeBytes(unwrap(body))
	if d.Next() != jx.Object {
		return nil, errors.New("coupon: expected object")
	}
	var (
		c        pricing.Coupon
		hasTotal bool
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "grand_total", "grandTotal":
			c.GrandTotal, err = readDecimal(d)
			hasTotal = err == nil
		case "code", "coupon_code":
			c.Code, err = readString(d)
		case "description", "message":
			c.Description, err = readString(d)
		default:
			return d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "coupon")
	}
	if !hasTotal {
		if c.Description != "" {
			return nil, &CouponRejectedError{Message: c.Description}
		}
		return nil, errors.New("coupon: missing grand_total")
	}
	return &c, nil
}

// decodePaymentMethods accepts objects with code/id and name/title, or bare
// strings.
func decodePaymentMethods(lg *zap.Logger, body []byte) ([]checkout.PaymentMethod, error) {
	d := jx.DecodeBytes(unwrap(body))
	var out []checkout.PaymentMethod

	readList := func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			switch d.Next() {
			case jx.String:
				code, err := d.Str()
				if err != nil {
					return err
				}
				out = append(out, checkout.PaymentMethod{Code: code, Name: code})
				return nil
			case jx.Object:
				var pm checkout.PaymentMethod
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "code", "id", "key":
						if pm.Code == "" {
							pm.Code, err = readString(d)
							return err
						}
						return d.Skip()
					case "name", "title", "label":
						pm.Name, err = readString(d)
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				if pm.Code == "" {
					lg.Warn("Dropping payment method without code", zap.String("name", pm.Name))
					return nil
				}
				if pm.Name == "" {
					pm.Name = pm.Code
				}
				out = append(out, pm)
				return nil
			default:
				lg.Warn("Dropping malformed payment method", zap.Stringer("type", d.Next()))
				return d.Skip()
			}
		})
	}

	switch d.Next() {
	case jx.Array:
		if err := readList(d); err != nil {
			return nil, errors.Wrap(err, "payment methods")
		}
	case jx.Object:
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			if (key == "methods" || key == "payment_methods") && d.Next() == jx.Array {
				return readList(d)
			}
			return d.Skip()
		}); err != nil {
			return nil, errors.Wrap(err, "payment methods")
		}
	default:
		return nil, errors.Errorf("payment methods: unexpected %s", d.Next())
	}
	return out, nil
}

func decodeOrder(body []byte) (*checkout.Order, error) {
	d := jx.DecodeBytes(unwrap(body))
	if d.Next() != jx.Object {
		return nil, errors.New("order: expected object")
	}
	var o checkout.Order
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "order_id":
			if o.ID == "" {
				o.ID, err = readString(d)
				return err
			}
			return d.Skip()
		case "grand_total", "total":
			o.GrandTotal, err = readDecimal(d)
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "order")
	}
	if o.ID == "" {
		return nil, errors.New("order: missing id")
	}
	return &o, nil
}

// errorMessage extracts a human readable message from an error body:
// {"message": ...}, {"error": "..."} or {"error": {"message": ...}}.
func errorMessage(body []byte) string {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}
	var msg string
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if msg != "" {
			return d.Skip()
		}
		switch key {
		case "message", "error", "detail":
			switch d.Next() {
			case jx.String:
				v, err := d.Str()
				msg = v
				return err
			case jx.Object:
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key == "message" && msg == "" && d.Next() == jx.String {
						v, err := d.Str()
						msg = v
						return err
					}
					return d.Skip()
				})
			}
		}
		return d.Skip()
	})
	return msg
}
