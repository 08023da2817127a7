package gateway

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "object envelope", in: `{"data":{"id":1},"meta":{}}`, want: `{"id":1}`},
		{name: "array envelope", in: `{"status":"ok","data":[1,2]}`, want: `[1,2]`},
		{name: "scalar data kept", in: `{"data":"x"}`, want: `{"data":"x"}`},
		{name: "no envelope", in: `{"id":1}`, want: `{"id":1}`},
		{name: "array", in: `[1]`, want: `[1]`},
		{name: "garbage", in: `{"data":`, want: `{"data":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(unwrap([]byte(tt.in))))
		})
	}
}

func TestReadScalars(t *testing.T) {
	s, err := readString(jx.DecodeStr(`12`))
	require.NoError(t, err)
	assert.Equal(t, "12", s)

	s, err = readString(jx.DecodeStr(`null`))
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = readString(jx.DecodeStr(`true`))
	require.Error(t, err)

	d, err := readDecimal(jx.DecodeStr(`"0.1"`))
	require.NoError(t, err)
	assert.Equal(t, "0.1", d.String())

	d, err = readDecimal(jx.DecodeStr(`19.99`))
	require.NoError(t, err)
	assert.Equal(t, "19.99", d.String())

	_, err = readDecimal(jx.DecodeStr(`"free"`))
	require.Error(t, err)

	n, err := readInt(jx.DecodeStr(`"3"`))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDecodeCart(t *testing.T) {
	lg := zap.NewNop()

	t.Run("empty body", func(t *testing.T) {
		rc, err := decodeCart(lg, nil)
		require.NoError(t, err)
		assert.Empty(t, rc.ID)
		assert.Empty(t, rc.Items)
	})

	t.Run("cart_id wins over id", func(t *testing.T) {
		rc, err := decodeCart(lg, []byte(`{"id":1,"cart_id":"abc","cart_items":[]}`))
		require.NoError(t, err)
		assert.Equal(t, "abc", rc.ID)
	})

	t.Run("nested product", func(t *testing.T) {
		rc, err := decodeCart(lg, []byte(`{"id":1,"items":[
			{"cart_item_id":5,"qty":1,"product":{"id":77,"name":"Lamp","price":"12.00","image":"lamp.png"}}
		]}`))
		require.NoError(t, err)
		require.Len(t, rc.Items, 1)
		assert.Equal(t, "77", rc.Items[0].ProductID)
		assert.Equal(t, "Lamp", rc.Items[0].Title)
		assert.Equal(t, "lamp.png", rc.Items[0].ImageRef)
		assert.Equal(t, "12", rc.Items[0].UnitPrice.String())
	})

	t.Run("malformed items dropped", func(t *testing.T) {
		rc, err := decodeCart(lg, []byte(`{"id":1,"items":[
			"x",
			{"id":1,"product_id":"p1","qty":true},
			{"id":2,"product_id":"p2","qty":2,"price":{"amount":1}},
			{"id":3,"product_id":"p3","qty":4}
		]}`))
		require.NoError(t, err)
		require.Len(t, rc.Items, 1)
		assert.Equal(t, "p3", rc.Items[0].ProductID)
		assert.Equal(t, 4, rc.Items[0].Quantity)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := decodeCart(lg, []byte(`[1,2]`))
		require.Error(t, err)
	})
}

func TestDecodeZones(t *testing.T) {
	lg := zap.NewNop()

	tests := []struct {
		name    string
		in      string
		methods []string
	}{
		{
			name:    "plain array",
			in:      `[{"id":1,"methods":[{"id":7,"cost":6,"name":"Standard"}]}]`,
			methods: []string{"7"},
		},
		{
			name:    "envelope and alternate names",
			in:      `{"data":[{"id":"z","title":"EU","shipping_zone_methods":[{"id":"a","price":"4.50","title":"Post"}]}]}`,
			methods: []string{"a"},
		},
		{
			name:    "zones key",
			in:      `{"shipping_zones":[{"id":1,"methods":[{"id":1,"cost":0}]}]}`,
			methods: []string{"1"},
		},
		{
			name:    "zone without methods",
			in:      `[{"id":1,"name":"Islands"}]`,
			methods: nil,
		},
		{
			name:    "bad methods dropped",
			in:      `[{"id":1,"methods":[{"cost":1},{"id":2},{"id":3,"cost":"n/a"},{"id":4,"cost":-1},{"id":5,"cost":2}]}]`,
			methods: []string{"5"},
		},
		{
			name:    "methods not an array",
			in:      `[{"id":1,"methods":{"id":7}}]`,
			methods: nil,
		},
		{
			name:    "not a list",
			in:      `"closed"`,
			methods: nil,
		},
		{
			name:    "truncated keeps complete zones",
			in:      `[{"id":1,"methods":[{"id":7,"cost":6}]},{"id":2,"meth`,
			methods: []string{"7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, z := range decodeZones(lg, []byte(tt.in)) {
				for _, m := range z.Methods {
					got = append(got, m.ID)
				}
			}
			assert.Equal(t, tt.methods, got)
		})
	}
}

func TestDecodeCoupon(t *testing.T) {
	c, err := decodeCoupon([]byte(`{"data":{"grand_total":90,"coupon_code":"SAVE10","message":"10% off"}}`))
	require.NoError(t, err)
	assert.Equal(t, "90", c.GrandTotal.String())
	assert.Equal(t, "SAVE10", c.Code)
	assert.Equal(t, "10% off", c.Description)

	_, err = decodeCoupon([]byte(`{"data":{"discount":10}}`))
	require.Error(t, err)

	_, err = decodeCoupon([]byte(`{"message":"Coupon expired"}`))
	var rejected *CouponRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Coupon expired", rejected.Message)
	assert.Equal(t, "coupon rejected: Coupon expired", err.Error())
}

func TestDecodeOrder(t *testing.T) {
	o, err := decodeOrder([]byte(`{"order_id":"A-1","total":"12.30"}`))
	require.NoError(t, err)
	assert.Equal(t, "A-1", o.ID)
	assert.Equal(t, "12.3", o.GrandTotal.String())

	_, err = decodeOrder([]byte(`{"status":"ok"}`))
	require.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "nope", errorMessage([]byte(`{"message":"nope"}`)))
	assert.Equal(t, "nope", errorMessage([]byte(`{"error":"nope"}`)))
	assert.Equal(t, "nope", errorMessage([]byte(`{"error":{"code":1,"message":"nope"}}`)))
	assert.Empty(t, errorMessage([]byte(`not json`)))
	assert.Empty(t, errorMessage(nil))
}
