package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
	"github.com/xenking/kart-checkout/internal/domain/prefs"
	"github.com/xenking/kart-checkout/internal/gateway"
	"github.com/xenking/kart-checkout/internal/storage/kv"
)

// commerce is an in-memory remote commerce backend.
type commerce struct {
	mu     sync.Mutex
	cartID string
	items  []cart.RemoteItem
	nextID int
	fail   map[string]error
}

func (c *commerce) err(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fail[op]
}

func (c *commerce) snapshot() *cart.RemoteCart {
	return &cart.RemoteCart{ID: c.cartID, Items: slices.Clone(c.items)}
}

func (c *commerce) GetCart(context.Context, string) (*cart.RemoteCart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(), nil
}

func (c *commerce) AddItem(_ context.Context, _ string, req cart.AddRequest) (*cart.RemoteCart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["add to cart"]; err != nil {
		return nil, err
	}
	if c.cartID == "" {
		c.cartID = "c1"
	}
	for i := range c.items {
		if c.items[i].Key() == (cart.Key{ProductID: req.ProductID, Variant: req.Variant}) {
			c.items[i].Quantity += req.Quantity
			return c.snapshot(), nil
		}
	}
	c.nextID++
	c.items = append(c.items, cart.RemoteItem{
		CartItemID: strconv.Itoa(c.nextID),
		ProductID:  req.ProductID,
		Variant:    req.Variant,
		Quantity:   req.Quantity,
	})
	return c.snapshot(), nil
}

func (c *commerce) UpdateQuantity(_ context.Context, _, cartItemID, _ string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].CartItemID == cartItemID {
			c.items[i].Quantity = qty
			return nil
		}
	}
	return errors.Wrap(cart.ErrRemoteNotFound, "update")
}

func (c *commerce) DeleteItem(_ context.Context, _, _, cartItemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].CartItemID == cartItemID {
			c.items = slices.Delete(c.items, i, i+1)
			return nil
		}
	}
	return errors.Wrap(cart.ErrRemoteNotFound, "delete")
}

func (c *commerce) CreateAddress(context.Context, string, checkout.Address) (string, error) {
	return "addr-1", c.err("create address")
}

func (c *commerce) AttachShippingAddress(context.Context, string, string, string) error {
	return c.err("attach shipping address")
}

func (c *commerce) AttachShippingMethod(context.Context, string, string, string) error {
	return c.err("attach shipping method")
}

func (c *commerce) ShippingZones(_ context.Context, _, countryID string) ([]checkout.ShippingZone, error) {
	if countryID != "us" {
		return nil, nil
	}
	return []checkout.ShippingZone{{
		ID:   "z1",
		Name: "Domestic",
		Methods: []checkout.ShippingMethod{
			{ID: "7", Name: "Standard", Cost: decimal.RequireFromString("6")},
		},
	}}, nil
}

func (c *commerce) ApplyCoupon(_ context.Context, _, code string) (*pricing.Coupon, error) {
	if code != "SAVE10" {
		return nil, &gateway.APIError{Op: "apply coupon", Status: http.StatusUnprocessableEntity, Message: "coupon is not valid"}
	}
	return &pricing.Coupon{Code: code, GrandTotal: decimal.RequireFromString("90")}, nil
}

func (c *commerce) PaymentMethods(context.Context, string) ([]checkout.PaymentMethod, error) {
	return []checkout.PaymentMethod{{Code: "cod", Name: "Cash on delivery"}}, nil
}

func (c *commerce) PlaceOrder(context.Context, string, checkout.OrderRequest) (*checkout.Order, error) {
	if err := c.err("place order"); err != nil {
		return nil, err
	}
	return &checkout.Order{ID: "order-1", GrandTotal: decimal.RequireFromString("90")}, nil
}

type receiptList []checkout.Receipt

func (l receiptList) Recent(_ context.Context, limit int) ([]checkout.Receipt, error) {
	return l[:min(limit, len(l))], nil
}

type env struct {
	t      *testing.T
	srv    http.Handler
	remote *commerce
	store  kv.Store
}

func newEnv(t *testing.T, receipts ReceiptLister) *env {
	t.Helper()
	store := kv.NewMemory()
	remote := &commerce{fail: map[string]error{}}
	tokens := auth.NewTokens(store)
	carts := cart.NewStore(store, remote, tokens)
	coord, err := checkout.NewCoordinator(carts, remote, tokens, checkout.Options{})
	require.NoError(t, err)

	h := New(Deps{
		Carts:    carts,
		Checkout: coord,
		Prefs:    prefs.NewStore(store),
		Tokens:   tokens,
		Receipts: receipts,
	})
	return &env{t: t, srv: h.Routes(), remote: remote, store: store}
}

// do sends a request and decodes the JSON response, if any.
func (e *env) do(method, path, body string) (int, map[string]any) {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	if rec.Body.Len() == 0 {
		return rec.Code, nil
	}
	assert.Equal(e.t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]any
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (e *env) login() {
	e.t.Helper()
	status, _ := e.do(http.MethodPost, "/api/session", `{"token":"tok"}`)
	require.Equal(e.t, http.StatusNoContent, status)
}

func (e *env) add(productID string, qty int, price string) map[string]any {
	e.t.Helper()
	status, body := e.do(http.MethodPost, "/api/cart/items",
		`{"productId":"`+productID+`","quantity":`+strconv.Itoa(qty)+`,"unitPrice":"`+price+`","title":"Item `+productID+`"}`)
	require.Equal(e.t, http.StatusOK, status, body)
	return body
}

func errOf(body map[string]any) map[string]any {
	e, _ := body["error"].(map[string]any)
	return e
}

func items(body map[string]any) []any {
	v, _ := body["items"].([]any)
	return v
}

func totals(body map[string]any) map[string]any {
	v, _ := body["totals"].(map[string]any)
	return v
}

func session(body map[string]any) map[string]any {
	v, _ := body["session"].(map[string]any)
	return v
}

func TestCart_Flow(t *testing.T) {
	e := newEnv(t, nil)
	e.login()

	body := e.add("p1", 2, "10.5")
	require.Len(t, items(body), 1)
	line := items(body)[0].(map[string]any)
	assert.Equal(t, "1", line["cartItemId"])
	assert.Equal(t, "10.50", line["unitPrice"])
	assert.Equal(t, "21.00", line["lineTotal"])
	assert.Equal(t, "c1", body["remoteId"])
	assert.Equal(t, "21.00", totals(body)["subtotal"])
	assert.Nil(t, body["warning"])

	status, body := e.do(http.MethodPost, "/api/cart/items/increase", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 3, items(body)[0].(map[string]any)["quantity"])
	assert.Equal(t, "31.50", totals(body)["total"])

	status, body = e.do(http.MethodPost, "/api/cart/items/toggle", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, items(body)[0].(map[string]any)["selected"])
	assert.Equal(t, "0.00", totals(body)["subtotal"])

	status, body = e.do(http.MethodDelete, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, items(body))

	status, body = e.do(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, items(body))
}

func TestCart_DecreaseToZeroRemoves(t *testing.T) {
	e := newEnv(t, nil)
	e.login()
	e.add("p1", 1, "3")

	status, body := e.do(http.MethodPost, "/api/cart/items/decrease", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, items(body))
	assert.Empty(t, e.remote.items)
}

func TestCart_AddWithoutLoginKeepsItem(t *testing.T) {
	e := newEnv(t, nil)

	status, body := e.do(http.MethodPost, "/api/cart/items", `{"productId":"p1","quantity":1,"unitPrice":5}`)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, items(body), 1)
	assert.Contains(t, body["warning"], "not synced")
}

func TestCart_Errors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		login  bool
		method string
		path   string
		body   string
		status int
		code   string
		field  string
	}{
		{"ZeroQuantity", true, http.MethodPost, "/api/cart/items", `{"productId":"p1","quantity":0}`, http.StatusUnprocessableEntity, "invalid_field", "quantity"},
		{"MissingProduct", true, http.MethodPost, "/api/cart/items", `{"quantity":1}`, http.StatusUnprocessableEntity, "invalid_field", "productId"},
		{"NegativePrice", true, http.MethodPost, "/api/cart/items", `{"productId":"p1","quantity":1,"unitPrice":"-1"}`, http.StatusUnprocessableEntity, "invalid_field", "unitPrice"},
		{"BadJSON", true, http.MethodPost, "/api/cart/items", `{"productId":`, http.StatusBadRequest, "bad_request", ""},
		{"BadAmount", true, http.MethodPost, "/api/cart/items", `{"productId":"p1","quantity":1,"unitPrice":"ten"}`, http.StatusBadRequest, "bad_request", ""},
		{"UnknownLine", true, http.MethodPost, "/api/cart/items/increase", `{"productId":"nope"}`, http.StatusNotFound, "item_not_found", ""},
		{"UnknownCartItem", true, http.MethodDelete, "/api/cart/items/99", "", http.StatusNotFound, "item_not_found", ""},
		{"NoRoute", false, http.MethodGet, "/api/nope", "", http.StatusNotFound, "not_found", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			if tt.login {
				e.login()
			}
			status, body := e.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, body)
			assert.Equal(t, tt.code, errOf(body)["code"])
			if tt.field != "" {
				assert.Equal(t, tt.field, errOf(body)["field"])
			}
		})
	}
}

func TestCart_IncreaseRequiresLogin(t *testing.T) {
	e := newEnv(t, nil)
	e.login()
	e.add("p1", 1, "5")
	require.NoError(t, e.store.Delete(context.Background(), kv.KeyToken))

	status, body := e.do(http.MethodPost, "/api/cart/items/increase", `{"productId":"p1"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "not_authenticated", errOf(body)["code"])
}

func TestCart_UnsyncedLineChangesLocally(t *testing.T) {
	e := newEnv(t, nil)
	e.do(http.MethodPost, "/api/cart/items", `{"productId":"p1","quantity":1,"unitPrice":5}`)

	status, body := e.do(http.MethodPost, "/api/cart/items/increase", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 2, items(body)[0].(map[string]any)["quantity"])
	assert.Contains(t, body["warning"], "not in the online cart")

	status, body = e.do(http.MethodPost, "/api/cart/items/remove", `{"productId":"p1"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, items(body))
	assert.Nil(t, body["warning"])

	status, body = e.do(http.MethodPost, "/api/cart/items/remove", `{"productId":"p1"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "item_not_found", errOf(body)["code"])
}

func TestCart_Sync(t *testing.T) {
	e := newEnv(t, nil)
	e.do(http.MethodPost, "/api/cart/items", `{"productId":"p1","quantity":2,"unitPrice":5}`)
	e.login()

	status, body := e.do(http.MethodPost, "/api/cart/sync", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["sync"].(map[string]any)["pushed"])
	assert.Equal(t, "1", items(body)[0].(map[string]any)["cartItemId"])
}

func (e *env) readyToPay() string {
	e.t.Helper()
	e.login()
	e.add("p1", 2, "40")
	e.add("p2", 1, "20")

	status, body := e.do(http.MethodPost, "/api/checkout", "")
	require.Equal(e.t, http.StatusOK, status, body)
	id := session(body)["id"].(string)
	base := "/api/checkout/" + id

	steps := []struct{ method, path, body string }{
		{http.MethodPut, base + "/address", `{"fullName":"Ada","phone":"1","address1":"Main 1","postcode":"12345"}`},
		{http.MethodPut, base + "/country", `{"countryId":"us"}`},
		{http.MethodPut, base + "/shipping", `{"methodId":"7"}`},
		{http.MethodPost, base + "/shipping/confirm", ""},
		{http.MethodGet, base + "/payment-methods", ""},
		{http.MethodPut, base + "/payment", `{"code":"cod"}`},
	}
	for _, s := range steps {
		status, body := e.do(s.method, s.path, s.body)
		require.Equal(e.t, http.StatusOK, status, "%s %s: %v", s.method, s.path, body)
	}
	return base
}

func TestCheckout_Flow(t *testing.T) {
	e := newEnv(t, nil)
	base := e.readyToPay()

	status, body := e.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, status)
	s := session(body)
	assert.Equal(t, "selecting payment", s["state"])
	assert.Equal(t, "c1", s["cartId"])
	assert.Equal(t, "106.00", totals(s)["total"])
	assert.Equal(t, "6.00", totals(s)["shipping"])

	status, body = e.do(http.MethodPost, base+"/coupon", `{"code":"SAVE10"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "90.00", totals(session(body))["total"])
	assert.Equal(t, "16.00", totals(session(body))["discount"])

	status, body = e.do(http.MethodPost, base+"/order", "")
	require.Equal(t, http.StatusOK, status, body)
	s = session(body)
	assert.Equal(t, "completed", s["state"])
	assert.Equal(t, "order-1", s["order"].(map[string]any)["id"])

	_, body = e.do(http.MethodGet, "/api/cart", "")
	assert.Empty(t, items(body))
}

func TestCheckout_StepFailureKeepsSession(t *testing.T) {
	e := newEnv(t, nil)
	e.login()
	e.add("p1", 1, "10")
	e.remote.fail["attach shipping method"] = &gateway.APIError{Op: "attach shipping method", Status: http.StatusInternalServerError}

	_, body := e.do(http.MethodPost, "/api/checkout", "")
	base := "/api/checkout/" + session(body)["id"].(string)
	e.do(http.MethodPut, base+"/address", `{"fullName":"Ada","phone":"1","address1":"Main 1","postcode":"12345"}`)
	e.do(http.MethodPut, base+"/country", `{"countryId":"us"}`)
	e.do(http.MethodPut, base+"/shipping", `{"methodId":"7"}`)

	status, body := e.do(http.MethodPost, base+"/shipping/confirm", "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "step_failed", errOf(body)["code"])
	assert.Equal(t, checkout.StepShippingMethod, errOf(body)["step"])
	assert.Equal(t, "selecting address", session(body)["state"])
	assert.Equal(t, "addr-1", session(body)["addressId"])
}

func TestCheckout_Errors(t *testing.T) {
	t.Run("NotLoggedIn", func(t *testing.T) {
		e := newEnv(t, nil)
		status, body := e.do(http.MethodPost, "/api/checkout", "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "not_authenticated", errOf(body)["code"])
	})
	t.Run("EmptySelection", func(t *testing.T) {
		e := newEnv(t, nil)
		e.login()
		status, body := e.do(http.MethodPost, "/api/checkout", "")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "empty_selection", errOf(body)["code"])
	})
	t.Run("UnknownSession", func(t *testing.T) {
		e := newEnv(t, nil)
		status, body := e.do(http.MethodGet, "/api/checkout/nope", "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "session_not_found", errOf(body)["code"])
	})

	e := newEnv(t, nil)
	e.login()
	e.add("p1", 1, "10")
	_, body := e.do(http.MethodPost, "/api/checkout", "")
	base := "/api/checkout/" + session(body)["id"].(string)

	t.Run("NoShippingMethods", func(t *testing.T) {
		status, body := e.do(http.MethodPut, base+"/country", `{"countryId":"xx"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "no_shipping_methods", errOf(body)["code"])
		assert.Empty(t, session(body)["methods"])
	})
	t.Run("AddressField", func(t *testing.T) {
		status, body := e.do(http.MethodPut, base+"/address", `{"fullName":"Ada"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "phone", errOf(body)["field"])
	})
	t.Run("InvalidTransition", func(t *testing.T) {
		status, body := e.do(http.MethodPut, base+"/payment", `{"code":"cod"}`)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "invalid_state", errOf(body)["code"])
	})
	t.Run("RejectedCoupon", func(t *testing.T) {
		status, body := e.do(http.MethodPost, base+"/coupon", `{"code":"NOPE"}`)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, checkout.StepCoupon, errOf(body)["step"])
	})
	t.Run("Abandon", func(t *testing.T) {
		status, body := e.do(http.MethodDelete, base, "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "failed", session(body)["state"])
	})
}

func TestCheckout_RefusesUnsyncedSelection(t *testing.T) {
	e := newEnv(t, nil)
	e.login()
	e.add("p1", 1, "10")
	e.remote.fail["add to cart"] = &gateway.APIError{Op: "add to cart", Status: http.StatusServiceUnavailable}
	body := e.add("p9", 1, "5")
	require.Contains(t, body["warning"], "not synced")

	status, body := e.do(http.MethodPost, "/api/checkout", "")
	assert.Equal(t, http.StatusConflict, status, body)
	assert.Equal(t, "cart_not_synced", errOf(body)["code"])
	assert.Equal(t, checkout.StepSyncCart, errOf(body)["step"])
	assert.Contains(t, errOf(body)["message"], "p9")

	status, body = e.do(http.MethodPost, "/api/cart/items/remove", `{"productId":"p9"}`)
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, items(body), 1)

	status, body = e.do(http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "10.00", totals(session(body))["subtotal"])
}

func TestCart_RemoveItemMissingID(t *testing.T) {
	e := newEnv(t, nil)
	e.login()
	e.add("p1", 1, "10")

	status, body := e.do(http.MethodPost, "/api/cart/items/remove", `{"variant":"red"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "productId", errOf(body)["field"])
}

func TestCheckout_TransientOrderFailureAllowsRetry(t *testing.T) {
	e := newEnv(t, nil)
	base := e.readyToPay()
	e.remote.fail["place order"] = &gateway.APIError{Op: "place order", Status: http.StatusServiceUnavailable}

	status, body := e.do(http.MethodPost, base+"/order", "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "selecting payment", session(body)["state"])

	delete(e.remote.fail, "place order")
	status, body = e.do(http.MethodPost, base+"/order", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "completed", session(body)["state"])
}

func TestSession_LogoutClearsCart(t *testing.T) {
	e := newEnv(t, nil)
	e.login()
	e.add("p1", 1, "10")

	status, _ := e.do(http.MethodDelete, "/api/session", "")
	require.Equal(t, http.StatusNoContent, status)

	_, body := e.do(http.MethodGet, "/api/cart", "")
	assert.Empty(t, items(body))

	status, body = e.do(http.MethodPost, "/api/session", `{"token":"  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "token", errOf(body)["field"])
}

func TestPrefs(t *testing.T) {
	e := newEnv(t, nil)

	status, body := e.do(http.MethodPost, "/api/favorites/p1/toggle", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["favorite"])
	assert.Equal(t, []any{"p1"}, body["favorites"])

	_, body = e.do(http.MethodPost, "/api/favorites/p1/toggle", "")
	assert.Equal(t, false, body["favorite"])
	assert.Equal(t, []any{}, body["favorites"])

	e.do(http.MethodPost, "/api/search-history", `{"query":"mug"}`)
	_, body = e.do(http.MethodPost, "/api/search-history", `{"query":"pen"}`)
	assert.Equal(t, []any{"pen", "mug"}, body["history"])

	status, _ = e.do(http.MethodDelete, "/api/search-history", "")
	assert.Equal(t, http.StatusNoContent, status)
	_, body = e.do(http.MethodGet, "/api/search-history", "")
	assert.Equal(t, []any{}, body["history"])

	_, body = e.do(http.MethodGet, "/api/currency", "")
	assert.Equal(t, prefs.DefaultCurrency, body["code"])

	status, body = e.do(http.MethodPut, "/api/currency", `{"code":"eur"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "EUR", body["code"])

	status, body = e.do(http.MethodPut, "/api/currency", `{"code":"euro"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "code", errOf(body)["field"])
}

func TestReceipts(t *testing.T) {
	placed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := newEnv(t, receiptList{
		{OrderID: "o2", Total: decimal.RequireFromString("12.5"), PlacedAt: placed},
		{OrderID: "o1", Total: decimal.RequireFromString("3"), PlacedAt: placed.Add(-time.Hour)},
	})

	status, body := e.do(http.MethodGet, "/api/receipts?limit=1", "")
	require.Equal(t, http.StatusOK, status)
	list := body["receipts"].([]any)
	require.Len(t, list, 1)
	r := list[0].(map[string]any)
	assert.Equal(t, "o2", r["orderId"])
	assert.Equal(t, "12.50", r["total"])
	assert.Equal(t, "2024-05-01T12:00:00Z", r["placedAt"])

	status, body = e.do(http.MethodGet, "/api/receipts?limit=0", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "limit", errOf(body)["field"])

	status, _ = newEnv(t, nil).do(http.MethodGet, "/api/receipts", "")
	assert.Equal(t, http.StatusNotFound, status)
}
