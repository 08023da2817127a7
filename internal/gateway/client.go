// Package gateway is the HTTP/JSON client of the remote commerce API. It
// implements the remote contracts of the cart and checkout packages and
// normalises every response into their types.
package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

const (
	instrumentationName = "github.com/xenking/kart-checkout/internal/gateway"
	maxBodySize         = 4 << 20
)

var (
	_ cart.Remote     = (*Client)(nil)
	_ checkout.Remote = (*Client)(nil)
)

// BreakerConfig controls the circuit breaker in front of the remote API.
type BreakerConfig struct {
	// Failures is the number of consecutive temporary failures that open
	// the breaker.
	Failures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds a single request including reading the body.
	Timeout time.Duration
	Breaker BreakerConfig

	// Logger receives breaker state changes.
	Logger *zap.Logger
	// Transport is the base round tripper, http.DefaultTransport if nil.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client calls the remote commerce API. It never retries: a failed call is
// reported to the caller, which owns the retry policy.
type Client struct {
	base     string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	zones    singleflight.Group
	failures metric.Int64Counter
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker.Failures == 0 {
		cfg.Breaker.Failures = 5
	}
	if cfg.Breaker.OpenTimeout <= 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}
	if cfg.Breaker.HalfOpenRequests == 0 {
		cfg.Breaker.HalfOpenRequests = 1
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	failures, err := cfg.MeterProvider.Meter(instrumentationName).Int64Counter(
		"cart.remote.failures",
		metric.WithDescription("Failed remote commerce API calls"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create failure counter")
	}

	return &Client{
		base: base.String(),
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport,
				otelhttp.WithTracerProvider(cfg.TracerProvider),
				otelhttp.WithMeterProvider(cfg.MeterProvider),
			),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "commerce-api",
			MaxRequests: cfg.Breaker.HalfOpenRequests,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= cfg.Breaker.Failures
			},
			IsSuccessful: countsAsSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				cfg.Logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
		failures: failures,
	}, nil
}

// countsAsSuccess keeps client errors and cancellations out of the breaker:
// only outages should open it.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}

// Available reports ErrUnavailable while the breaker is open. It performs no
// network call.
func (c *Client) Available(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrUnavailable
	}
	return nil
}

type request struct {
	op      string
	method  string
	path    string
	token   string
	body    []byte
	headers map[string]string
}

// do runs r through the breaker and returns the response body of a 2xx.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, r)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &APIError{Op: r.op, Err: ErrUnavailable}
		}
		c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", r.op)))
		zctx.From(ctx).Debug("Remote call failed",
			zap.String("op", r.op),
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return nil, err
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, error) {
	var reqBody io.Reader
	if r.body != nil {
		reqBody = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.base+r.path, reqBody)
	if err != nil {
		return nil, &APIError{Op: r.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Op: r.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &APIError{Op: r.op, Err: errors.Wrap(err, "read body")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Op:      r.op,
			Status:  resp.StatusCode,
			Message: errorMessage(body),
		}
	}
	return body, nil
}

func seg(s string) string {
	return url.PathEscape(s)
}

// writeID encodes numeric ids as numbers and anything else as a string.
func writeID(e *jx.Encoder, id string) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		e.Int64(n)
		return
	}
	e.Str(id)
}

// GetCart fetches the remote cart of the token's user.
func (c *Client) GetCart(ctx context.Context, token string) (*cart.RemoteCart, error) {
	body, err := c.do(ctx, request{op: "get cart", method: http.MethodGet, path: "/cart", token: token})
	if err != nil {
		return nil, err
	}
	return decodeCart(zctx.From(ctx), body)
}

// AddItem adds quantity units of a product to the remote cart. When the
// response does not carry the cart, it is fetched.
func (c *Client) AddItem(ctx context.Context, token string, req cart.AddRequest) (*cart.RemoteCart, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("product_id")
	writeID(&e, req.ProductID)
	e.FieldStart("qty")
	e.Int(req.Quantity)
	if req.Variant != "" {
		e.FieldStart("color")
		e.Str(req.Variant)
	}
	e.ObjEnd()

	body, err := c.do(ctx, request{
		op:     "add to cart",
		method: http.MethodPost,
		path:   "/cart/items",
		token:  token,
		body:   e.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	rc, err := decodeCart(zctx.From(ctx), body)
	if err != nil || (rc.ID == "" && len(rc.Items) == 0) {
		return c.GetCart(ctx, token)
	}
	return rc, nil
}

// UpdateQuantity sets the quantity of a remote cart line.
func (c *Client) UpdateQuantity(ctx context.Context, token, cartItemID, cartID string, qty int) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("qty")
	e.Int(qty)
	e.ObjEnd()

	_, err := c.do(ctx, request{
		op:     "update quantity",
		method: http.MethodPut,
		path:   "/cart/" + seg(cartID) + "/items/" + seg(cartItemID),
		token:  token,
		body:   e.Bytes(),
	})
	return err
}

// DeleteItem removes a remote cart line. A missing line is reported as
// ErrNotFound.
func (c *Client) DeleteItem(ctx context.Context, token, cartID, cartItemID string) error {
	_, err := c.do(ctx, request{
		op:     "remove item",
		method: http.MethodDelete,
		path:   "/cart/" + seg(cartID) + "/items/" + seg(cartItemID),
		token:  token,
	})
	return err
}

// CreateAddress creates a shipping address and returns its id.
func (c *Client) CreateAddress(ctx context.Context, token string, addr checkout.Address) (string, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("full_name")
	e.Str(addr.FullName)
	e.FieldStart("phone")
	e.Str(addr.Phone)
	e.FieldStart("address1")
	e.Str(addr.AddressLine1)
	if addr.AddressLine2 != "" {
		e.FieldStart("address2")
		e.Str(addr.AddressLine2)
	}
	e.FieldStart("postcode")
	e.Str(addr.Postcode)
	e.FieldStart("country_id")
	writeID(&e, addr.CountryID)
	if addr.CityID != "" {
		e.FieldStart("city_id")
		writeID(&e, addr.CityID)
	}
	e.ObjEnd()

	body, err := c.do(ctx, request{
		op:     "create address",
		method: http.MethodPost,
		path:   "/addresses",
		token:  token,
		body:   e.Bytes(),
	})
	if err != nil {
		return "", err
	}
	id, err := decodeID(body)
	if err != nil {
		return "", errors.Wrap(err, "create address response")
	}
	return id, nil
}

// AttachShippingAddress sets the shipping address of the remote cart.
func (c *Client) AttachShippingAddress(ctx context.Context, token, cartID, addressID string) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("address_id")
	writeID(&e, addressID)
	e.ObjEnd()

	_, err := c.do(ctx, request{
		op:     "attach shipping address",
		method: http.MethodPut,
		path:   "/cart/" + seg(cartID) + "/shipping-address",
		token:  token,
		body:   e.Bytes(),
	})
	return err
}

// AttachShippingMethod sets the shipping zone method of the remote cart.
func (c *Client) AttachShippingMethod(ctx context.Context, token, cartID, zoneMethodID string) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("shipping_zone_method_id")
	writeID(&e, zoneMethodID)
	e.ObjEnd()

	_, err := c.do(ctx, request{
		op:     "attach shipping method",
		method: http.MethodPut,
		path:   "/cart/" + seg(cartID) + "/shipping-method",
		token:  token,
		body:   e.Bytes(),
	})
	return err
}

// ShippingZones returns the shipping zones of a country. Concurrent lookups
// of the same country share one request. Malformed entries are dropped.
func (c *Client) ShippingZones(ctx context.Context, token, countryID string) ([]checkout.ShippingZone, error) {
	v, err, _ := c.zones.Do(countryID+"\x00"+token, func() (any, error) {
		body, err := c.do(ctx, request{
			op:     "shipping zones",
			method: http.MethodGet,
			path:   "/countries/" + seg(countryID) + "/shipping-zones",
			token:  token,
		})
		if err != nil {
			return nil, err
		}
		return decodeZones(zctx.From(ctx).With(zap.String("country_id", countryID)), body), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]checkout.ShippingZone), nil
}

// ApplyCoupon applies a coupon code to the remote cart and returns the
// remote grand total.
func (c *Client) ApplyCoupon(ctx context.Context, token, code string) (*pricing.Coupon, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.ObjEnd()

	body, err := c.do(ctx, request{
		op:     "apply coupon",
		method: http.MethodPost,
		path:   "/coupons/apply",
		token:  token,
		body:   e.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	coupon, err := decodeCoupon(body)
	if err != nil {
		return nil, err
	}
	if coupon.Code == "" {
		coupon.Code = code
	}
	return coupon, nil
}

// PaymentMethods lists the payment methods offered to the user.
func (c *Client) PaymentMethods(ctx context.Context, token string) ([]checkout.PaymentMethod, error) {
	body, err := c.do(ctx, request{
		op:     "payment methods",
		method: http.MethodGet,
		path:   "/payment-methods",
		token:  token,
	})
	if err != nil {
		return nil, err
	}
	return decodePaymentMethods(zctx.From(ctx), body)
}

// PlaceOrder places the order for the remote cart. The idempotency key is
// sent as the Idempotency-Key header.
func (c *Client) PlaceOrder(ctx context.Context, token string, req checkout.OrderRequest) (*checkout.Order, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("cart_id")
	writeID(&e, req.CartID)
	e.FieldStart("payment_method")
	e.Str(req.PaymentMethod)
	e.ObjEnd()

	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}
	body, err := c.do(ctx, request{
		op:      "place order",
		method:  http.MethodPost,
		path:    "/orders",
		token:   token,
		body:    e.Bytes(),
		headers: headers,
	})
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}
