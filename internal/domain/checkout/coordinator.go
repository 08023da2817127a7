// Package checkout drives a checkout session through address, shipping and
// payment selection to order placement.
package checkout

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

const instrumentationName = "github.com/xenking/kart-checkout/internal/domain/checkout"

// ErrBusy is returned when a remote step of the same session is still running.
var ErrBusy = errors.New("another checkout step is still running")

// OrderRequest is sent to the remote order endpoint.
type OrderRequest struct {
	CartID        string
	PaymentMethod string
	// IdempotencyKey is stable for a session. The remote endpoint must not
	// create a second order for a key it has already seen.
	IdempotencyKey string
}

// Remote is the remote checkout API.
type Remote interface {
	CreateAddress(ctx context.Context, token string, addr Address) (string, error)
	AttachShippingAddress(ctx context.Context, token, cartID, addressID string) error
	AttachShippingMethod(ctx context.Context, token, cartID, zoneMethodID string) error
	ShippingZones(ctx context.Context, token, countryID string) ([]ShippingZone, error)
	ApplyCoupon(ctx context.Context, token, code string) (*pricing.Coupon, error)
	PaymentMethods(ctx context.Context, token string) ([]PaymentMethod, error)
	PlaceOrder(ctx context.Context, token string, req OrderRequest) (*Order, error)
}

// CartSource is the part of the cart store checkout depends on.
type CartSource interface {
	Selected(ctx context.Context) []cart.LineItem
	Sync(ctx context.Context) (cart.SyncReport, error)
	ResolveCartID(ctx context.Context, token string) (string, error)
	RemovePurchased(ctx context.Context, purchased []cart.LineItem) (cart.Cart, error)
}

// Receipt describes a completed order. PlacedAt is set by the recorder.
type Receipt struct {
	OrderID  string
	Total    decimal.Decimal
	Items    []cart.LineItem
	PlacedAt time.Time
}

// ReceiptRecorder stores receipts of completed orders.
type ReceiptRecorder interface {
	RecordReceipt(ctx context.Context, r Receipt) error
}

// Options configures a Coordinator. Zero values use the global otel
// providers and record no receipts.
type Options struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Receipts       ReceiptRecorder
}

// Coordinator owns the current checkout session. Starting a new session
// abandons the previous one.
//
// Remote calls run without holding the lock. While one is in flight the
// session is marked busy; Abandon still works and the late result is
// discarded.
type Coordinator struct {
	cart     CartSource
	remote   Remote
	tokens   auth.TokenSource
	receipts ReceiptRecorder

	tracer       trace.Tracer
	stepFailures metric.Int64Counter

	mu      sync.Mutex
	current *Session
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(carts CartSource, remote Remote, tokens auth.TokenSource, opts Options) (*Coordinator, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}

	failures, err := opts.MeterProvider.Meter(instrumentationName).Int64Counter(
		"checkout.step.failures",
		metric.WithDescription("Failed remote checkout steps"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create step failure counter")
	}

	return &Coordinator{
		cart:         carts,
		remote:       remote,
		tokens:       tokens,
		receipts:     opts.Receipts,
		tracer:       opts.TracerProvider.Tracer(instrumentationName),
		stepFailures: failures,
	}, nil
}

func (c *Coordinator) start(ctx context.Context, op, id string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "checkout."+op,
		trace.WithAttributes(attribute.String("checkout.session_id", id)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Begin reconciles the cart with the remote one and snapshots the selected
// items into a new session. It fails with *UnsyncedItemsError while a
// selected line is not in the remote cart.
func (c *Coordinator) Begin(ctx context.Context) (_ Session, rerr error) {
	ctx, span := c.start(ctx, "Begin", "")
	defer func() { endSpan(span, rerr) }()

	if _, err := c.tokens.Token(ctx); err != nil {
		return Session{}, err
	}
	if len(c.cart.Selected(ctx)) == 0 {
		return Session{}, ErrEmptySelection
	}
	items, err := c.syncedSelection(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(items) == 0 {
		return Session{}, ErrEmptySelection
	}

	s := &Session{
		ID:             uuid.NewString(),
		State:          SelectingAddress,
		Items:          items,
		IdempotencyKey: uuid.NewString(),
	}
	s.recompute()
	span.SetAttributes(attribute.String("checkout.session_id", s.ID))

	lg := zctx.From(ctx)
	c.mu.Lock()
	if prev := c.current; prev != nil && !prev.State.Terminal() {
		prev.State = Failed
		lg.Info("Previous checkout session abandoned", zap.String("session_id", prev.ID))
	}
	c.current = s
	out := s.Clone()
	c.mu.Unlock()

	lg.Info("Checkout started",
		zap.String("session_id", s.ID),
		zap.Int("items", len(items)),
		zap.String("subtotal", pricing.Display(s.Totals.Subtotal)),
	)
	return out, nil
}

// syncedSelection runs a cart sync and returns the selected lines once all of
// them match the remote cart.
func (c *Coordinator) syncedSelection(ctx context.Context) ([]cart.LineItem, error) {
	report, err := c.cart.Sync(ctx)
	if err != nil && len(report.Unsynced) == 0 {
		c.stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", StepSyncCart)))
		return nil, &StepError{Step: StepSyncCart, Err: err}
	}

	items := c.cart.Selected(ctx)
	var pending []cart.Key
	for _, li := range items {
		if li.CartItemID == "" || slices.Contains(report.Unsynced, li.Key()) {
			pending = append(pending, li.Key())
		}
	}
	if len(pending) > 0 {
		zctx.From(ctx).Warn("Checkout blocked by unsynced items", zap.Int("items", len(pending)), zap.Error(err))
		return nil, &UnsyncedItemsError{Keys: pending, Err: err}
	}
	return items, nil
}

// Session returns a copy of the session.
func (c *Coordinator) Session(_ context.Context, id string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	return s.Clone(), nil
}

func (c *Coordinator) lookupLocked(id string) (*Session, error) {
	if c.current == nil || c.current.ID != id {
		return nil, ErrSessionNotFound
	}
	return c.current, nil
}

// editLocked returns the session if it accepts a local change for op.
func (c *Coordinator) editLocked(id, op string, allowed ...State) (*Session, error) {
	s, err := c.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, s.State) {
		return s, &TransitionError{Op: op, State: s.State}
	}
	if s.busy {
		return s, ErrBusy
	}
	return s, nil
}

// acquire marks the session busy for a remote call.
func (c *Coordinator) acquire(id, op string, allowed ...State) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.editLocked(id, op, allowed...)
	if err != nil {
		return s, err
	}
	s.busy = true
	return s, nil
}

// releaseLocked clears the busy mark and reports whether s is still live.
func (c *Coordinator) releaseLocked(s *Session) error {
	s.busy = false
	if c.current != s || s.State == Failed {
		return ErrSessionClosed
	}
	return nil
}

func (c *Coordinator) snapshot(s *Session) Session {
	if s == nil {
		return Session{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.Clone()
}

// abort releases s and returns err unchanged.
func (c *Coordinator) abort(s *Session, err error) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rerr := c.releaseLocked(s); rerr != nil {
		return Session{}, rerr
	}
	return s.Clone(), err
}

func (c *Coordinator) stepFailed(ctx context.Context, s *Session, step string, err error) (Session, error) {
	c.stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
	zctx.From(ctx).Warn("Checkout step failed",
		zap.String("session_id", s.ID),
		zap.String("step", step),
		zap.Error(err),
	)
	return c.abort(s, &StepError{Step: step, Err: err})
}

// SetAddress stores the shipping address. The country is kept from
// SelectCountry. Changing the address requires confirming shipping again.
func (c *Coordinator) SetAddress(_ context.Context, id string, addr Address) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.editLocked(id, "change the address", SelectingAddress, SelectingShipping)
	if err != nil {
		return cloneOrEmpty(s), err
	}
	addr.CountryID = s.Address.CountryID
	if err := addr.Validate(); err != nil {
		return s.Clone(), err
	}
	s.Address = addr
	s.AddressID = ""
	s.State = SelectingAddress
	return s.Clone(), nil
}

func cloneOrEmpty(s *Session) Session {
	if s == nil {
		return Session{}
	}
	return s.Clone()
}

// SelectCountry loads the shipping methods for countryID. Any previous
// shipping selection is cleared. ErrNoShippingMethods is returned along
// with the updated session when the country offers none.
func (c *Coordinator) SelectCountry(ctx context.Context, id, countryID string) (_ Session, rerr error) {
	ctx, span := c.start(ctx, "SelectCountry", id)
	defer func() { endSpan(span, rerr) }()
	span.SetAttributes(attribute.String("checkout.country_id", countryID))

	if countryID == "" {
		return Session{}, required("country")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return Session{}, err
	}
	s, err := c.acquire(id, "select a country", SelectingAddress, SelectingShipping)
	if err != nil {
		return c.snapshot(s), err
	}

	zones, err := c.remote.ShippingZones(ctx, token, countryID)
	if err != nil {
		return c.stepFailed(ctx, s, StepShippingZones, err)
	}
	var methods []ShippingMethod
	for _, z := range zones {
		for _, m := range z.Methods {
			if m.ZoneID == "" {
				m.ZoneID = z.ID
			}
			methods = append(methods, m)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.releaseLocked(s); err != nil {
		return Session{}, err
	}
	s.Address.CountryID = countryID
	s.AddressID = ""
	s.Methods = methods
	s.Shipping = nil
	s.Coupon = nil
	s.State = SelectingAddress
	s.recompute()

	if len(methods) == 0 {
		zctx.From(ctx).Warn("No shipping methods for country",
			zap.String("session_id", s.ID),
			zap.String("country_id", countryID),
		)
		return s.Clone(), ErrNoShippingMethods
	}
	return s.Clone(), nil
}

// SelectShipping picks one of the methods loaded by SelectCountry.
func (c *Coordinator) SelectShipping(_ context.Context, id, methodID string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.editLocked(id, "select a shipping method", SelectingAddress, SelectingShipping)
	if err != nil {
		return cloneOrEmpty(s), err
	}
	if methodID == "" {
		return s.Clone(), required("shipping_method")
	}
	m, ok := s.method(methodID)
	if !ok {
		return s.Clone(), &FieldError{Field: "shipping_method", Reason: "is not offered for the selected country"}
	}
	s.Shipping = &m
	s.Coupon = nil
	s.State = SelectingAddress
	s.recompute()
	return s.Clone(), nil
}

// ConfirmShipping creates the address remotely, attaches it to the remote
// cart and then attaches the shipping method, in that order. A failed step
// leaves the session in its previous state and is reported as a *StepError.
// Earlier steps are not rolled back; an address already created is reused
// on the next attempt.
func (c *Coordinator) ConfirmShipping(ctx context.Context, id string) (_ Session, rerr error) {
	ctx, span := c.start(ctx, "ConfirmShipping", id)
	defer func() { endSpan(span, rerr) }()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return Session{}, err
	}
	s, err := c.acquire(id, "confirm shipping", SelectingAddress, SelectingShipping)
	if err != nil {
		return c.snapshot(s), err
	}

	c.mu.Lock()
	addr, addressID, method := s.Address, s.AddressID, s.Shipping
	c.mu.Unlock()

	if err := addr.Validate(); err != nil {
		return c.abort(s, err)
	}
	if addr.CountryID == "" {
		return c.abort(s, required("country"))
	}
	if method == nil {
		return c.abort(s, required("shipping_method"))
	}

	cartID, err := c.cart.ResolveCartID(ctx, token)
	if err != nil {
		return c.abort(s, err)
	}

	if addressID == "" {
		addressID, err = c.remote.CreateAddress(ctx, token, addr)
		if err != nil {
			return c.stepFailed(ctx, s, StepAddress, err)
		}
		c.mu.Lock()
		s.AddressID = addressID
		c.mu.Unlock()
	}
	if err := c.remote.AttachShippingAddress(ctx, token, cartID, addressID); err != nil {
		return c.stepFailed(ctx, s, StepShippingAddress, err)
	}
	if err := c.remote.AttachShippingMethod(ctx, token, cartID, method.ID); err != nil {
		return c.stepFailed(ctx, s, StepShippingMethod, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.releaseLocked(s); err != nil {
		return Session{}, err
	}
	s.CartID = cartID
	s.Coupon = nil
	s.State = SelectingShipping
	s.recompute()
	return s.Clone(), nil
}

// PaymentMethods loads the payment options offered by the remote system.
func (c *Coordinator) PaymentMethods(ctx context.Context, id string) (_ Session, rerr error) {
	ctx, span := c.start(ctx, "PaymentMethods", id)
	defer func() { endSpan(span, rerr) }()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return Session{}, err
	}
	s, err := c.acquire(id, "load payment methods", SelectingShipping, SelectingPayment)
	if err != nil {
		return c.snapshot(s), err
	}

	methods, err := c.remote.PaymentMethods(ctx, token)
	if err != nil {
		return c.stepFailed(ctx, s, StepPaymentMethods, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.releaseLocked(s); err != nil {
		return Session{}, err
	}
	s.PaymentOptions = methods
	return s.Clone(), nil
}

// SelectPayment records the payment method locally. When options were
// loaded, the code must be one of them.
func (c *Coordinator) SelectPayment(_ context.Context, id, code string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.editLocked(id, "select a payment method", SelectingShipping, SelectingPayment)
	if err != nil {
		return cloneOrEmpty(s), err
	}
	if code == "" {
		return s.Clone(), required("payment_method")
	}
	if len(s.PaymentOptions) > 0 && !slices.ContainsFunc(s.PaymentOptions, func(p PaymentMethod) bool {
		return p.Code == code
	}) {
		return s.Clone(), &FieldError{Field: "payment_method", Reason: "is not offered"}
	}
	s.PaymentMethod = code
	s.State = SelectingPayment
	return s.Clone(), nil
}

// ApplyCoupon applies a coupon code remotely. The remote grand total
// replaces the locally computed total. The total only holds for the shipping
// attached at that moment: selecting a country or method, or confirming
// shipping, drops the coupon and it has to be applied again.
func (c *Coordinator) ApplyCoupon(ctx context.Context, id, code string) (_ Session, rerr error) {
	ctx, span := c.start(ctx, "ApplyCoupon", id)
	defer func() { endSpan(span, rerr) }()

	if code == "" {
		return Session{}, required("coupon")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return Session{}, err
	}
	s, err := c.acquire(id, "apply a coupon", SelectingAddress, SelectingShipping, SelectingPayment)
	if err != nil {
		return c.snapshot(s), err
	}

	coupon, err := c.remote.ApplyCoupon(ctx, token, code)
	if err != nil {
		return c.stepFailed(ctx, s, StepCoupon, err)
	}
	if coupon.Code == "" {
		coupon.Code = code
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.releaseLocked(s); err != nil {
		return Session{}, err
	}
	s.Coupon = coupon
	s.recompute()
	return s.Clone(), nil
}

// PlaceOrder submits the order with the session's idempotency key.
//
// A rejection that will not change on retry fails the session. Any other
// error returns it to SelectingPayment so the order can be retried with the
// same key. On success the purchased quantities are removed from the cart.
func (c *Coordinator) PlaceOrder(ctx context.Context, id string) (_ Session, rerr error) {
	ctx, span := c.start(ctx, "PlaceOrder", id)
	defer func() { endSpan(span, rerr) }()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return Session{}, err
	}
	s, err := c.acquire(id, "place the order", SelectingPayment)
	if err != nil {
		return c.snapshot(s), err
	}

	c.mu.Lock()
	if s.PaymentMethod == "" {
		c.mu.Unlock()
		return c.abort(s, required("payment_method"))
	}
	s.State = Confirming
	req := OrderRequest{
		CartID:         s.CartID,
		PaymentMethod:  s.PaymentMethod,
		IdempotencyKey: s.IdempotencyKey,
	}
	c.mu.Unlock()

	lg := zctx.From(ctx).With(zap.String("session_id", s.ID))
	order, err := c.remote.PlaceOrder(ctx, token, req)
	if err == nil && order == nil {
		err = errors.New("empty order response")
	}

	c.mu.Lock()
	if rerr := c.releaseLocked(s); rerr != nil {
		c.mu.Unlock()
		if err == nil {
			lg.Warn("Order placed after checkout was closed, result discarded", zap.String("order_id", order.ID))
		}
		return Session{}, rerr
	}
	if err != nil {
		if retryable(err) {
			s.State = SelectingPayment
		} else {
			s.State = Failed
		}
		out := s.Clone()
		c.mu.Unlock()

		c.stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", StepOrder)))
		lg.Warn("Order placement failed", zap.Stringer("state", out.State), zap.Error(err))
		return out, &StepError{Step: StepOrder, Err: err}
	}
	s.Order = order
	s.State = Completed
	out := s.Clone()
	c.mu.Unlock()

	lg.Info("Order placed", zap.String("order_id", order.ID))
	c.complete(ctx, out)
	return out, nil
}

// complete runs the post-order bookkeeping. Failures are logged: the order
// itself already exists.
func (c *Coordinator) complete(ctx context.Context, s Session) {
	lg := zctx.From(ctx).With(zap.String("order_id", s.Order.ID))

	if _, err := c.cart.RemovePurchased(ctx, s.Items); err != nil {
		lg.Warn("Remove purchased items from cart", zap.Error(err))
	}
	if c.receipts == nil {
		return
	}
	total := s.Order.GrandTotal
	if total.IsZero() {
		total = s.Totals.Total
	}
	if err := c.receipts.RecordReceipt(ctx, Receipt{
		OrderID: s.Order.ID,
		Total:   total,
		Items:   s.Items,
	}); err != nil {
		lg.Warn("Record order receipt", zap.Error(err))
	}
}

// Abandon fails the session. Results of remote calls still in flight are
// discarded when they arrive.
func (c *Coordinator) Abandon(ctx context.Context, id string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	switch s.State {
	case Failed:
		return s.Clone(), nil
	case Completed:
		return s.Clone(), &TransitionError{Op: "abandon", State: s.State}
	}
	s.State = Failed
	zctx.From(ctx).Info("Checkout abandoned", zap.String("session_id", s.ID))
	return s.Clone(), nil
}
