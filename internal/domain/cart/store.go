package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/storage/kv"
)

// AddItemRequest holds the input for adding a product to the cart.
type AddItemRequest struct {
	ProductID string
	Variant   string
	Quantity  int
	UnitPrice decimal.Decimal
	Title     string
	ImageRef  string
}

// Store is the single owner of the local cart. It persists the cart under
// kv.KeyCart and kv.KeyCartID after every mutation.
//
// Mutations are serialised: mu is held across the remote round trip, so two
// quick increments from the same process apply one after the other instead
// of both reading the same remote quantity. Nothing is de-duplicated.
type Store struct {
	kv     kv.Store
	remote Remote
	tokens auth.TokenSource

	mu     sync.Mutex
	cart   Cart
	loaded bool
}

// NewStore creates a Store. Call LoadPersisted before serving the UI; other
// operations load lazily if it was not called.
func NewStore(store kv.Store, remote Remote, tokens auth.TokenSource) *Store {
	return &Store{
		kv:     store,
		remote: remote,
		tokens: tokens,
	}
}

// LoadPersisted restores the cart from storage. It never fails: a missing or
// unreadable cart yields an empty one and a logged warning.
func (s *Store) LoadPersisted(ctx context.Context) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)
	return s.cart.Clone()
}

func (s *Store) load(ctx context.Context) {
	lg := zctx.From(ctx)
	s.loaded = true
	s.cart = Cart{}

	var items []LineItem
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeyCart, &items); err != nil {
		lg.Warn("Discarding unreadable persisted cart", zap.Error(err))
		return
	}
	var remoteID string
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeyCartID, &remoteID); err != nil {
		lg.Warn("Discarding unreadable persisted cart id", zap.Error(err))
	}

	s.cart = Cart{RemoteID: remoteID, Items: items}
	s.cart.withoutNonPositive()
}

func (s *Store) ensureLoaded(ctx context.Context) {
	if !s.loaded {
		s.load(ctx)
	}
}

// persist writes c to storage and, on success, makes it the current cart.
// When the cart id cannot be written the items key is restored, so storage
// keeps matching the current cart.
func (s *Store) persist(ctx context.Context, c Cart) error {
	if err := s.writeItems(ctx, c.Items); err != nil {
		return errors.Wrap(err, "persist cart")
	}
	if err := s.writeCartID(ctx, c.RemoteID); err != nil {
		if rerr := s.writeItems(ctx, s.cart.Items); rerr != nil {
			zctx.From(ctx).Error("Restore persisted cart", zap.Error(rerr))
		}
		return errors.Wrap(err, "persist cart id")
	}
	s.cart = c
	return nil
}

func (s *Store) writeItems(ctx context.Context, items []LineItem) error {
	if items == nil {
		items = []LineItem{}
	}
	return kv.SetJSON(ctx, s.kv, kv.KeyCart, items)
}

func (s *Store) writeCartID(ctx context.Context, id string) error {
	if id == "" {
		return s.kv.Delete(ctx, kv.KeyCartID)
	}
	return kv.SetJSON(ctx, s.kv, kv.KeyCartID, id)
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot(ctx context.Context) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(ctx)
	return s.cart.Clone()
}

// Selected returns copies of the currently selected line items.
func (s *Store) Selected(ctx context.Context) []LineItem {
	return s.Snapshot(ctx).Selected()
}

// AddItem merges the item into the cart, persists it, then pushes it to the
// remote cart. The local change is optimistic: when the remote call fails
// (including a missing token) the item stays in the cart and a *SyncError is
// returned together with the updated cart.
func (s *Store) AddItem(ctx context.Context, req AddItemRequest) (Cart, error) {
	if req.ProductID == "" {
		return Cart{}, ErrMissingProductID
	}
	if req.Quantity < 1 {
		return Cart{}, &InvalidQuantityError{ProductID: req.ProductID, Quantity: req.Quantity}
	}
	if req.UnitPrice.IsNegative() {
		return Cart{}, ErrNegativeUnitPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	next := s.cart.Clone()
	key := Key{ProductID: req.ProductID, Variant: req.Variant}
	if i := next.indexOf(key); i >= 0 {
		next.Items[i].Quantity += req.Quantity
	} else {
		next.Items = append(next.Items, LineItem{
			ProductID: req.ProductID,
			Title:     req.Title,
			UnitPrice: req.UnitPrice,
			Quantity:  req.Quantity,
			Selected:  true,
			ImageRef:  req.ImageRef,
			Variant:   req.Variant,
		})
	}
	if err := s.persist(ctx, next); err != nil {
		return s.cart.Clone(), err
	}

	lg := zctx.From(ctx).With(zap.String("product_id", req.ProductID))
	token, err := s.tokens.Token(ctx)
	if err != nil {
		lg.Info("Item kept locally, remote add skipped", zap.Error(err))
		return s.cart.Clone(), &SyncError{Op: "add to cart", Err: err}
	}

	rc, err := s.remote.AddItem(ctx, token, AddRequest{
		ProductID: req.ProductID,
		Variant:   req.Variant,
		Quantity:  req.Quantity,
	})
	if err != nil {
		lg.Warn("Remote add to cart failed, item kept locally", zap.Error(err))
		return s.cart.Clone(), &SyncError{Op: "add to cart", Err: err}
	}

	adopted := s.cart.Clone()
	adoptRemoteIDs(&adopted, rc)
	if err := s.persist(ctx, adopted); err != nil {
		return s.cart.Clone(), err
	}
	return s.cart.Clone(), nil
}

// adoptRemoteIDs copies the remote cart id and line ids onto matching local
// lines. Quantities are left untouched: the local cart is what the user sees.
func adoptRemoteIDs(c *Cart, rc *RemoteCart) {
	if rc == nil {
		return
	}
	if rc.ID != "" {
		c.RemoteID = rc.ID
	}
	for i := range c.Items {
		if ri := rc.find(c.Items[i].Key()); ri != nil && ri.CartItemID != "" {
			c.Items[i].CartItemID = ri.CartItemID
		}
	}
}

// IncreaseQuantity adds one unit to the line identified by key. For a synced
// line the new quantity is computed from the remote cart, and local state
// changes only after the remote update succeeds. A line that is not in the
// remote cart yet changes locally and a *SyncError wrapping ErrNotSynced is
// returned with the cart.
func (s *Store) IncreaseQuantity(ctx context.Context, key Key) (Cart, error) {
	return s.changeQuantity(ctx, key, 1)
}

// DecreaseQuantity removes one unit from the line identified by key. Reaching
// zero removes a synced line through the remote delete path and drops an
// unsynced one locally.
func (s *Store) DecreaseQuantity(ctx context.Context, key Key) (Cart, error) {
	return s.changeQuantity(ctx, key, -1)
}

func (s *Store) changeQuantity(ctx context.Context, key Key, delta int) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.cart.indexOf(key)
	if i < 0 {
		return s.cart.Clone(), &ItemNotFoundError{Key: key}
	}
	if s.cart.Items[i].CartItemID == "" {
		return s.changeUnsyncedLocked(ctx, key, delta)
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return s.cart.Clone(), err
	}

	rc, err := s.remote.GetCart(ctx, token)
	if err != nil {
		return s.cart.Clone(), &RemoteError{Op: "fetch cart", Err: err}
	}
	if rc.ID == "" {
		return s.cart.Clone(), ErrCartNotFound
	}
	ri := rc.find(key)
	if ri == nil || ri.CartItemID == "" {
		return s.cart.Clone(), &ItemNotFoundError{Key: key, Remote: true}
	}

	qty := ri.Quantity + delta
	if qty <= 0 {
		return s.removeLocked(ctx, token, rc.ID, ri.CartItemID, key)
	}

	if err := s.remote.UpdateQuantity(ctx, token, ri.CartItemID, rc.ID, qty); err != nil {
		return s.cart.Clone(), &RemoteError{Op: "update quantity", Err: err}
	}

	next := s.cart.Clone()
	next.RemoteID = rc.ID
	i = next.indexOf(key)
	next.Items[i].Quantity = qty
	next.Items[i].CartItemID = ri.CartItemID
	if err := s.persist(ctx, next); err != nil {
		return s.cart.Clone(), err
	}
	return s.cart.Clone(), nil
}

// changeUnsyncedLocked adjusts a line that never reached the remote cart.
// There is nothing to confirm remotely, so the change is local and Sync
// pushes the new quantity. A line reaching zero is dropped.
func (s *Store) changeUnsyncedLocked(ctx context.Context, key Key, delta int) (Cart, error) {
	next := s.cart.Clone()
	i := next.indexOf(key)
	next.Items[i].Quantity += delta
	dropped := next.Items[i].Quantity <= 0
	if dropped {
		next.removeAt(i)
	}
	if err := s.persist(ctx, next); err != nil {
		return s.cart.Clone(), err
	}
	if dropped {
		return s.cart.Clone(), nil
	}
	return s.cart.Clone(), &SyncError{Op: "update quantity", Err: ErrNotSynced}
}

// RemoveItem deletes the line with the given remote cart item id. The remote
// delete must succeed before the line is removed locally; on any failure the
// cart is left exactly as it was.
func (s *Store) RemoveItem(ctx context.Context, cartItemID string) (Cart, error) {
	if cartItemID == "" {
		return Cart{}, ErrMissingCartItemID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.cart.indexOfCartItem(cartItemID)
	if i < 0 {
		return s.cart.Clone(), &ItemNotFoundError{CartItemID: cartItemID}
	}
	return s.removeSyncedLocked(ctx, cartItemID, s.cart.Items[i].Key())
}

// RemoveLine deletes the line identified by key. A line in the remote cart
// goes through the same confirmed delete as RemoveItem. A line that never
// reached the remote cart is dropped locally.
func (s *Store) RemoveLine(ctx context.Context, key Key) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.cart.indexOf(key)
	if i < 0 {
		return s.cart.Clone(), &ItemNotFoundError{Key: key}
	}
	if id := s.cart.Items[i].CartItemID; id != "" {
		return s.removeSyncedLocked(ctx, id, key)
	}

	next := s.cart.Clone()
	next.removeAt(i)
	if err := s.persist(ctx, next); err != nil {
		return s.cart.Clone(), err
	}
	return s.cart.Clone(), nil
}

func (s *Store) removeSyncedLocked(ctx context.Context, cartItemID string, key Key) (Cart, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return s.cart.Clone(), err
	}
	cartID, err := s.resolveCartID(ctx, token)
	if err != nil {
		return s.cart.Clone(), err
	}
	return s.removeLocked(ctx, token, cartID, cartItemID, key)
}

func (s *Store) removeLocked(ctx context.Context, token, cartID, cartItemID string, key Key) (Cart, error) {
	if err := s.remote.DeleteItem(ctx, token, cartID, cartItemID); err != nil {
		if errors.Is(err, ErrRemoteNotFound) {
			return s.cart.Clone(), &ItemNotFoundError{CartItemID: cartItemID, Remote: true}
		}
		return s.cart.Clone(), &RemoteError{Op: "remove item", Err: err}
	}

	next := s.cart.Clone()
	next.RemoteID = cartID
	if i := next.indexOf(key); i >= 0 {
		next.removeAt(i)
	}
	if err := s.persist(ctx, next); err != nil {
		return s.cart.Clone(), err
	}
	return s.cart.Clone(), nil
}

// ToggleSelected flips the selection of the line identified by key. It is a
// local-only change.
func (s *Store) ToggleSelected(ctx context.Context, key Key) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	next := s.cart.Clone()
	i := next.indexOf(key)
	if i < 0 {
		return s.cart.Clone(), &ItemNotFoundError{Key: key}
	}
	next.Items[i].Selected = !next.Items[i].Selected
	if err := s.persist(ctx, next); err != nil {
		return s.cart.Clone(), err
	}
	return s.cart.Clone(), nil
}

// ResolveCartID returns the remote cart id, fetching it from the remote cart
// when it is not known locally yet.
func (s *Store) ResolveCartID(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	return s.resolveCartID(ctx, token)
}

func (s *Store) resolveCartID(ctx context.Context, token string) (string, error) {
	if s.cart.RemoteID != "" {
		return s.cart.RemoteID, nil
	}

	rc, err := s.remote.GetCart(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRemoteNotFound) {
			return "", ErrCartNotFound
		}
		return "", &RemoteError{Op: "fetch cart", Err: err}
	}
	if rc.ID == "" {
		return "", ErrCartNotFound
	}

	next := s.cart.Clone()
	next.RemoteID = rc.ID
	if err := s.persist(ctx, next); err != nil {
		return "", err
	}
	return rc.ID, nil
}

// RemovePurchased subtracts the purchased quantities from the cart. Lines
// added or increased after the snapshot was taken keep the difference. When
// the cart ends up empty the remote cart id is forgotten as well, since the
// remote cart was consumed by the order.
func (s *Store) RemovePurchased(ctx context.Context, purchased []LineItem) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	next := s.cart.Clone()
	for _, p := range purchased {
		i := next.indexOf(p.Key())
		if i < 0 {
			continue
		}
		next.Items[i].Quantity -= p.Quantity
	}
	next.withoutNonPositive()
	if len(next.Items) == 0 {
		next.RemoteID = ""
	}

	if err := s.persist(ctx, next); err != nil {
		return s.cart.Clone(), err
	}
	return s.cart.Clone(), nil
}

// Clear empties the cart and forgets the remote cart id, e.g. on logout.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	return s.persist(ctx, Cart{})
}
