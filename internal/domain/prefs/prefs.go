// Package prefs manages the user preferences stored next to the cart:
// favorites, recent searches and the display currency.
package prefs

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/storage/kv"
)

const (
	// DefaultCurrency is used until the user picks one.
	DefaultCurrency = "USD"
	// MaxSearchHistory bounds the number of remembered queries.
	MaxSearchHistory = 10
)

var (
	// ErrMissingProductID is returned when a favorite has no product id.
	ErrMissingProductID = errors.New("product id is required")
	// ErrInvalidCurrency is returned for a code that is not three letters.
	ErrInvalidCurrency = errors.New("currency must be a three-letter code")
)

// Store reads and writes preferences. Unreadable values degrade to their
// defaults with a logged warning.
type Store struct {
	kv kv.Store
	mu sync.Mutex
}

// NewStore returns a Store backed by store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) list(ctx context.Context, key string) []string {
	var out []string
	if _, err := kv.GetJSON(ctx, s.kv, key, &out); err != nil {
		zctx.From(ctx).Warn("Discarding unreadable preference", zap.String("key", key), zap.Error(err))
		return nil
	}
	return out
}

func (s *Store) saveList(ctx context.Context, key string, v []string) error {
	if v == nil {
		v = []string{}
	}
	return kv.SetJSON(ctx, s.kv, key, v)
}

// Favorites returns the favorite product ids, oldest first.
func (s *Store) Favorites(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx, kv.KeyFavorites)
}

// IsFavorite reports whether productID is a favorite.
func (s *Store) IsFavorite(ctx context.Context, productID string) bool {
	return slices.Contains(s.Favorites(ctx), productID)
}

// ToggleFavorite adds productID to the favorites, or removes it when already
// present. It reports whether the product is a favorite afterwards.
func (s *Store) ToggleFavorite(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, ErrMissingProductID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.list(ctx, kv.KeyFavorites)
	added := false
	if i := slices.Index(favs, productID); i >= 0 {
		favs = slices.Delete(favs, i, i+1)
	} else {
		favs = append(favs, productID)
		added = true
	}
	if err := s.saveList(ctx, kv.KeyFavorites, favs); err != nil {
		return !added, err
	}
	return added, nil
}

// SearchHistory returns recent queries, most recent first.
func (s *Store) SearchHistory(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx, kv.KeySearchHistory)
}

// PushSearch records query at the front of the history. A repeated query
// moves to the front instead of appearing twice. Blank queries are ignored.
func (s *Store) PushSearch(ctx context.Context, query string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.list(ctx, kv.KeySearchHistory)
	query = strings.TrimSpace(query)
	if query == "" {
		return history, nil
	}

	history = slices.DeleteFunc(history, func(q string) bool { return strings.EqualFold(q, query) })
	history = append([]string{query}, history...)
	if len(history) > MaxSearchHistory {
		history = history[:MaxSearchHistory]
	}
	if err := s.saveList(ctx, kv.KeySearchHistory, history); err != nil {
		return nil, err
	}
	return history, nil
}

// ClearSearchHistory forgets all recent queries.
func (s *Store) ClearSearchHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, kv.KeySearchHistory); err != nil {
		return errors.Wrap(err, "clear search history")
	}
	return nil
}

// Currency returns the selected display currency, DefaultCurrency if unset.
func (s *Store) Currency(ctx context.Context) string {
	var code string
	if _, err := kv.GetJSON(ctx, s.kv, kv.KeySelectedCurrency, &code); err != nil {
		zctx.From(ctx).Warn("Discarding unreadable currency", zap.Error(err))
	}
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// SetCurrency stores the display currency. Codes are upper-cased.
func (s *Store) SetCurrency(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 || strings.IndexFunc(code, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return "", ErrInvalidCurrency
	}
	if err := kv.SetJSON(ctx, s.kv, kv.KeySelectedCurrency, code); err != nil {
		return "", err
	}
	return code, nil
}
