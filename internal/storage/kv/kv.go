// Package kv defines the string-keyed persistent storage shared by the cart
// engine and the rest of the app, plus the in-process backends.
//
// Each key holds exactly one JSON document. A missing key is never an error
// for callers of GetJSON: it means "empty/default".
package kv

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

// Well-known keys. KeyCart and KeyCartID are owned by the cart store and must
// not be written by any other component.
const (
	KeyCart             = "cart"
	KeyCartID           = "cartId"
	KeyFavorites        = "favorites"
	KeySearchHistory    = "searchHistory"
	KeyToken            = "token"
	KeySelectedCurrency = "selectedCurrency"
)

// ErrNotFound is returned by Store.Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a persistent key-value store of raw JSON blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report their own availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetJSON decodes the value under key into v. It reports false with a nil
// error when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrapf(err, "get %q", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "decode %q", key)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %q", key)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}
