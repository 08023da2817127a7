// Package auth holds the session token precondition shared by every remote
// cart and checkout operation.
package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/storage/kv"
)

// ErrNotAuthenticated is returned before any network call when no session
// token is available. It is user-actionable: the user must log in.
var ErrNotAuthenticated = errors.New("not logged in: log in to continue")

// TokenSource provides the bearer token for remote calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Tokens reads and writes the session token under kv.KeyToken.
type Tokens struct {
	store kv.Store
}

var _ TokenSource = (*Tokens)(nil)

// NewTokens returns Tokens backed by store.
func NewTokens(store kv.Store) *Tokens {
	return &Tokens{store: store}
}

// Token returns the persisted token or ErrNotAuthenticated when it is absent
// or blank. Storage failures are returned wrapped.
func (t *Tokens) Token(ctx context.Context) (string, error) {
	var token string
	found, err := kv.GetJSON(ctx, t.store, kv.KeyToken, &token)
	if err != nil {
		return "", errors.Wrap(err, "read token")
	}
	if !found || strings.TrimSpace(token) == "" {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// Login persists token as the active session.
func (t *Tokens) Login(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is required")
	}
	return kv.SetJSON(ctx, t.store, kv.KeyToken, token)
}

// Logout forgets the active session token.
func (t *Tokens) Logout(ctx context.Context) error {
	if err := t.store.Delete(ctx, kv.KeyToken); err != nil {
		return errors.Wrap(err, "delete token")
	}
	return nil
}
