package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/storage/kv"
)

func TestTokens(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	tokens := NewTokens(store)

	_, err := tokens.Token(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	require.Error(t, tokens.Login(ctx, "  "))

	require.NoError(t, tokens.Login(ctx, "abc"))
	got, err := tokens.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.NoError(t, tokens.Logout(ctx))
	_, err = tokens.Token(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestTokens_BlankStoredToken(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, kv.KeyToken, []byte(`""`)))

	_, err := NewTokens(store).Token(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}
