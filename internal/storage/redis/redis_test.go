package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/storage/kv"
)

func setupStore(t *testing.T, namespace string) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, namespace), mr
}

func TestStore_RoundTrip(t *testing.T) {
	s, mr := setupStore(t, "device-1")
	ctx := context.Background()

	_, err := s.Get(ctx, kv.KeyCart)
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, kv.KeyCart, []byte(`[{"productId":"p1"}]`)))
	assert.True(t, mr.Exists("kart:device-1:cart"))

	got, err := s.Get(ctx, kv.KeyCart)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productId":"p1"}]`, string(got))

	require.NoError(t, s.Delete(ctx, kv.KeyCart))
	assert.False(t, mr.Exists("kart:device-1:cart"))
}

func TestStore_DefaultNamespace(t *testing.T) {
	s, mr := setupStore(t, "")

	require.NoError(t, s.Set(context.Background(), kv.KeyToken, []byte(`"t"`)))
	assert.True(t, mr.Exists("kart:default:token"))
}

func TestStore_JSONHelpers(t *testing.T) {
	s, _ := setupStore(t, "json")
	ctx := context.Background()

	require.NoError(t, kv.SetJSON(ctx, s, kv.KeySelectedCurrency, "EUR"))

	var cur string
	found, err := kv.GetJSON(ctx, s, kv.KeySelectedCurrency, &cur)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "EUR", cur)
}

func TestStore_ServerDown(t *testing.T) {
	s, mr := setupStore(t, "down")
	mr.Close()

	_, err := s.Get(context.Background(), kv.KeyCart)
	require.Error(t, err)
	assert.NotErrorIs(t, err, kv.ErrNotFound)
	require.Error(t, s.Ping(context.Background()))
}
