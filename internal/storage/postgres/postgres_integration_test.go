//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/storage/kv"
)

// startPostgres runs a throwaway PostgreSQL container and returns a migrated
// pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// The schema is idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	t.Run("kv", func(t *testing.T) {
		s := NewKVStore(pool, "user-1")
		other := NewKVStore(pool, "user-2")

		_, err := s.Get(ctx, kv.KeyCart)
		require.ErrorIs(t, err, kv.ErrNotFound)

		require.NoError(t, s.Set(ctx, kv.KeyCart, []byte(`[{"productId":"p1","quantity":2}]`)))
		require.NoError(t, s.Set(ctx, kv.KeyCart, []byte(`[{"productId":"p1","quantity":3}]`)))

		var items []cart.LineItem
		found, err := kv.GetJSON(ctx, s, kv.KeyCart, &items)
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, items, 1)
		assert.Equal(t, 3, items[0].Quantity)

		_, err = other.Get(ctx, kv.KeyCart)
		require.ErrorIs(t, err, kv.ErrNotFound)

		require.NoError(t, s.Delete(ctx, kv.KeyCart))
		require.NoError(t, s.Delete(ctx, kv.KeyCart))
		_, err = s.Get(ctx, kv.KeyCart)
		require.ErrorIs(t, err, kv.ErrNotFound)

		require.NoError(t, s.Ping(ctx))
	})

	t.Run("receipts", func(t *testing.T) {
		s := NewReceiptStore(pool, "user-1")
		items := []cart.LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("40.00"), Selected: true},
		}

		require.NoError(t, s.RecordReceipt(ctx, checkout.Receipt{
			OrderID: "o-1",
			Total:   decimal.RequireFromString("86.005"),
			Items:   items,
		}))
		require.NoError(t, s.RecordReceipt(ctx, checkout.Receipt{OrderID: "o-1", Total: decimal.NewFromInt(1)}))
		require.NoError(t, s.RecordReceipt(ctx, checkout.Receipt{OrderID: "o-2", Total: decimal.NewFromInt(5)}))

		got, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)

		var first checkout.Receipt
		for _, r := range got {
			if r.OrderID == "o-1" {
				first = r
			}
		}
		assert.Equal(t, "86.01", first.Total.StringFixed(2))
		require.Len(t, first.Items, 1)
		assert.Equal(t, "p1", first.Items[0].ProductID)
		assert.False(t, first.PlacedAt.IsZero())

		empty, err := NewReceiptStore(pool, "user-2").Recent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
