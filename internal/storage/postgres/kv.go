package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/storage/kv"
)

const (
	getEntrySQL = `SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`

	upsertEntrySQL = `INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	deleteEntrySQL = `DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`
)

var _ kv.Store = (*KVStore)(nil)

// KVStore implements kv.Store backed by the kv_entries table. Values must be
// valid JSON since the column is JSONB.
type KVStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewKVStore returns a KVStore scoped to namespace.
func NewKVStore(pool *pgxpool.Pool, namespace string) *KVStore {
	if namespace == "" {
		namespace = "default"
	}
	return &KVStore{pool: pool, namespace: namespace}
}

// Get returns kv.ErrNotFound when no row exists for key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, getEntrySQL, s.namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("getting %q: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, upsertEntrySQL, s.namespace, key, string(value)); err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteEntrySQL, s.namespace, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
