package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
)

const (
	insertReceiptSQL = `INSERT INTO order_receipts (order_id, namespace, total, items)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (order_id) DO NOTHING`

	recentReceiptsSQL = `SELECT order_id, total, items, created_at FROM order_receipts
		WHERE namespace = $1
		ORDER BY created_at DESC
		LIMIT $2`
)

var _ checkout.ReceiptRecorder = (*ReceiptStore)(nil)

// ReceiptStore keeps a local log of completed orders.
type ReceiptStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewReceiptStore returns a ReceiptStore scoped to namespace.
func NewReceiptStore(pool *pgxpool.Pool, namespace string) *ReceiptStore {
	if namespace == "" {
		namespace = "default"
	}
	return &ReceiptStore{pool: pool, namespace: namespace}
}

// RecordReceipt stores r. Recording the same order twice is a no-op.
func (s *ReceiptStore) RecordReceipt(ctx context.Context, r checkout.Receipt) error {
	items := r.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding receipt items: %w", err)
	}
	if _, err := s.pool.Exec(ctx, insertReceiptSQL, r.OrderID, s.namespace, r.Total, string(data)); err != nil {
		return fmt.Errorf("inserting receipt %s: %w", r.OrderID, err)
	}
	return nil
}

// Recent returns up to limit receipts, newest first.
func (s *ReceiptStore) Recent(ctx context.Context, limit int) ([]checkout.Receipt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, recentReceiptsSQL, s.namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	defer rows.Close()

	var out []checkout.Receipt
	for rows.Next() {
		var (
			r     checkout.Receipt
			items []byte
		)
		if err := rows.Scan(&r.OrderID, &r.Total, &items, &r.PlacedAt); err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		if err := json.Unmarshal(items, &r.Items); err != nil {
			return nil, fmt.Errorf("decoding receipt %s items: %w", r.OrderID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating receipts: %w", err)
	}
	return out, nil
}
