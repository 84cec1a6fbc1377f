package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

type stockRepo struct{ t *tx }

func (r stockRepo) Get(ctx context.Context, productID string) (*inventory.Stock, error) {
	var (
		s       inventory.Stock
		updated int64
	)
	err := r.t.tx.QueryRowContext(ctx, `
		SELECT product_id, available, version, updated_at
		FROM stock WHERE product_id = ?`, productID,
	).Scan(&s.ProductID, &s.Available, &s.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	s.UpdatedAt = fromNanos(updated)
	return &s, nil
}

func (r stockRepo) Create(ctx context.Context, s *inventory.Stock) error {
	s.Version = 0
	_, err := r.t.tx.ExecContext(ctx, `
		INSERT INTO stock (product_id, available, version, updated_at)
		VALUES (?, ?, 0, ?)`,
		s.ProductID, s.Available, nanos(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert stock: %w", err)
	}
	return nil
}

func (r stockRepo) Update(ctx context.Context, s *inventory.Stock) error {
	result, err := r.t.tx.ExecContext(ctx, `
		UPDATE stock
		SET available = ?, version = version + 1, updated_at = ?
		WHERE product_id = ? AND version = ?`,
		s.Available, nanos(r.t.now()), s.ProductID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, s.ProductID); errors.Is(err, inventory.ErrNotFound) {
			return inventory.ErrNotFound
		}
		return inventory.ErrVersionMismatch
	}
	s.Version++
	return nil
}
