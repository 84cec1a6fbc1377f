package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

type orderRepo struct{ t *tx }

func (r orderRepo) Insert(ctx context.Context, o *order.Order) error {
	o.Version = 0
	_, err := r.t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, owner_id, total_amount, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		o.ID, o.OwnerID, o.TotalAmount.String(), string(o.Status), nanos(o.CreatedAt), nanos(o.UpdatedAt),
	)
	if err != nil {
		if isDuplicate(err) {
			return order.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	for i, l := range o.Lines {
		_, err := r.t.tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, quantity, unit_price, seq)
			VALUES (?, ?, ?, ?, ?)`,
			o.ID, l.ProductID, l.Quantity, l.UnitPrice.String(), i,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, total_amount, status, version, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r orderRepo) ListByOwner(ctx context.Context, ownerID string) ([]*order.Order, error) {
	rows, err := r.t.tx.QueryContext(ctx, `
		SELECT id, owner_id, total_amount, status, version, created_at, updated_at
		FROM orders WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	rows.Close()

	for _, o := range out {
		if err := r.loadLines(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r orderRepo) Update(ctx context.Context, o *order.Order) error {
	result, err := r.t.tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(o.Status), nanos(o.UpdatedAt), o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if rows == 0 {
		var exists int
		err := r.t.tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, o.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return order.ErrNotFound
		}
		return order.ErrConflict
	}
	o.Version++
	return nil
}

func (r orderRepo) loadLines(ctx context.Context, o *order.Order) error {
	rows, err := r.t.tx.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price FROM order_lines
		WHERE order_id = ? ORDER BY seq`, o.ID)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l     order.Line
			price string
		)
		if err := rows.Scan(&l.ProductID, &l.Quantity, &price); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("parse unit price %q: %w", price, err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order lines: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*order.Order, error) {
	var (
		o                order.Order
		total, status    string
		created, updated int64
	)
	if err := s.Scan(&o.ID, &o.OwnerID, &total, &status, &o.Version, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	o.TotalAmount = amount
	o.Status = order.Status(status)
	o.CreatedAt, o.UpdatedAt = fromNanos(created), fromNanos(updated)
	return &o, nil
}
