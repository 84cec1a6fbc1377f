package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

type cartRepo struct{ t *tx }

func (r cartRepo) GetByOwner(ctx context.Context, ownerID string) (*cart.Cart, error) {
	var (
		c                cart.Cart
		created, updated int64
	)
	err := r.t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, version, created_at, updated_at
		FROM carts WHERE owner_id = ?`, ownerID,
	).Scan(&c.ID, &c.OwnerID, &c.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = fromNanos(created), fromNanos(updated)

	rows, err := r.t.tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM cart_lines
		WHERE cart_id = ? ORDER BY seq`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return &c, nil
}

func (r cartRepo) Insert(ctx context.Context, c *cart.Cart) error {
	c.Version = 0
	_, err := r.t.tx.ExecContext(ctx, `
		INSERT INTO carts (id, owner_id, version, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)`,
		c.ID, c.OwnerID, nanos(c.CreatedAt), nanos(c.UpdatedAt),
	)
	if err != nil {
		if isDuplicate(err) {
			return cart.ErrConflict
		}
		return fmt.Errorf("insert cart: %w", err)
	}
	return r.writeLines(ctx, c)
}

func (r cartRepo) Update(ctx context.Context, c *cart.Cart) error {
	result, err := r.t.tx.ExecContext(ctx, `
		UPDATE carts SET version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		nanos(c.UpdatedAt), c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByOwner(ctx, c.OwnerID); errors.Is(err, cart.ErrNotFound) {
			return cart.ErrNotFound
		}
		return cart.ErrConflict
	}
	c.Version++

	if _, err := r.t.tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = ?`, c.ID); err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return r.writeLines(ctx, c)
}

func (r cartRepo) writeLines(ctx context.Context, c *cart.Cart) error {
	for i, l := range c.Lines {
		_, err := r.t.tx.ExecContext(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, quantity, seq)
			VALUES (?, ?, ?, ?)`,
			c.ID, l.ProductID, l.Quantity, i,
		)
		if err != nil {
			return fmt.Errorf("insert cart line: %w", err)
		}
	}
	return nil
}
