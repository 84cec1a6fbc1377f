package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Catalog reads products from the products table. Store.Catalog reads through the pool;
// the catalog of a unit of work reads on that transaction's connection.
type Catalog struct {
	db querier
}

func (s *Store) Catalog() *Catalog { return &Catalog{db: s.db} }

func (t *tx) Catalog() catalog.Catalog { return &Catalog{db: t.tx} }

var _ application.CatalogTx = (*tx)(nil)

var _ catalog.Catalog = (*Catalog)(nil)

func (c *Catalog) ProductExists(ctx context.Context, productID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, productID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query product: %w", err)
	}
	return true, nil
}

func (c *Catalog) CurrentPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price string
	err := c.db.QueryRowContext(ctx, `SELECT price FROM products WHERE id = ?`, productID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, catalog.ErrProductNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query product price: %w", err)
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", price, err)
	}
	return d, nil
}

// SetPrice changes the live price of a product.
func (c *Catalog) SetPrice(ctx context.Context, productID string, price decimal.Decimal) error {
	result, err := c.db.ExecContext(ctx, `UPDATE products SET price = ? WHERE id = ?`, price.String(), productID)
	if err != nil {
		return fmt.Errorf("update product price: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// Seed inserts listings that are not present yet. Existing products and stock rows are left alone.
func (s *Store) Seed(ctx context.Context, listings []catalog.Listing) error {
	return s.Do(ctx, func(ctx context.Context, t application.Tx) error {
		sqlTx := t.(*tx).tx
		for _, l := range listings {
			var one int
			err := sqlTx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, l.Product.ID).Scan(&one)
			if err == nil {
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("query product: %w", err)
			}
			if _, err := sqlTx.ExecContext(ctx,
				`INSERT INTO products (id, name, price) VALUES (?, ?, ?)`,
				l.Product.ID, l.Product.Name, l.Product.Price.String(),
			); err != nil {
				return fmt.Errorf("insert product: %w", err)
			}
			stock, err := inventory.NewStock(l.Product.ID, l.Stock)
			if err != nil {
				return err
			}
			if err := t.Stock().Create(ctx, stock); err != nil {
				return err
			}
		}
		return nil
	})
}
