package inventory

import "context"

type Repository interface {
	// Get returns ErrNotFound when no stock row exists for productID.
	Get(ctx context.Context, productID string) (*Stock, error)
	Create(ctx context.Context, stock *Stock) error
	// Update persists stock if the stored version still equals stock.Version and bumps
	// stock.Version on success. A stale version yields ErrVersionMismatch.
	Update(ctx context.Context, stock *Stock) error
}
