package order

import "context"

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	// Get returns ErrNotFound when no order has the given id.
	Get(ctx context.Context, id string) (*Order, error)
	// ListByOwner returns the owner's orders, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Order, error)
	// Update persists the status if the stored version still equals o.Version and bumps
	// o.Version on success. A stale version yields ErrConflict.
	Update(ctx context.Context, o *Order) error
}
