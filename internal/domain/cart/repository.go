package cart

import "context"

type Repository interface {
	// GetByOwner returns ErrNotFound when the owner has no cart yet.
	GetByOwner(ctx context.Context, ownerID string) (*Cart, error)
	Insert(ctx context.Context, c *Cart) error
	// Update replaces the stored lines if the stored version still equals c.Version and bumps
	// c.Version on success. A stale version yields ErrConflict.
	Update(ctx context.Context, c *Cart) error
}
