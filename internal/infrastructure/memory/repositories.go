package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type stockRepo struct{ v *view[inventory.Stock] }

func (r stockRepo) Get(_ context.Context, productID string) (*inventory.Stock, error) {
	s, ok := r.v.get(productID)
	if !ok {
		return nil, inventory.ErrNotFound
	}
	return s, nil
}

func (r stockRepo) Create(_ context.Context, s *inventory.Stock) error {
	if s == nil || s.ProductID == "" {
		return fmt.Errorf("stock repository: product id is required")
	}
	if !r.v.insert(s.ProductID, s) {
		return fmt.Errorf("stock repository: %s already exists", s.ProductID)
	}
	return nil
}

func (r stockRepo) Update(_ context.Context, s *inventory.Stock) error {
	found, ok := r.v.update(s.ProductID, s)
	if !found {
		return inventory.ErrNotFound
	}
	if !ok {
		return inventory.ErrVersionMismatch
	}
	return nil
}

type cartRepo struct{ v *view[cart.Cart] }

func (r cartRepo) GetByOwner(_ context.Context, ownerID string) (*cart.Cart, error) {
	c, ok := r.v.get(ownerID)
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (r cartRepo) Insert(_ context.Context, c *cart.Cart) error {
	if c == nil || c.OwnerID == "" {
		return cart.ErrInvalidOwner
	}
	if !r.v.insert(c.OwnerID, c) {
		return cart.ErrConflict
	}
	return nil
}

func (r cartRepo) Update(_ context.Context, c *cart.Cart) error {
	found, ok := r.v.update(c.OwnerID, c)
	if !found {
		return cart.ErrNotFound
	}
	if !ok {
		return cart.ErrConflict
	}
	return nil
}

type orderRepo struct{ v *view[order.Order] }

func (r orderRepo) Insert(_ context.Context, o *order.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if !r.v.insert(o.ID, o) {
		return order.ErrConflict
	}
	return nil
}

func (r orderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.v.get(id)
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (r orderRepo) ListByOwner(_ context.Context, ownerID string) ([]*order.Order, error) {
	out := r.v.scan(func(o *order.Order) bool { return o.OwnerID == ownerID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r orderRepo) Update(_ context.Context, o *order.Order) error {
	found, ok := r.v.update(o.ID, o)
	if !found {
		return order.ErrNotFound
	}
	if !ok {
		return order.ErrConflict
	}
	return nil
}
