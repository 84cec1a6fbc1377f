package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// Catalog is an in-process product list.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
}

func NewCatalog() *Catalog {
	return &Catalog{products: make(map[string]catalog.Product)}
}

var _ catalog.Catalog = (*Catalog)(nil)

func (c *Catalog) Put(p catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// SetPrice changes the live price of a product. Orders already placed keep their captured price.
func (c *Catalog) SetPrice(productID string, price decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Price = price
	c.products[productID] = p
	return nil
}

func (c *Catalog) ProductExists(_ context.Context, productID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.products[productID]
	return ok, nil
}

func (c *Catalog) CurrentPrice(_ context.Context, productID string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return decimal.Zero, catalog.ErrProductNotFound
	}
	return p.Price, nil
}

func (c *Catalog) List() []catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]catalog.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
