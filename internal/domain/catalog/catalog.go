package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("catalog: product not found")

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Catalog is the product lookup owned outside the checkout core.
type Catalog interface {
	ProductExists(ctx context.Context, productID string) (bool, error)
	// CurrentPrice returns ErrProductNotFound for unknown products.
	CurrentPrice(ctx context.Context, productID string) (decimal.Decimal, error)
}

// Listing pairs a product with its opening stock, used to seed a store.
type Listing struct {
	Product Product
	Stock   int
}

// DefaultListings is the demo assortment loaded when seeding is enabled.
func DefaultListings() []Listing {
	return []Listing{
		{Product: Product{ID: "book-go", Name: "The Go Programming Language", Price: decimal.RequireFromString("39.90")}, Stock: 25},
		{Product: Product{ID: "book-ddd", Name: "Domain-Driven Design", Price: decimal.RequireFromString("54.50")}, Stock: 10},
		{Product: Product{ID: "book-sre", Name: "Site Reliability Engineering", Price: decimal.RequireFromString("42.00")}, Stock: 5},
		{Product: Product{ID: "mug-gopher", Name: "Gopher Mug", Price: decimal.RequireFromString("12.99")}, Stock: 1},
	}
}
