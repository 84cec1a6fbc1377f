package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrVersionMismatch is returned by Repository.Update when the stored version moved on.
	ErrVersionMismatch = errors.New("inventory: stock version mismatch")
	// ErrConflict is returned once optimistic retries are exhausted.
	ErrConflict = errors.New("inventory: concurrent update conflict")
)

// Stock is the available quantity of one product. Version is the optimistic concurrency token.
type Stock struct {
	ProductID string
	Available int
	Version   int64
	UpdatedAt time.Time
}

func NewStock(productID string, available int) (*Stock, error) {
	if productID == "" {
		return nil, ErrNotFound
	}
	if available < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Stock{
		ProductID: productID,
		Available: available,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reserve decrements Available by quantity. The record is left untouched on failure.
func (s *Stock) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > s.Available {
		return &InsufficientStockError{Shortages: []Shortage{{
			ProductID: s.ProductID,
			Available: s.Available,
			Requested: quantity,
		}}}
	}
	s.Available -= quantity
	s.touch()
	return nil
}

func (s *Stock) Restore(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	s.Available += quantity
	s.touch()
	return nil
}

func (s *Stock) Clone() *Stock {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *Stock) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Shortage describes one product that cannot cover the requested quantity.
type Shortage struct {
	ProductID string
	Available int
	Requested int
}

func (s Shortage) String() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", s.ProductID, s.Available, s.Requested)
}

// InsufficientStockError lists every product short of stock. It matches ErrInsufficientStock.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, s.String())
	}
	return ErrInsufficientStock.Error() + ": " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
