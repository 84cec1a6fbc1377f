package cart

import (
	"errors"
	"math"
	"time"
)

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrItemNotFound    = errors.New("cart: item not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrInvalidOwner    = errors.New("cart: owner id is required")
	// ErrConflict is returned by Repository.Update when the cart changed since it was read.
	ErrConflict = errors.New("cart: concurrent update conflict")
)

type Line struct {
	ProductID string
	Quantity  int
}

// Cart holds one owner's pending lines. Lines keep insertion order and never repeat a product.
type Cart struct {
	ID        string
	OwnerID   string
	Lines     []Line
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, ownerID string) (*Cart, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	now := time.Now().UTC()
	return &Cart{
		ID:        id,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// QuantityOf returns the quantity held for productID and whether a line exists.
func (c *Cart) QuantityOf(productID string) (int, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Lines[i].Quantity, true
	}
	return 0, false
}

// Add merges quantity into the existing line for productID or appends a new one.
func (c *Cart) Add(productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.indexOf(productID); i >= 0 {
		if c.Lines[i].Quantity > math.MaxInt-quantity {
			return ErrInvalidQuantity
		}
		c.Lines[i].Quantity += quantity
	} else {
		c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: quantity})
	}
	c.touch()
	return nil
}

func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i := c.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Lines[i].Quantity = quantity
	c.touch()
	return nil
}

func (c *Cart) Remove(productID string) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.touch()
	return nil
}

func (c *Cart) Clear() {
	c.Lines = nil
	c.touch()
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// ItemCount sums the quantities of all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Snapshot returns a copy of the current lines.
func (c *Cart) Snapshot() []Line {
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = c.Snapshot()
	return &clone
}

func (c *Cart) indexOf(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
