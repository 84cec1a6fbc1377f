package cart

import (
	"errors"
	"math"
	"testing"
)

func newCart(t *testing.T) *Cart {
	t.Helper()
	c, err := New("cart-1", "owner-1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestCart_AddMergesSameProduct(t *testing.T) {
	c := newCart(t)
	if err := c.Add("P1", 2); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.Add("P2", 1); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.Add("P1", 3); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(c.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines))
	}
	if qty, _ := c.QuantityOf("P1"); qty != 5 {
		t.Errorf("P1 quantity = %d, want 5", qty)
	}
	if c.ItemCount() != 6 {
		t.Errorf("ItemCount = %d, want 6", c.ItemCount())
	}
}

func TestCart_RejectsNonPositiveQuantity(t *testing.T) {
	c := newCart(t)
	if err := c.Add("P1", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Add(0) err = %v", err)
	}
	_ = c.Add("P1", 1)
	if err := c.SetQuantity("P1", -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("SetQuantity(-1) err = %v", err)
	}
}

func TestCart_AddRejectsOverflowingMerge(t *testing.T) {
	c := newCart(t)
	_ = c.Add("P1", 2)
	if err := c.Add("P1", math.MaxInt); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("Add(MaxInt) err = %v", err)
	}
	if qty, _ := c.QuantityOf("P1"); qty != 2 {
		t.Errorf("P1 quantity = %d, want 2", qty)
	}
}

func TestCart_MissingLine(t *testing.T) {
	c := newCart(t)
	if err := c.SetQuantity("P9", 1); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("SetQuantity err = %v", err)
	}
	if err := c.Remove("P9"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Remove err = %v", err)
	}
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := newCart(t)
	_ = c.Add("P1", 1)
	_ = c.Add("P2", 1)
	_ = c.Add("P3", 1)

	if err := c.Remove("P2"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	got := c.Snapshot()
	if len(got) != 2 || got[0].ProductID != "P1" || got[1].ProductID != "P3" {
		t.Errorf("lines after remove = %+v", got)
	}

	c.Clear()
	if !c.IsEmpty() {
		t.Error("expected empty cart after Clear")
	}
}

func TestCart_CloneIsIndependent(t *testing.T) {
	c := newCart(t)
	_ = c.Add("P1", 1)

	clone := c.Clone()
	_ = clone.SetQuantity("P1", 4)

	if qty, _ := c.QuantityOf("P1"); qty != 1 {
		t.Errorf("original mutated through clone: %d", qty)
	}
}

func TestNew_RequiresOwner(t *testing.T) {
	if _, err := New("cart-1", ""); !errors.Is(err, ErrInvalidOwner) {
		t.Errorf("expected ErrInvalidOwner, got %v", err)
	}
}
