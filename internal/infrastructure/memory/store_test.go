package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

func seeded(t *testing.T, stock map[string]int) *Store {
	t.Helper()
	s := NewStore()
	var listings []catalog.Listing
	for id, qty := range stock {
		listings = append(listings, catalog.Listing{Product: catalog.Product{ID: id, Price: decimal.NewFromInt(1)}, Stock: qty})
	}
	if err := Seed(context.Background(), s, NewCatalog(), listings); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return s
}

func available(t *testing.T, s *Store, productID string) int {
	t.Helper()
	var qty int
	err := s.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		st, err := tx.Stock().Get(ctx, productID)
		if err != nil {
			return err
		}
		qty = st.Available
		return nil
	})
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return qty
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := seeded(t, map[string]int{"P1": 5})
	boom := errors.New("boom")

	err := s.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		st, _ := tx.Stock().Get(ctx, "P1")
		_ = st.Reserve(2)
		if err := tx.Stock().Update(ctx, st); err != nil {
			return err
		}
		again, _ := tx.Stock().Get(ctx, "P1")
		if again.Available != 3 {
			t.Errorf("tx should read its own write, got %d", again.Available)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := available(t, s, "P1"); got != 5 {
		t.Errorf("available = %d, want 5", got)
	}
}

func TestStore_StaleVersionIsRejected(t *testing.T) {
	s := seeded(t, map[string]int{"P1": 5})

	err := s.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		st, _ := tx.Stock().Get(ctx, "P1")
		st.Version = 42
		return tx.Stock().Update(ctx, st)
	})
	if !errors.Is(err, inventory.ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestStore_CommitDetectsConcurrentWriter(t *testing.T) {
	s := seeded(t, map[string]int{"P1": 1})

	err := s.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		st, _ := tx.Stock().Get(ctx, "P1")
		if err := st.Reserve(1); err != nil {
			return err
		}
		if err := tx.Stock().Update(ctx, st); err != nil {
			return err
		}
		// Another transaction commits the same row before this one does.
		inner := s.Do(ctx, func(ctx context.Context, other application.Tx) error {
			st, _ := other.Stock().Get(ctx, "P1")
			if err := st.Reserve(1); err != nil {
				return err
			}
			return other.Stock().Update(ctx, st)
		})
		if inner != nil {
			t.Fatalf("inner tx failed: %v", inner)
		}
		return nil
	})
	if !errors.Is(err, application.ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict, got %v", err)
	}
	if got := available(t, s, "P1"); got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

func TestStore_CartInsertThenUpdateInOneTx(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		c, _ := cart.New("c1", "owner-1")
		if err := tx.Carts().Insert(ctx, c); err != nil {
			return err
		}
		_ = c.Add("P1", 2)
		return tx.Carts().Update(ctx, c)
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	_ = s.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		c, err := tx.Carts().GetByOwner(ctx, "owner-1")
		if err != nil {
			t.Fatalf("GetByOwner failed: %v", err)
		}
		if qty, _ := c.QuantityOf("P1"); qty != 2 || c.Version != 1 {
			t.Errorf("cart = %+v", c)
		}
		if err := tx.Carts().Insert(ctx, &cart.Cart{ID: "c2", OwnerID: "owner-1"}); !errors.Is(err, cart.ErrConflict) {
			t.Errorf("second cart for owner: err = %v", err)
		}
		return nil
	})
}

func TestStore_ListOrdersNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	line := []order.Line{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}
	base := time.Now().UTC()

	for i, id := range []string{"o1", "o2", "o3"} {
		o, _ := order.New(id, "owner-1", line)
		o.CreatedAt = base.Add(-time.Duration(i) * time.Minute)
		if err := s.Do(ctx, func(ctx context.Context, tx application.Tx) error { return tx.Orders().Insert(ctx, o) }); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	other, _ := order.New("o4", "owner-2", line)
	_ = s.Do(ctx, func(ctx context.Context, tx application.Tx) error { return tx.Orders().Insert(ctx, other) })

	_ = s.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		got, err := tx.Orders().ListByOwner(ctx, "owner-1")
		if err != nil {
			t.Fatalf("ListByOwner failed: %v", err)
		}
		if len(got) != 3 || got[0].ID != "o1" || got[2].ID != "o3" {
			ids := make([]string, 0, len(got))
			for _, o := range got {
				ids = append(ids, o.ID)
			}
			t.Errorf("order ids = %v, want [o1 o2 o3]", ids)
		}
		return nil
	})
}

func TestGuard_OneHolderPerKey(t *testing.T) {
	g := NewGuard()
	ctx := context.Background()

	release, err := g.Acquire(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := g.Acquire(ctx, "owner-1"); !errors.Is(err, application.ErrGuardHeld) {
		t.Fatalf("expected ErrGuardHeld, got %v", err)
	}
	if r2, err := g.Acquire(ctx, "owner-2"); err != nil {
		t.Fatalf("other key blocked: %v", err)
	} else {
		r2()
	}
	release()
	release()
	if r3, err := g.Acquire(ctx, "owner-1"); err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	} else {
		r3()
	}
}

func TestCatalog_SetPrice(t *testing.T) {
	c := NewCatalog()
	c.Put(catalog.Product{ID: "P1", Price: decimal.NewFromInt(10)})

	if err := c.SetPrice("P1", decimal.NewFromInt(12)); err != nil {
		t.Fatalf("SetPrice failed: %v", err)
	}
	price, err := c.CurrentPrice(context.Background(), "P1")
	if err != nil || !price.Equal(decimal.NewFromInt(12)) {
		t.Errorf("CurrentPrice = %s, %v", price, err)
	}
	if _, err := c.CurrentPrice(context.Background(), "P9"); !errors.Is(err, catalog.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}
