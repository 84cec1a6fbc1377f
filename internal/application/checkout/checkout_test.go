package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("id-%d", s.n.Add(1)) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e outbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	store   application.UnitOfWork
	catalog *memory.Catalog
	pub     *recordingPublisher
	uc      *UseCase
}

func newFixture(t *testing.T, stock map[string]int) *fixture {
	t.Helper()
	store, cat := memory.NewStore(), memory.NewCatalog()
	if err := memory.Seed(context.Background(), store, cat, listingsOf(stock)); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	f := &fixture{store: store, catalog: cat, pub: &recordingPublisher{}}
	f.uc = New(Deps{
		UnitOfWork: store,
		Catalog:    cat,
		IDs:        &seqIDs{},
		Guard:      memory.NewGuard(),
		Publisher:  f.pub,
	}, nil)
	return f
}

func listingsOf(stock map[string]int) []catalog.Listing {
	var listings []catalog.Listing
	for id, qty := range stock {
		listings = append(listings, catalog.Listing{
			Product: catalog.Product{ID: id, Name: id, Price: decimal.RequireFromString("9.99")},
			Stock:   qty,
		})
	}
	return listings
}

// putCart writes cart lines directly, bypassing the advisory stock checks of the cart service.
func (f *fixture) putCart(t *testing.T, ownerID string, lines ...domcart.Line) {
	t.Helper()
	err := f.store.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		c, err := domcart.New("cart-"+ownerID, ownerID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if err := c.Add(l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		return tx.Carts().Insert(ctx, c)
	})
	if err != nil {
		t.Fatalf("putCart failed: %v", err)
	}
}

func (f *fixture) available(t *testing.T, productID string) int {
	t.Helper()
	var qty int
	err := f.store.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		s, err := tx.Stock().Get(ctx, productID)
		if err != nil {
			return err
		}
		qty = s.Available
		return nil
	})
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return qty
}

func (f *fixture) cartLines(t *testing.T, ownerID string) []domcart.Line {
	t.Helper()
	var lines []domcart.Line
	err := f.store.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		c, err := tx.Carts().GetByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		lines = c.Snapshot()
		return nil
	})
	if err != nil {
		t.Fatalf("read cart: %v", err)
	}
	return lines
}

func TestCheckout_ReportsOnlyShortLines(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 5, "P2": 0})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 2}, domcart.Line{ProductID: "P2", Quantity: 1})

	_, err := f.uc.Execute(context.Background(), Input{OwnerID: "alice"})

	var ise *dominv.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	want := dominv.Shortage{ProductID: "P2", Available: 0, Requested: 1}
	if len(ise.Shortages) != 1 || ise.Shortages[0] != want {
		t.Errorf("shortages = %+v, want [%+v]", ise.Shortages, want)
	}
	if got := f.available(t, "P1"); got != 5 {
		t.Errorf("P1 available = %d, want 5", got)
	}
	if lines := f.cartLines(t, "alice"); len(lines) != 2 {
		t.Errorf("cart lines = %+v, want unchanged", lines)
	}
	if len(f.pub.names()) != 0 {
		t.Errorf("unexpected events: %v", f.pub.names())
	}
}

func TestCheckout_CollectsEveryShortage(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 1, "P2": 0})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 3}, domcart.Line{ProductID: "P2", Quantity: 2})

	_, err := f.uc.Execute(context.Background(), Input{OwnerID: "alice"})

	var ise *dominv.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(ise.Shortages) != 2 {
		t.Errorf("shortages = %+v, want 2 entries", ise.Shortages)
	}
}

func TestCheckout_SucceedsAndEmptiesCart(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 2})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 2})

	o, err := f.uc.Execute(context.Background(), Input{OwnerID: "alice"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if o.Status != domorder.StatusPending {
		t.Errorf("Status = %s, want pending", o.Status)
	}
	if len(o.Lines) != 1 || o.Lines[0].ProductID != "P1" || o.Lines[0].Quantity != 2 {
		t.Fatalf("lines = %+v", o.Lines)
	}
	if !o.Lines[0].UnitPrice.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("UnitPrice = %s, want 9.99", o.Lines[0].UnitPrice)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("19.98")) {
		t.Errorf("TotalAmount = %s, want 19.98", o.TotalAmount)
	}
	if got := f.available(t, "P1"); got != 0 {
		t.Errorf("P1 available = %d, want 0", got)
	}
	if lines := f.cartLines(t, "alice"); len(lines) != 0 {
		t.Errorf("cart lines = %+v, want empty", lines)
	}
	if names := f.pub.names(); len(names) != 2 || names[0] != "order.placed" || names[1] != "inventory.reserved" {
		t.Errorf("events = %v", names)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 2})

	if _, err := f.uc.Execute(context.Background(), Input{OwnerID: "nobody"}); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("missing cart: err = %v", err)
	}

	f.putCart(t, "alice")
	if _, err := f.uc.Execute(context.Background(), Input{OwnerID: "alice"}); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("empty cart: err = %v", err)
	}
}

func TestCheckout_RequiresOwner(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.uc.Execute(context.Background(), Input{}); !errors.Is(err, application.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCheckout_LastUnitGoesToExactlyOneShopper(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 1})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 1})
	f.putCart(t, "bob", domcart.Line{ProductID: "P1", Quantity: 1})

	var g errgroup.Group
	errs := make([]error, 2)
	for i, owner := range []string{"alice", "bob"} {
		g.Go(func() error {
			_, errs[i] = f.uc.Execute(context.Background(), Input{OwnerID: owner})
			return nil
		})
	}
	_ = g.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, dominv.ErrInsufficientStock), errors.Is(err, dominv.ErrConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want 1 (errs %v)", successes, errs)
	}
	if got := f.available(t, "P1"); got != 0 {
		t.Errorf("P1 available = %d, want 0", got)
	}
}

func TestCheckout_NoOversellUnderContention(t *testing.T) {
	const stock, shoppers = 5, 20
	f := newFixture(t, map[string]int{"P1": stock})
	for i := 0; i < shoppers; i++ {
		f.putCart(t, fmt.Sprintf("owner-%d", i), domcart.Line{ProductID: "P1", Quantity: 1})
	}

	var g errgroup.Group
	var sold atomic.Int64
	for i := 0; i < shoppers; i++ {
		g.Go(func() error {
			o, err := f.uc.Execute(context.Background(), Input{OwnerID: fmt.Sprintf("owner-%d", i)})
			if err == nil {
				sold.Add(int64(o.Lines[0].Quantity))
			}
			return nil
		})
	}
	_ = g.Wait()

	if sold.Load() > stock {
		t.Fatalf("sold %d units from stock of %d", sold.Load(), stock)
	}
	if got := f.available(t, "P1"); int64(got) != stock-sold.Load() {
		t.Errorf("available = %d, want %d", got, stock-sold.Load())
	}
}

func TestCheckout_PriceIsFrozenAtPurchase(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 3})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 3})

	o, err := f.uc.Execute(context.Background(), Input{OwnerID: "alice"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := f.catalog.SetPrice("P1", decimal.RequireFromString("100")); err != nil {
		t.Fatalf("SetPrice failed: %v", err)
	}

	var stored *domorder.Order
	_ = f.store.Do(context.Background(), func(ctx context.Context, tx application.Tx) error {
		stored, err = tx.Orders().Get(ctx, o.ID)
		return err
	})
	if stored == nil {
		t.Fatalf("order not found: %v", err)
	}
	if !stored.Lines[0].UnitPrice.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("UnitPrice = %s, want 9.99", stored.Lines[0].UnitPrice)
	}
	if !stored.TotalAmount.Equal(decimal.RequireFromString("29.97")) {
		t.Errorf("TotalAmount = %s, want 29.97", stored.TotalAmount)
	}
}

// faultyUoW runs the real store but can break order inserts or the final commit.
type faultyUoW struct {
	inner        application.UnitOfWork
	insertErr    error
	commitErr    error
	insertCalled bool
}

type faultyTx struct {
	application.Tx
	uow *faultyUoW
}

type faultyOrders struct {
	domorder.Repository
	uow *faultyUoW
}

func (t faultyTx) Orders() domorder.Repository {
	return faultyOrders{Repository: t.Tx.Orders(), uow: t.uow}
}

func (r faultyOrders) Insert(ctx context.Context, o *domorder.Order) error {
	r.uow.insertCalled = true
	if r.uow.insertErr != nil {
		return r.uow.insertErr
	}
	return r.Repository.Insert(ctx, o)
}

var errForcedRollback = errors.New("forced rollback")

func (u *faultyUoW) Do(ctx context.Context, fn func(context.Context, application.Tx) error) error {
	err := u.inner.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		if err := fn(ctx, faultyTx{Tx: tx, uow: u}); err != nil {
			return err
		}
		if u.commitErr != nil {
			return errForcedRollback
		}
		return nil
	})
	if errors.Is(err, errForcedRollback) {
		return fmt.Errorf("%w: %w", application.ErrCommit, u.commitErr)
	}
	return err
}

func TestCheckout_FailureAfterReservationLeavesNoTrace(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 5, "P2": 5})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 2}, domcart.Line{ProductID: "P2", Quantity: 1})
	uow := &faultyUoW{inner: f.store, insertErr: errors.New("disk full")}
	uc := New(Deps{UnitOfWork: uow, Catalog: f.catalog, IDs: &seqIDs{}}, nil)

	_, err := uc.Execute(context.Background(), Input{OwnerID: "alice"})
	if !errors.Is(err, application.ErrRepository) {
		t.Fatalf("expected ErrRepository, got %v", err)
	}
	if !uow.insertCalled {
		t.Fatal("expected failure to happen after reservation")
	}
	if got := f.available(t, "P1"); got != 5 {
		t.Errorf("P1 available = %d, want 5", got)
	}
	if got := f.available(t, "P2"); got != 5 {
		t.Errorf("P2 available = %d, want 5", got)
	}
	if lines := f.cartLines(t, "alice"); len(lines) != 2 {
		t.Errorf("cart lines = %+v, want unchanged", lines)
	}
}

func TestCheckout_CommitFailureIsCheckoutFailed(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 5})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 2})
	uow := &faultyUoW{inner: f.store, commitErr: errors.New("connection reset")}
	uc := New(Deps{UnitOfWork: uow, Catalog: f.catalog, IDs: &seqIDs{}}, nil)

	_, err := uc.Execute(context.Background(), Input{OwnerID: "alice"})
	if !errors.Is(err, ErrCheckoutFailed) {
		t.Fatalf("expected ErrCheckoutFailed, got %v", err)
	}
	if got := f.available(t, "P1"); got != 5 {
		t.Errorf("P1 available = %d, want 5", got)
	}
	if lines := f.cartLines(t, "alice"); len(lines) != 1 {
		t.Errorf("cart lines = %+v, want unchanged", lines)
	}
}

// lockOrderUoW records the order in which stock rows are written.
type lockOrderUoW struct {
	inner application.UnitOfWork
	mu    sync.Mutex
	order []string
}

type lockOrderTx struct {
	application.Tx
	uow *lockOrderUoW
}

type lockOrderStock struct {
	dominv.Repository
	uow *lockOrderUoW
}

func (t lockOrderTx) Stock() dominv.Repository {
	return lockOrderStock{Repository: t.Tx.Stock(), uow: t.uow}
}

func (r lockOrderStock) Update(ctx context.Context, s *dominv.Stock) error {
	r.uow.mu.Lock()
	r.uow.order = append(r.uow.order, s.ProductID)
	r.uow.mu.Unlock()
	return r.Repository.Update(ctx, s)
}

func (u *lockOrderUoW) Do(ctx context.Context, fn func(context.Context, application.Tx) error) error {
	return u.inner.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		return fn(ctx, lockOrderTx{Tx: tx, uow: u})
	})
}

func TestCheckout_ReservesInProductOrder(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 5, "P2": 5, "P3": 5})
	f.putCart(t, "alice",
		domcart.Line{ProductID: "P3", Quantity: 1},
		domcart.Line{ProductID: "P1", Quantity: 1},
		domcart.Line{ProductID: "P2", Quantity: 1},
	)
	uow := &lockOrderUoW{inner: f.store}
	uc := New(Deps{UnitOfWork: uow, Catalog: f.catalog, IDs: &seqIDs{}}, nil)

	o, err := uc.Execute(context.Background(), Input{OwnerID: "alice"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := strings.Join(uow.order, ","); got != "P1,P2,P3" {
		t.Errorf("stock write order = %s, want P1,P2,P3", got)
	}
	if o.Lines[0].ProductID != "P3" {
		t.Errorf("order lines reordered: %+v", o.Lines)
	}
}

type heldGuard struct{}

func (heldGuard) Acquire(context.Context, string) (func(), error) {
	return nil, application.ErrGuardHeld
}

func TestCheckout_GuardRejectsParallelCheckoutOfSameOwner(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 5})
	f.putCart(t, "alice", domcart.Line{ProductID: "P1", Quantity: 1})
	uc := New(Deps{UnitOfWork: f.store, Catalog: f.catalog, IDs: &seqIDs{}, Guard: heldGuard{}}, nil)

	if _, err := uc.Execute(context.Background(), Input{OwnerID: "alice"}); !errors.Is(err, dominv.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := f.available(t, "P1"); got != 5 {
		t.Errorf("P1 available = %d, want 5", got)
	}
}

func TestCheckout_UnknownProduct(t *testing.T) {
	f := newFixture(t, map[string]int{"P1": 5})
	f.putCart(t, "alice", domcart.Line{ProductID: "ghost", Quantity: 1})

	if _, err := f.uc.Execute(context.Background(), Input{OwnerID: "alice"}); !errors.Is(err, catalog.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
