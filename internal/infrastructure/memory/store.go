package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

// Store is an in-process application.UnitOfWork. Transactions stage their writes and
// validate them against committed versions when they commit.
type Store struct {
	mu     sync.RWMutex
	stock  *table[inventory.Stock]
	carts  *table[cart.Cart]
	orders *table[order.Order]
}

func NewStore() *Store {
	return &Store{
		stock: newTable(
			(*inventory.Stock).Clone,
			func(s *inventory.Stock) *int64 { return &s.Version },
		),
		carts: newTable(
			(*cart.Cart).Clone,
			func(c *cart.Cart) *int64 { return &c.Version },
		),
		orders: newTable(
			(*order.Order).Clone,
			func(o *order.Order) *int64 { return &o.Version },
		),
	}
}

var _ application.UnitOfWork = (*Store)(nil)

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		stock:  newView(s, s.stock),
		carts:  newView(s, s.carts),
		orders: newView(s, s.orders),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.stock.validate(); err != nil {
		return fmt.Errorf("%w: stock %s", application.ErrTxConflict, err)
	}
	if err := t.carts.validate(); err != nil {
		return fmt.Errorf("%w: cart %s", application.ErrTxConflict, err)
	}
	if err := t.orders.validate(); err != nil {
		return fmt.Errorf("%w: order %s", application.ErrTxConflict, err)
	}
	t.stock.apply()
	t.carts.apply()
	t.orders.apply()
	return nil
}

type tx struct {
	stock  *view[inventory.Stock]
	carts  *view[cart.Cart]
	orders *view[order.Order]
}

func (t *tx) Stock() inventory.Repository { return stockRepo{v: t.stock} }
func (t *tx) Carts() cart.Repository      { return cartRepo{v: t.carts} }
func (t *tx) Orders() order.Repository    { return orderRepo{v: t.orders} }

// table holds committed rows. It is guarded by Store.mu.
type table[T any] struct {
	rows    map[string]*T
	clone   func(*T) *T
	version func(*T) *int64
}

func newTable[T any](clone func(*T) *T, version func(*T) *int64) *table[T] {
	return &table[T]{rows: make(map[string]*T), clone: clone, version: version}
}

type write[T any] struct {
	row    *T
	base   int64
	insert bool
}

// view is the transaction-local picture of a table: committed rows overlaid with staged writes.
type view[T any] struct {
	store  *Store
	t      *table[T]
	writes map[string]*write[T]
}

func newView[T any](s *Store, t *table[T]) *view[T] {
	return &view[T]{store: s, t: t, writes: make(map[string]*write[T])}
}

func (v *view[T]) get(key string) (*T, bool) {
	if w, ok := v.writes[key]; ok {
		return v.t.clone(w.row), true
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	row, ok := v.t.rows[key]
	if !ok {
		return nil, false
	}
	return v.t.clone(row), true
}

// insert stages a new row. It reports false when key is already taken.
func (v *view[T]) insert(key string, row *T) bool {
	if _, ok := v.get(key); ok {
		return false
	}
	*v.t.version(row) = 0
	v.writes[key] = &write[T]{row: v.t.clone(row), insert: true}
	return true
}

// update stages row if its version matches the current one and bumps the version.
func (v *view[T]) update(key string, row *T) (found, ok bool) {
	var current, base int64
	insert := false
	if w, staged := v.writes[key]; staged {
		current, base, insert = *v.t.version(w.row), w.base, w.insert
	} else {
		v.store.mu.RLock()
		committed, exists := v.t.rows[key]
		if exists {
			current = *v.t.version(committed)
		}
		v.store.mu.RUnlock()
		if !exists {
			return false, false
		}
		base = current
	}
	if *v.t.version(row) != current {
		return true, false
	}
	*v.t.version(row) = current + 1
	v.writes[key] = &write[T]{row: v.t.clone(row), base: base, insert: insert}
	return true, true
}

// validate must run with Store.mu held.
func (v *view[T]) validate() error {
	for key, w := range v.writes {
		committed, exists := v.t.rows[key]
		if w.insert {
			if exists {
				return fmt.Errorf("%s already exists", key)
			}
			continue
		}
		if !exists || *v.t.version(committed) != w.base {
			return fmt.Errorf("%s changed concurrently", key)
		}
	}
	return nil
}

// apply must run with Store.mu held.
func (v *view[T]) apply() {
	for key, w := range v.writes {
		v.t.rows[key] = w.row
	}
}

// scan returns clones of every visible row accepted by keep.
func (v *view[T]) scan(keep func(*T) bool) []*T {
	var out []*T
	v.store.mu.RLock()
	for key, row := range v.t.rows {
		if _, staged := v.writes[key]; staged {
			continue
		}
		if keep(row) {
			out = append(out, v.t.clone(row))
		}
	}
	v.store.mu.RUnlock()
	for _, w := range v.writes {
		if keep(w.row) {
			out = append(out, v.t.clone(w.row))
		}
	}
	return out
}
