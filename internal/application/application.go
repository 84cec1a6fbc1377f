package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

var (
	ErrValidation = errors.New("validation")
	// ErrRepository marks unexpected persistence failures.
	ErrRepository = errors.New("repository failure")
	// ErrTxConflict is returned by UnitOfWork.Do when a concurrent commit invalidated the transaction.
	ErrTxConflict = errors.New("transaction conflict")
	// ErrCommit is returned by UnitOfWork.Do when the final commit could not be persisted.
	ErrCommit = errors.New("commit failed")
	// ErrGuardHeld is returned by CheckoutGuard.Acquire while another holder owns the key.
	ErrGuardHeld = errors.New("operation already in progress")
)

// Tx exposes repositories scoped to one unit of work.
type Tx interface {
	Stock() inventory.Repository
	Carts() cart.Repository
	Orders() order.Repository
}

// CatalogTx is implemented by transactions that read the catalog on their own connection.
// Callers holding such a Tx must read products through it instead of a shared Catalog.
type CatalogTx interface {
	Catalog() catalog.Catalog
}

// CatalogIn returns the catalog bound to tx when it has one, fallback otherwise.
func CatalogIn(tx Tx, fallback catalog.Catalog) catalog.Catalog {
	if ct, ok := tx.(CatalogTx); ok {
		return ct.Catalog()
	}
	return fallback
}

// UnitOfWork runs fn atomically. A nil return commits every write made through tx;
// an error discards them all. Errors from fn are returned unchanged, except lock contention
// reported by the storage engine, which is wrapped with ErrTxConflict.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type IDGenerator interface {
	NewID() string
}

// CheckoutGuard serialises work per key across requests. release must be called exactly once.
type CheckoutGuard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Validation builds an error matching ErrValidation.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// IsRetryable reports whether err came from an optimistic concurrency check.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTxConflict) ||
		errors.Is(err, inventory.ErrConflict) ||
		errors.Is(err, cart.ErrConflict) ||
		errors.Is(err, order.ErrConflict)
}
