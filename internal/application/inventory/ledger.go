package inventory

import (
	"context"
	"errors"
	"fmt"

	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

// DefaultMaxAttempts bounds the read/compare-and-swap loop of a single stock mutation.
const DefaultMaxAttempts = 3

type LedgerConfig struct {
	// MaxAttempts is the number of read/CAS rounds before giving up with ErrConflict.
	MaxAttempts int
	// Retries counts stock_reserve_retries_total{outcome}.
	Retries observability.Counter
}

// Reservation records stock taken for one line.
type Reservation struct {
	ProductID string
	Quantity  int
	// Version is the stock version written by the reservation.
	Version int64
}

// Ledger owns reserve and restore of per-product stock on top of a versioned repository.
// A Ledger is bound to the repository it was built with, usually one unit of work.
type Ledger struct {
	repo        dominv.Repository
	maxAttempts int
	retries     observability.Counter
}

func NewLedger(repo dominv.Repository, cfg LedgerConfig) *Ledger {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retries == nil {
		cfg.Retries = observability.NopCounter()
	}
	return &Ledger{repo: repo, maxAttempts: cfg.MaxAttempts, retries: cfg.Retries}
}

// TryReserve decrements available stock by quantity. Insufficient stock fails with
// *dominv.InsufficientStockError and leaves the row untouched.
func (l *Ledger) TryReserve(ctx context.Context, productID string, quantity int) (Reservation, error) {
	var res Reservation
	err := l.mutate(ctx, productID, func(s *dominv.Stock) error {
		if err := s.Reserve(quantity); err != nil {
			return err
		}
		res = Reservation{ProductID: productID, Quantity: quantity}
		return nil
	}, func(s *dominv.Stock) {
		res.Version = s.Version
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Restore adds quantity back to the product's stock.
func (l *Ledger) Restore(ctx context.Context, productID string, quantity int) error {
	return l.mutate(ctx, productID, func(s *dominv.Stock) error {
		return s.Restore(quantity)
	}, nil)
}

func (l *Ledger) Exists(ctx context.Context, productID string) (bool, error) {
	_, err := l.repo.Get(ctx, productID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, dominv.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CurrentQty reads the available quantity without locking. The value is advisory only.
func (l *Ledger) CurrentQty(ctx context.Context, productID string) (int, error) {
	s, err := l.repo.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return s.Available, nil
}

func (l *Ledger) mutate(ctx context.Context, productID string, apply func(*dominv.Stock) error, done func(*dominv.Stock)) error {
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := l.repo.Get(ctx, productID)
		if err != nil {
			return err
		}
		if err := apply(s); err != nil {
			return err
		}
		err = l.repo.Update(ctx, s)
		if err == nil {
			if attempt > 1 {
				l.retries.Add(1, observability.L("outcome", "recovered"))
			}
			if done != nil {
				done(s)
			}
			return nil
		}
		if !errors.Is(err, dominv.ErrVersionMismatch) {
			return err
		}
		l.retries.Add(1, observability.L("outcome", "retry"))
	}
	l.retries.Add(1, observability.L("outcome", "exhausted"))
	return fmt.Errorf("%w: %s after %d attempts", dominv.ErrConflict, productID, l.maxAttempts)
}
