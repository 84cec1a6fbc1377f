package cart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appinv "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	cartService = "cart-service"

	useCaseGet        = "cart.get"
	useCaseAddItem    = "cart.add_item"
	useCaseUpdateItem = "cart.update_item"
	useCaseRemoveItem = "cart.remove_item"
	useCaseClear      = "cart.clear"
	useCaseItemCount  = "cart.item_count"

	// maxAttempts bounds retries when two requests of the same owner race on the cart row.
	maxAttempts = 3
)

// Service runs the cart operations of one owner. Stock checks are advisory: carts never hold reservations.
type Service struct {
	uow    application.UnitOfWork
	ids    application.IDGenerator
	ledger appinv.LedgerConfig
	inst   *application.Instrument
}

func NewService(uow application.UnitOfWork, ids application.IDGenerator, ledger appinv.LedgerConfig, tel observability.Observability) *Service {
	return &Service{
		uow:    uow,
		ids:    ids,
		ledger: ledger,
		inst:   application.NewInstrument(tel, cartService),
	}
}

// Get returns the owner's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, ownerID string) (_ *domcart.Cart, err error) {
	ctx, run := s.inst.Start(ctx, useCaseGet, "GetCart", attribute.String("cart.owner_id", ownerID))
	defer func() { run.End(ctx, err) }()

	if ownerID == "" {
		run.Fail("OWNER_ID_REQUIRED")
		return nil, application.Validation("owner id is required")
	}

	var out *domcart.Cart
	err = s.mutate(ctx, run, func(ctx context.Context, tx application.Tx) error {
		c, err := loadOrCreate(ctx, tx, s.ids, ownerID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddItem merges quantity into the owner's line for productID. The merged total must fit current stock.
func (s *Service) AddItem(ctx context.Context, ownerID, productID string, quantity int) (_ *domcart.Cart, err error) {
	ctx, run := s.inst.Start(ctx, useCaseAddItem, "AddCartItem",
		attribute.String("cart.owner_id", ownerID),
		attribute.String("product.id", productID),
		attribute.Int("cart.quantity", quantity),
	)
	defer func() { run.End(ctx, err) }()

	if err := validateLine(run, ownerID, productID, quantity); err != nil {
		return nil, err
	}

	var out *domcart.Cart
	err = s.mutate(ctx, run, func(ctx context.Context, tx application.Tx) error {
		ledger := appinv.NewLedger(tx.Stock(), s.ledger)
		available, err := ledger.CurrentQty(ctx, productID)
		if err != nil {
			return err
		}
		c, err := loadOrCreate(ctx, tx, s.ids, ownerID)
		if err != nil {
			return err
		}
		existing, _ := c.QuantityOf(productID)
		if quantity > available-existing {
			return shortage(productID, available, saturatingAdd(existing, quantity))
		}
		if err := c.Add(productID, quantity); err != nil {
			return err
		}
		if err := tx.Carts().Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateItem sets the quantity of an existing line. The new quantity must fit current stock.
func (s *Service) UpdateItem(ctx context.Context, ownerID, productID string, quantity int) (_ *domcart.Cart, err error) {
	ctx, run := s.inst.Start(ctx, useCaseUpdateItem, "UpdateCartItem",
		attribute.String("cart.owner_id", ownerID),
		attribute.String("product.id", productID),
		attribute.Int("cart.quantity", quantity),
	)
	defer func() { run.End(ctx, err) }()

	if err := validateLine(run, ownerID, productID, quantity); err != nil {
		return nil, err
	}

	var out *domcart.Cart
	err = s.mutate(ctx, run, func(ctx context.Context, tx application.Tx) error {
		c, err := loadOrCreate(ctx, tx, s.ids, ownerID)
		if err != nil {
			return err
		}
		if _, ok := c.QuantityOf(productID); !ok {
			return domcart.ErrItemNotFound
		}
		available, err := appinv.NewLedger(tx.Stock(), s.ledger).CurrentQty(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > available {
			return shortage(productID, available, quantity)
		}
		if err := c.SetQuantity(productID, quantity); err != nil {
			return err
		}
		if err := tx.Carts().Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem deletes the line for productID. Stock is not touched.
func (s *Service) RemoveItem(ctx context.Context, ownerID, productID string) (_ *domcart.Cart, err error) {
	ctx, run := s.inst.Start(ctx, useCaseRemoveItem, "RemoveCartItem",
		attribute.String("cart.owner_id", ownerID),
		attribute.String("product.id", productID),
	)
	defer func() { run.End(ctx, err) }()

	if ownerID == "" {
		run.Fail("OWNER_ID_REQUIRED")
		return nil, application.Validation("owner id is required")
	}
	if productID == "" {
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, application.Validation("product id is required")
	}

	var out *domcart.Cart
	err = s.mutate(ctx, run, func(ctx context.Context, tx application.Tx) error {
		c, err := loadOrCreate(ctx, tx, s.ids, ownerID)
		if err != nil {
			return err
		}
		if err := c.Remove(productID); err != nil {
			return err
		}
		if err := tx.Carts().Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear deletes every line of the owner's cart.
func (s *Service) Clear(ctx context.Context, ownerID string) (err error) {
	ctx, run := s.inst.Start(ctx, useCaseClear, "ClearCart", attribute.String("cart.owner_id", ownerID))
	defer func() { run.End(ctx, err) }()

	if ownerID == "" {
		run.Fail("OWNER_ID_REQUIRED")
		return application.Validation("owner id is required")
	}

	return s.mutate(ctx, run, func(ctx context.Context, tx application.Tx) error {
		c, err := tx.Carts().GetByOwner(ctx, ownerID)
		if errors.Is(err, domcart.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return nil
		}
		c.Clear()
		return tx.Carts().Update(ctx, c)
	})
}

// ItemCount sums the quantities in the owner's cart. A missing cart counts as zero.
func (s *Service) ItemCount(ctx context.Context, ownerID string) (_ int, err error) {
	ctx, run := s.inst.Start(ctx, useCaseItemCount, "CartItemCount", attribute.String("cart.owner_id", ownerID))
	defer func() { run.End(ctx, err) }()

	if ownerID == "" {
		run.Fail("OWNER_ID_REQUIRED")
		return 0, application.Validation("owner id is required")
	}

	count := 0
	err = s.uow.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		c, err := tx.Carts().GetByOwner(ctx, ownerID)
		if errors.Is(err, domcart.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		count = c.ItemCount()
		return nil
	})
	if err != nil {
		run.Fail("REPO_READ_FAILED")
		return 0, fmt.Errorf("%w: %w", application.ErrRepository, err)
	}
	return count, nil
}

// mutate runs fn in a unit of work, retrying when a concurrent request of the same owner won the race.
func (s *Service) mutate(ctx context.Context, run *application.Run, fn func(context.Context, application.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if cerr := run.CheckContext(ctx); cerr != nil {
			return cerr
		}
		err = s.uow.Do(ctx, fn)
		if err == nil || !application.IsRetryable(err) {
			break
		}
		run.Logger().Debug("cart_retry", observability.F("attempt", attempt))
	}
	if err != nil {
		run.Fail(statusFor(err))
		return classify(err)
	}
	return nil
}

func loadOrCreate(ctx context.Context, tx application.Tx, ids application.IDGenerator, ownerID string) (*domcart.Cart, error) {
	c, err := tx.Carts().GetByOwner(ctx, ownerID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domcart.ErrNotFound) {
		return nil, err
	}
	c, err = domcart.New(ids.NewID(), ownerID)
	if err != nil {
		return nil, err
	}
	if err := tx.Carts().Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func validateLine(run *application.Run, ownerID, productID string, quantity int) error {
	switch {
	case ownerID == "":
		run.Fail("OWNER_ID_REQUIRED")
		return application.Validation("owner id is required")
	case productID == "":
		run.Fail("PRODUCT_ID_REQUIRED")
		return application.Validation("product id is required")
	case quantity < 1:
		run.Fail("QUANTITY_INVALID")
		return application.Validation("quantity must be at least 1")
	}
	return nil
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func shortage(productID string, available, requested int) error {
	return &dominv.InsufficientStockError{Shortages: []dominv.Shortage{{
		ProductID: productID,
		Available: available,
		Requested: requested,
	}}}
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, domcart.ErrItemNotFound):
		return "ITEM_NOT_FOUND"
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domcart.ErrInvalidQuantity):
		return "QUANTITY_INVALID"
	case application.IsRetryable(err):
		return "CONFLICT"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "REPO_FAILED"
	}
}

// classify keeps domain errors visible to callers and hides infrastructure failures behind ErrRepository.
func classify(err error) error {
	switch {
	case errors.Is(err, dominv.ErrNotFound),
		errors.Is(err, domcart.ErrItemNotFound),
		errors.Is(err, dominv.ErrInsufficientStock),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, domcart.ErrConflict):
		return err
	case application.IsRetryable(err):
		return fmt.Errorf("%w: %w", domcart.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", application.ErrRepository, err)
	}
}
