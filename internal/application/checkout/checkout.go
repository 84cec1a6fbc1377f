package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appinv "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService = "checkout-service"
	useCaseCheckout = "checkout.place_order"

	reasonEmptyCart    = "empty_cart"
	reasonInsufficient = "insufficient_stock"
	reasonConflict     = "conflict"
	reasonNotFound     = "product_not_found"
	reasonFailed       = "checkout_failed"
)

var (
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutFailed reports that the final commit could not be persisted. Nothing was changed.
	ErrCheckoutFailed = errors.New("checkout: failed to persist order")
)

type Input struct {
	OwnerID string
}

// UseCase turns an owner's cart into a pending order. Validation, reservation, order creation
// and cart clearing run in one unit of work, so a failure at any step leaves no trace.
type UseCase struct {
	uow       application.UnitOfWork
	catalog   catalog.Catalog
	ids       application.IDGenerator
	guard     application.CheckoutGuard
	publisher outbox.Publisher
	ledger    appinv.LedgerConfig
	inst      *application.Instrument

	rejections observability.Counter // checkout_rejections_total{reason}
}

type Deps struct {
	UnitOfWork application.UnitOfWork
	Catalog    catalog.Catalog
	IDs        application.IDGenerator
	// Guard is optional. When set, one checkout per owner runs at a time.
	Guard     application.CheckoutGuard
	Publisher outbox.Publisher
	Ledger    appinv.LedgerConfig
}

func New(deps Deps, tel observability.Observability) *UseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &UseCase{
		uow:        deps.UnitOfWork,
		catalog:    deps.Catalog,
		ids:        deps.IDs,
		guard:      deps.Guard,
		publisher:  deps.Publisher,
		ledger:     deps.Ledger,
		inst:       application.NewInstrument(tel, checkoutService),
		rejections: tel.Metrics().Counter(observability.MCheckoutRejections),
	}
}

var _ application.UseCase[Input, *domorder.Order] = (*UseCase)(nil)

func (uc *UseCase) Execute(ctx context.Context, in Input) (_ *domorder.Order, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseCheckout, "Checkout", attribute.String("cart.owner_id", in.OwnerID))
	defer func() { run.End(ctx, err) }()

	if in.OwnerID == "" {
		run.Fail("OWNER_ID_REQUIRED")
		return nil, application.Validation("owner id is required")
	}
	if err := run.CheckContext(ctx); err != nil {
		return nil, err
	}

	if uc.guard != nil {
		release, gerr := uc.guard.Acquire(ctx, in.OwnerID)
		if gerr != nil {
			uc.reject(run, reasonConflict, "CHECKOUT_IN_PROGRESS")
			if errors.Is(gerr, application.ErrGuardHeld) {
				return nil, fmt.Errorf("%w: %w", dominv.ErrConflict, gerr)
			}
			return nil, fmt.Errorf("%w: guard: %w", application.ErrRepository, gerr)
		}
		defer release()
	}

	var placed *domorder.Order
	err = uc.uow.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		o, err := uc.place(ctx, run, tx, in.OwnerID)
		if err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, uc.fail(run, err)
	}

	run.Annotate(
		observability.F("order_id", placed.ID),
		observability.F("lines", len(placed.Lines)),
		observability.F("total_amount", placed.TotalAmount.String()),
	)
	run.Span().SetAttributes(
		attribute.String("order.id", placed.ID),
		attribute.String("order.status", string(placed.Status)),
	)

	events := []outbox.Event{domorder.NewOrderPlacedEvent(placed)}
	for _, l := range placed.Lines {
		events = append(events, dominv.NewStockReservedEvent(placed.ID, l.ProductID, l.Quantity))
	}
	run.Publish(ctx, uc.publisher, events...)

	return placed, nil
}

func (uc *UseCase) place(ctx context.Context, run *application.Run, tx application.Tx, ownerID string) (*domorder.Order, error) {
	c, err := tx.Carts().GetByOwner(ctx, ownerID)
	if errors.Is(err, domcart.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	lines := c.Snapshot()
	ledger := appinv.NewLedger(tx.Stock(), uc.ledger)
	products := application.CatalogIn(tx, uc.catalog)

	if err := validate(ctx, products, ledger, lines); err != nil {
		return nil, err
	}

	// Stock rows are locked in product order so two checkouts never wait on each other in a cycle.
	ordered := slices.Clone(lines)
	slices.SortFunc(ordered, func(a, b domcart.Line) int { return strings.Compare(a.ProductID, b.ProductID) })

	reservations := make([]appinv.Reservation, 0, len(lines))
	for _, l := range ordered {
		r, err := ledger.TryReserve(ctx, l.ProductID, l.Quantity)
		if err != nil {
			// Stock moved between validation and reservation. Returning an error rolls back
			// every reservation already staged in this unit of work.
			run.Logger().Info("reservation_rolled_back",
				observability.F("product_id", l.ProductID),
				observability.F("reserved_lines", len(reservations)),
				observability.F("error", err.Error()),
			)
			if errors.Is(err, dominv.ErrInsufficientStock) || errors.Is(err, dominv.ErrConflict) {
				return nil, fmt.Errorf("%w: stock changed during checkout: %w", dominv.ErrConflict, err)
			}
			return nil, err
		}
		reservations = append(reservations, r)
	}
	run.Span().AddEvent("stock.reserved", trace.WithAttributes(attribute.Int("lines", len(reservations))))

	priced := make([]domorder.Line, 0, len(lines))
	for _, l := range lines {
		price, err := products.CurrentPrice(ctx, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", l.ProductID, err)
		}
		priced = append(priced, domorder.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price})
	}

	o, err := domorder.New(uc.ids.NewID(), ownerID, priced)
	if err != nil {
		return nil, err
	}
	if err := tx.Orders().Insert(ctx, o); err != nil {
		return nil, err
	}

	c.Clear()
	if err := tx.Carts().Update(ctx, c); err != nil {
		return nil, err
	}
	return o, nil
}

// validate checks every line against live stock and reports all shortages at once.
func validate(ctx context.Context, products catalog.Catalog, ledger *appinv.Ledger, lines []domcart.Line) error {
	var shortages []dominv.Shortage
	for _, l := range lines {
		exists, err := products.ProductExists(ctx, l.ProductID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, l.ProductID)
		}
		available, err := ledger.CurrentQty(ctx, l.ProductID)
		if errors.Is(err, dominv.ErrNotFound) {
			available, err = 0, nil
		}
		if err != nil {
			return err
		}
		if available < l.Quantity {
			shortages = append(shortages, dominv.Shortage{
				ProductID: l.ProductID,
				Available: available,
				Requested: l.Quantity,
			})
		}
	}
	if len(shortages) > 0 {
		return &dominv.InsufficientStockError{Shortages: shortages}
	}
	return nil
}

// fail maps a unit-of-work error onto the checkout error taxonomy.
func (uc *UseCase) fail(run *application.Run, err error) error {
	switch {
	case errors.Is(err, ErrEmptyCart):
		uc.reject(run, reasonEmptyCart, "EMPTY_CART")
		return err
	case errors.Is(err, dominv.ErrInsufficientStock):
		uc.reject(run, reasonInsufficient, "INSUFFICIENT_STOCK")
		var ise *dominv.InsufficientStockError
		if errors.As(err, &ise) {
			run.Annotate(observability.F("shortages", len(ise.Shortages)))
		}
		return err
	case errors.Is(err, catalog.ErrProductNotFound):
		uc.reject(run, reasonNotFound, "PRODUCT_NOT_FOUND")
		return err
	case errors.Is(err, dominv.ErrConflict):
		uc.reject(run, reasonConflict, "CONFLICT")
		return err
	case application.IsRetryable(err):
		uc.reject(run, reasonConflict, "CONFLICT")
		return fmt.Errorf("%w: %w", dominv.ErrConflict, err)
	case errors.Is(err, application.ErrCommit):
		uc.reject(run, reasonFailed, "CHECKOUT_FAILED")
		return fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		run.Fail("CONTEXT_CANCELED")
		return err
	default:
		run.Fail("REPO_FAILED")
		return fmt.Errorf("%w: %w", application.ErrRepository, err)
	}
}

func (uc *UseCase) reject(run *application.Run, reason, status string) {
	run.Fail(status)
	uc.rejections.Add(1, observability.L("reason", reason))
}
