package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appinv "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService       = "order-service"
	useCaseOrderCancel = "order.cancel"
	useCaseOrderGet    = "order.get"
	useCaseOrderList   = "order.list"

	cancelMaxAttempts = 3
)

var (
	ErrNotFound          = domain.ErrNotFound
	ErrInvalidTransition = domain.ErrInvalidTransition
)

type CancelOrderInput struct {
	OrderID string
	OwnerID string
}

// CancelOrderUseCase cancels a pending order and returns its stock in the same unit of work,
// so a retried cancel observes the cancelled status and never restores twice.
type CancelOrderUseCase struct {
	uow       application.UnitOfWork
	publisher outbox.Publisher
	ledger    appinv.LedgerConfig
	inst      *application.Instrument
}

func NewCancelOrderUseCase(uow application.UnitOfWork, publisher outbox.Publisher, ledger appinv.LedgerConfig, tel observability.Observability) *CancelOrderUseCase {
	return &CancelOrderUseCase{
		uow:       uow,
		publisher: publisher,
		ledger:    ledger,
		inst:      application.NewInstrument(tel, orderService),
	}
}

var _ application.UseCase[CancelOrderInput, *domain.Order] = (*CancelOrderUseCase)(nil)

func (uc *CancelOrderUseCase) Execute(ctx context.Context, in CancelOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseOrderCancel, "CancelOrder",
		attribute.String("order.id", in.OrderID),
		attribute.String("order.owner_id", in.OwnerID),
	)
	defer func() { run.End(ctx, err) }()

	if in.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.Validation("order id is required")
	}
	if in.OwnerID == "" {
		run.Fail("OWNER_ID_REQUIRED")
		return nil, application.Validation("owner id is required")
	}

	var cancelled *domain.Order
	for attempt := 1; attempt <= cancelMaxAttempts; attempt++ {
		if err := run.CheckContext(ctx); err != nil {
			return nil, err
		}
		err = uc.uow.Do(ctx, func(ctx context.Context, tx application.Tx) error {
			o, err := ownedOrder(ctx, tx, in.OrderID, in.OwnerID)
			if err != nil {
				return err
			}
			if err := o.Cancel(); err != nil {
				return err
			}
			ledger := appinv.NewLedger(tx.Stock(), uc.ledger)
			restore := slices.Clone(o.Lines)
			slices.SortFunc(restore, func(a, b domain.Line) int { return strings.Compare(a.ProductID, b.ProductID) })
			for _, l := range restore {
				if err := ledger.Restore(ctx, l.ProductID, l.Quantity); err != nil {
					return fmt.Errorf("restore %s: %w", l.ProductID, err)
				}
			}
			if err := tx.Orders().Update(ctx, o); err != nil {
				return err
			}
			cancelled = o
			return nil
		})
		if err == nil || !application.IsRetryable(err) {
			break
		}
		run.Logger().Debug("order_cancel_retry", observability.F("attempt", attempt))
	}

	if err != nil {
		var ite *domain.InvalidTransitionError
		switch {
		case errors.As(err, &ite):
			run.Fail("INVALID_TRANSITION")
			run.Annotate(observability.F("from_status", string(ite.From)))
			return nil, err
		case errors.Is(err, domain.ErrNotFound):
			run.Fail("ORDER_NOT_FOUND")
			return nil, ErrNotFound
		case application.IsRetryable(err):
			run.Fail("CONFLICT")
			return nil, fmt.Errorf("%w: %w", domain.ErrConflict, err)
		default:
			run.Fail("REPO_FAILED")
			return nil, wrapRepositoryError(err)
		}
	}

	run.Span().SetAttributes(attribute.String("order.status", string(cancelled.Status)))
	events := []outbox.Event{domain.NewOrderCancelledEvent(cancelled)}
	for _, l := range cancelled.Lines {
		events = append(events, dominv.NewStockRestoredEvent(cancelled.ID, l.ProductID, l.Quantity))
	}
	run.Publish(ctx, uc.publisher, events...)

	return cancelled, nil
}

// ownedOrder loads an order and hides orders of other owners behind ErrNotFound.
func ownedOrder(ctx context.Context, tx application.Tx, orderID, ownerID string) (*domain.Order, error) {
	o, err := tx.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return err
	default:
		return fmt.Errorf("%w: %w", application.ErrRepository, err)
	}
}
