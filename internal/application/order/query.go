package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Queries serves read-only order lookups scoped to the calling owner.
type Queries struct {
	uow  application.UnitOfWork
	inst *application.Instrument
}

func NewQueries(uow application.UnitOfWork, tel observability.Observability) *Queries {
	return &Queries{uow: uow, inst: application.NewInstrument(tel, orderService)}
}

// Get returns ErrNotFound for missing orders and for orders of other owners.
func (q *Queries) Get(ctx context.Context, orderID, ownerID string) (_ *domain.Order, err error) {
	ctx, run := q.inst.Start(ctx, useCaseOrderGet, "GetOrder",
		attribute.String("order.id", orderID),
		attribute.String("order.owner_id", ownerID),
	)
	defer func() { run.End(ctx, err) }()

	if orderID == "" || ownerID == "" {
		run.Fail("ID_REQUIRED")
		return nil, application.Validation("order id and owner id are required")
	}

	var out *domain.Order
	err = q.uow.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		o, err := ownedOrder(ctx, tx, orderID, ownerID)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		err = wrapRepositoryError(err)
		if err == ErrNotFound {
			run.Fail("ORDER_NOT_FOUND")
		} else {
			run.Fail("REPO_READ_FAILED")
		}
		return nil, err
	}
	return out, nil
}

// List returns the owner's orders, newest first.
func (q *Queries) List(ctx context.Context, ownerID string) (_ []*domain.Order, err error) {
	ctx, run := q.inst.Start(ctx, useCaseOrderList, "ListOrders", attribute.String("order.owner_id", ownerID))
	defer func() { run.End(ctx, err) }()

	if ownerID == "" {
		run.Fail("OWNER_ID_REQUIRED")
		return nil, application.Validation("owner id is required")
	}

	var out []*domain.Order
	err = q.uow.Do(ctx, func(ctx context.Context, tx application.Tx) error {
		orders, err := tx.Orders().ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		out = orders
		return nil
	})
	if err != nil {
		run.Fail("REPO_READ_FAILED")
		return nil, wrapRepositoryError(err)
	}
	run.Annotate(observability.F("orders", len(out)))
	return out, nil
}
