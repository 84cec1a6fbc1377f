package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is emitted after checkout committed a new order.
type OrderPlacedEvent struct {
	OrderID     string
	OwnerID     string
	Lines       []Line
	TotalAmount decimal.Decimal
	OccurredAt  time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

// EventKey routes the event by order id.
func (e OrderPlacedEvent) EventKey() string { return e.OrderID }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	lines := make([]Line, len(o.Lines))
	copy(lines, o.Lines)
	return OrderPlacedEvent{
		OrderID:     o.ID,
		OwnerID:     o.OwnerID,
		Lines:       lines,
		TotalAmount: o.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after a pending order was cancelled and its stock restored.
type OrderCancelledEvent struct {
	OrderID    string
	OwnerID    string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func (e OrderCancelledEvent) EventKey() string { return e.OrderID }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		OccurredAt: time.Now().UTC(),
	}
}
