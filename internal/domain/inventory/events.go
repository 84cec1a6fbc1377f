package inventory

import "time"

// StockReservedEvent is emitted after a checkout committed a reservation.
type StockReservedEvent struct {
	OrderID    string
	ProductID  string
	Quantity   int
	OccurredAt time.Time
}

func (StockReservedEvent) EventName() string { return "inventory.reserved" }

func NewStockReservedEvent(orderID, productID string, quantity int) StockReservedEvent {
	return StockReservedEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		OccurredAt: time.Now().UTC(),
	}
}

// StockRestoredEvent is emitted after a cancellation put stock back.
type StockRestoredEvent struct {
	OrderID    string
	ProductID  string
	Quantity   int
	OccurredAt time.Time
}

func (StockRestoredEvent) EventName() string { return "inventory.restored" }

func NewStockRestoredEvent(orderID, productID string, quantity int) StockRestoredEvent {
	return StockRestoredEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		OccurredAt: time.Now().UTC(),
	}
}
