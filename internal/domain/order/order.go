package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("order: unit price must be zero or greater")
	ErrNoLines           = errors.New("order: at least one line is required")
	ErrInvalidTransition = errors.New("order: invalid state transition")
	// ErrConflict is returned by Repository.Update when the order changed since it was read.
	ErrConflict = errors.New("order: concurrent update conflict")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// InvalidTransitionError reports a lifecycle change the current status does not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// Line is a purchased product with the unit price captured at checkout.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is immutable after creation except for Status.
type Order struct {
	ID          string
	OwnerID     string
	Lines       []Line
	TotalAmount decimal.Decimal
	Status      Status
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(id, ownerID string, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	total := decimal.Zero
	copied := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return nil, ErrInvalidPrice
		}
		total = total.Add(l.Subtotal())
		copied = append(copied, l)
	}

	now := time.Now().UTC()
	return &Order{
		ID:          id,
		OwnerID:     ownerID,
		Lines:       copied,
		TotalAmount: total,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Cancel moves a pending order to cancelled.
func (o *Order) Cancel() error {
	return o.transition(StatusCancelled, func(s OrderState) (OrderState, error) { return s.OnCancel(o) })
}

// MarkPaid records an external payment confirmation.
func (o *Order) MarkPaid() error {
	return o.transition(StatusPaid, func(s OrderState) (OrderState, error) { return s.OnPaid(o) })
}

// MarkShipped records an external fulfilment event.
func (o *Order) MarkShipped() error {
	return o.transition(StatusShipped, func(s OrderState) (OrderState, error) { return s.OnShipped(o) })
}

func (o *Order) transition(to Status, fn func(OrderState) (OrderState, error)) error {
	current, err := stateFor(o.Status)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return &InvalidTransitionError{From: o.Status, To: to}
		}
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = make([]Line, len(o.Lines))
	copy(c.Lines, o.Lines)
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
