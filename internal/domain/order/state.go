package order

import "fmt"

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnCancel(o *Order) (OrderState, error)
	OnPaid(o *Order) (OrderState, error)
	OnShipped(o *Order) (OrderState, error)
}

func stateFor(s Status) (OrderState, error) {
	switch s {
	case StatusPending:
		return pendingState{}, nil
	case StatusPaid:
		return paidState{}, nil
	case StatusShipped:
		return shippedState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	default:
		return nil, fmt.Errorf("order: unknown status %q", s)
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnCancel(*Order) (OrderState, error) {
	return cancelledState{}, nil
}

func (pendingState) OnPaid(*Order) (OrderState, error) {
	return paidState{}, nil
}

func (pendingState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

type paidState struct{}

func (paidState) Status() Status { return StatusPaid }

func (paidState) OnCancel(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (paidState) OnPaid(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (paidState) OnShipped(*Order) (OrderState, error) {
	return shippedState{}, nil
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnCancel(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (shippedState) OnPaid(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (shippedState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnCancel(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (cancelledState) OnPaid(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (cancelledState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}
