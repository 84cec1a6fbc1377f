package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newPending(t *testing.T) *Order {
	t.Helper()
	o, err := New("order-1", "owner-1", []Line{
		{ProductID: "P1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")},
		{ProductID: "P2", Quantity: 1, UnitPrice: decimal.RequireFromString("3.00")},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func TestNew_ComputesTotal(t *testing.T) {
	o := newPending(t)
	if !o.TotalAmount.Equal(decimal.RequireFromString("24.00")) {
		t.Errorf("TotalAmount = %s, want 24.00", o.TotalAmount)
	}
	if o.Status != StatusPending {
		t.Errorf("Status = %s, want pending", o.Status)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  error
	}{
		{name: "no lines", lines: nil, want: ErrNoLines},
		{name: "zero qty", lines: []Line{{ProductID: "P1", Quantity: 0}}, want: ErrInvalidQuantity},
		{name: "negative price", lines: []Line{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}, want: ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New("o", "owner", tt.lines); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOrder_CancelOnlyFromPending(t *testing.T) {
	o := newPending(t)
	if err := o.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if o.Status != StatusCancelled {
		t.Fatalf("Status = %s, want cancelled", o.Status)
	}

	err := o.Cancel()
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != StatusCancelled {
		t.Errorf("From = %s, want cancelled", ite.From)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected error to match ErrInvalidTransition")
	}
}

func TestOrder_ExternalLifecycle(t *testing.T) {
	o := newPending(t)
	if err := o.MarkShipped(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ship before pay: err = %v", err)
	}
	if err := o.MarkPaid(); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if err := o.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel after pay: err = %v", err)
	}
	if err := o.MarkShipped(); err != nil {
		t.Fatalf("MarkShipped failed: %v", err)
	}
	if o.Status != StatusShipped {
		t.Errorf("Status = %s, want shipped", o.Status)
	}
}

func TestOrder_CloneKeepsPricesApart(t *testing.T) {
	o := newPending(t)
	c := o.Clone()
	c.Lines[0].UnitPrice = decimal.NewFromInt(99)
	if !o.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.50")) {
		t.Error("clone shares line storage with original")
	}
}
