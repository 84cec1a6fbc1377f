package httppresentation

import (
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Error     string             `json:"error"`
	Shortages []shortageResponse `json:"shortages,omitempty"`
}

type shortageResponse struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

type cartLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartResponse struct {
	ID        string             `json:"id"`
	OwnerID   string             `json:"owner_id"`
	Items     []cartLineResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	items := make([]cartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, cartLineResponse{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return cartResponse{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Items:     items,
		ItemCount: c.ItemCount(),
		UpdatedAt: c.UpdatedAt,
	}
}

type countResponse struct {
	Count int `json:"count"`
}

type orderLineResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	Status      domorder.Status     `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Lines       []orderLineResponse `json:"lines"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		})
	}
	return orderResponse{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Lines:       lines,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}
