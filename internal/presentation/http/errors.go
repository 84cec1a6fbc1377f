package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

var errInternal = errors.New("internal error")

func statusOf(err error) int {
	switch {
	case errors.Is(err, dominv.ErrNotFound),
		errors.Is(err, domcart.ErrNotFound),
		errors.Is(err, domcart.ErrItemNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, domcart.ErrInvalidOwner),
		errors.Is(err, dominv.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, dominv.ErrInsufficientStock),
		errors.Is(err, domorder.ErrInvalidTransition),
		errors.Is(err, dominv.ErrConflict),
		errors.Is(err, domcart.ErrConflict),
		errors.Is(err, domorder.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps use case errors to responses. Server errors are logged and returned without detail.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logctx.FromOr(r.Context(), h.log).Error("request_failed", observability.F("error", err.Error()))
		msg := errInternal
		if errors.Is(err, checkout.ErrCheckoutFailed) {
			msg = checkout.ErrCheckoutFailed
		}
		writeError(w, status, msg)
		return
	}

	body := errorResponse{Error: err.Error()}
	var ise *dominv.InsufficientStockError
	if errors.As(err, &ise) {
		for _, s := range ise.Shortages {
			body.Shortages = append(body.Shortages, shortageResponse{
				ProductID: s.ProductID,
				Available: s.Available,
				Requested: s.Requested,
			})
		}
	}
	writeJSON(w, status, body)
}
