package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/rs/cors"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerOwnerID        = "X-Owner-ID"
)

var errMissingOwner = errors.New("missing " + headerOwnerID + " header")

// Services are the use cases exposed over HTTP.
type Services struct {
	Cart     *appcart.Service
	Checkout *checkout.UseCase
	Cancel   *apporder.CancelOrderUseCase
	Orders   *apporder.Queries
}

type Options struct {
	AllowedOrigins []string
	// Metrics is mounted on GET /metrics when set.
	Metrics http.Handler
	// Ready backs GET /health. Nil means always ready.
	Ready func(context.Context) error
}

type Handler struct {
	svc  Services
	opts Options
	log  observability.Logger

	requests observability.Counter
	duration observability.Histogram
}

func NewHandler(svc Services, tel observability.Observability, opts Options) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		svc:      svc,
		opts:     opts,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		requests: tel.Metrics().Counter(observability.MHTTPRequests),
		duration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, "GET /cart", h.handleGetCart)
	h.muxHandle(mux, "GET /cart/count", h.handleCartCount)
	h.muxHandle(mux, "POST /cart/items", h.handleAddItem)
	h.muxHandle(mux, "PUT /cart/items/{productId}", h.handleUpdateItem)
	h.muxHandle(mux, "DELETE /cart/items/{productId}", h.handleRemoveItem)
	h.muxHandle(mux, "DELETE /cart", h.handleClearCart)
	h.muxHandle(mux, "POST /orders", h.handleCheckout)
	h.muxHandle(mux, "GET /orders", h.handleListOrders)
	h.muxHandle(mux, "GET /orders/{orderId}", h.handleGetOrder)
	h.muxHandle(mux, "POST /orders/{orderId}/cancel", h.handleCancelOrder)
	h.muxHandle(mux, "GET /health", h.handleHealth)
	if h.opts.Metrics != nil {
		mux.Handle("GET /metrics", h.opts.Metrics)
	}

	origins := h.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", headerOwnerID, headerRequestID, "traceparent", "tracestate"},
		ExposedHeaders: []string{headerRequestID},
	}).Handler(mux)
}

// muxHandle wires a route with Trace → request logger → HTTP metrics → access log → handler.
// The pattern doubles as the low-cardinality route label.
func (h *Handler) muxHandle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			ownerFrom,
		)(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), pattern)))
	})
}

func ownerFrom(r *http.Request) string { return r.Header.Get(headerOwnerID) }

// owner writes 401 and returns false when the request carries no owner.
func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := ownerFrom(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, errMissingOwner)
		return "", false
	}
	return id, true
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Cart.Get(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleCartCount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Cart.ItemCount(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.svc.Cart.AddItem(r.Context(), ownerID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.svc.Cart.UpdateItem(r.Context(), ownerID, r.PathValue("productId"), req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Cart.RemoveItem(r.Context(), ownerID, r.PathValue("productId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	if err := h.svc.Cart.Clear(r.Context(), ownerID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Checkout.Execute(r.Context(), checkout.Input{OwnerID: ownerID})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/orders/%s", o.ID))
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	orders, err := h.svc.Orders.List(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := listOrdersResponse{Orders: make([]orderResponse, 0, len(orders))}
	for _, o := range orders {
		out.Orders = append(out.Orders, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Orders.Get(r.Context(), r.PathValue("orderId"), ownerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Cancel.Execute(r.Context(), apporder.CancelOrderInput{
		OrderID: r.PathValue("orderId"),
		OwnerID: ownerID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("health_check_failed", observability.F("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
