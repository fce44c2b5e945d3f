package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type OrdersHandler struct {
	Service *orders.Service
	Log     *zap.SugaredLogger
	// Timeout bounds each request's whole call sequence. Zero means no
	// deadline beyond the router's.
	Timeout time.Duration
}

type messageResp struct {
	Message string `json:"message"`
}

type orderResp struct {
	Message string        `json:"message,omitempty"`
	Order   *orders.Order `json:"order"`
}

type ordersResp struct {
	Orders []orders.Order `json:"orders"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}", h.updateOrder)
	r.Delete("/orders/{id}", h.removeOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to a status. Anything that is neither a
// validation failure nor a missing order is a 500 with a generic message.
func (h *OrdersHandler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *orders.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, messageResp{Message: verr.Error()})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, messageResp{Message: orders.ErrNotFound.Error()})
	default:
		h.Log.Errorw(fallback, "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, messageResp{Message: fallback})
	}
}

func (h *OrdersHandler) reqContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.Timeout > 0 {
		return context.WithTimeout(r.Context(), h.Timeout)
	}
	return context.WithCancel(r.Context())
}

func (h *OrdersHandler) decode(w http.ResponseWriter, r *http.Request) (orders.Fields, bool) {
	var req orderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResp{Message: "invalid json"})
		return orders.Fields{}, false
	}
	f, err := req.toFields()
	if err != nil {
		h.writeError(w, r, err, "invalid order")
		return orders.Fields{}, false
	}
	return f, true
}

func (h *OrdersHandler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := orders.ValidateID(id); err != nil {
		h.writeError(w, r, err, "invalid order id")
		return "", false
	}
	return id, true
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqContext(r)
	defer cancel()

	list, err := h.Service.GetAll(ctx)
	if err != nil {
		h.writeError(w, r, err, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, ordersResp{Orders: list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.reqContext(r)
	defer cancel()

	o, err := h.Service.GetByID(ctx, id)
	if err != nil {
		h.writeError(w, r, err, "failed to get order")
		return
	}
	writeJSON(w, http.StatusOK, orderResp{Order: o})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	f, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.reqContext(r)
	defer cancel()

	o, err := h.Service.Create(ctx, f)
	if err != nil {
		h.writeError(w, r, err, "failed to create order")
		return
	}
	writeJSON(w, http.StatusCreated, orderResp{Message: "order created", Order: o})
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	f, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.reqContext(r)
	defer cancel()

	o, err := h.Service.Update(ctx, id, f)
	if err != nil {
		h.writeError(w, r, err, "failed to update order")
		return
	}
	writeJSON(w, http.StatusOK, orderResp{Message: "order updated", Order: o})
}

func (h *OrdersHandler) removeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.reqContext(r)
	defer cancel()

	if err := h.Service.Remove(ctx, id); err != nil {
		h.writeError(w, r, err, "failed to delete order")
		return
	}
	writeJSON(w, http.StatusOK, messageResp{Message: "order deleted"})
}
