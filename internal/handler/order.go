package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/shopbridge/order-service/internal/order"
)

// OrderHandler exposes the order service over HTTP under /api/orders.
type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.handleListOrders)
		r.Post("/", h.handleCreateOrder)
		r.Put("/", h.handleUpdateOrder)
		r.Get("/{id}", h.handleGetOrderByID)
		r.Delete("/{id}", h.handleDeleteOrder)
		r.Patch("/{id}/status", h.handleUpdateOrderStatus)
		r.Get("/{id}/payment", h.handleGetPayment)
		r.Post("/{id}/payment/confirm", h.handleConfirmPayment)
		r.Get("/{id}/invoice", h.handleGetInvoice)
	})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePaging(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), order.ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order by id")
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	resp, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	w.Header().Set("Location", "/api/orders/"+resp.ID.String())
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.UpdateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	resp, err := h.service.UpdateOrder(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order")
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	purge := false
	if raw := r.URL.Query().Get("purge"); raw != "" {
		var err error
		if purge, err = strconv.ParseBool(raw); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid purge parameter")
			return
		}
	}

	if err := h.service.DeleteOrder(r.Context(), id, purge); err != nil {
		respondWithServiceError(w, err, "Failed to delete order")
		return
	}

	log.Debug().Stringer("order_id", id).Bool("purge", purge).Msg("Order deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req order.UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	resp, err := h.service.UpdateOrderStatus(r.Context(), id, order.Status(req.Status))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get payment")
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ConfirmPayment(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to confirm payment")
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get invoice")
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
