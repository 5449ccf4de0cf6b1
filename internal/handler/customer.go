package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"github.com/shopbridge/order-service/internal/customer"
	"github.com/shopbridge/order-service/internal/order"
)

type CreateCustomerRequest struct {
	FullName string `json:"full_name" validate:"required,notblank,min=2,max=100"`
	Email    string `json:"email" validate:"required,notblank,email,max=255"`
	Address  string `json:"address" validate:"max=200"`
}

type UpdateCustomerRequest struct {
	FullName string `json:"full_name" validate:"required,notblank,min=2,max=100"`
	Email    string `json:"email" validate:"required,notblank,email,max=255"`
	Address  string `json:"address" validate:"max=200"`
}

type CustomerResponse struct {
	ID        uuid.UUID  `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Address   string     `json:"address"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		FullName:  c.FullName,
		Email:     c.Email,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type CustomerHandler struct {
	service  customer.Service
	orders   order.Service
	validate *validator.Validate
}

func NewCustomerHandler(service customer.Service, orders order.Service) *CustomerHandler {
	return &CustomerHandler{
		service:  service,
		orders:   orders,
		validate: newValidator(),
	}
}

func (h *CustomerHandler) RegisterRoutes(router chi.Router) {
	router.Route("/api/customers", func(r chi.Router) {
		r.Get("/", h.handleListCustomers)
		r.Post("/", h.handleCreateCustomer)
		r.Get("/{id}", h.handleGetCustomerByID)
		r.Put("/{id}", h.handleUpdateCustomer)
		r.Delete("/{id}", h.handleDeleteCustomer)
		r.Get("/{id}/orders", h.handleListCustomerOrders)
	})
}

func (h *CustomerHandler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.CreateCustomer(r.Context(), &customer.Customer{
		FullName: req.FullName,
		Email:    req.Email,
		Address:  req.Address,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create customer")
		return
	}

	w.Header().Set("Location", "/api/customers/"+created.ID.String())
	respondWithJSON(w, http.StatusCreated, toCustomerResponse(created))
}

func (h *CustomerHandler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePaging(w, r)
	if !ok {
		return
	}

	customers, err := h.service.ListCustomers(r.Context(), limit, offset)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list customers")
		return
	}

	resp := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		resp = append(resp, toCustomerResponse(&customers[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *CustomerHandler) handleGetCustomerByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetCustomerByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get customer by id")
		return
	}

	respondWithJSON(w, http.StatusOK, toCustomerResponse(found))
}

func (h *CustomerHandler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateCustomerRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateCustomer(r.Context(), &customer.Customer{
		ID:       id,
		FullName: req.FullName,
		Email:    req.Email,
		Address:  req.Address,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update customer")
		return
	}

	respondWithJSON(w, http.StatusOK, toCustomerResponse(updated))
}

func (h *CustomerHandler) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete customer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CustomerHandler) handleListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	limit, offset, ok := parsePaging(w, r)
	if !ok {
		return
	}

	if _, err := h.service.GetCustomerByID(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to get customer by id")
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), order.ListFilter{CustomerID: &id, Limit: limit, Offset: offset})
	if err != nil {
		respondWithServiceError(w, err, "Failed to list customer orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}
