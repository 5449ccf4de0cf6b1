package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type OrderItemRequest struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	ProductName string          `json:"product_name" validate:"required,notblank,max=200"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	CustomerID    uuid.UUID          `json:"customer_id" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=CreditCard DebitCard Pix BankTransfer Cash"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderRequest carries the target id in the body; the update replaces
// items and payment wholesale.
type UpdateOrderRequest struct {
	ID            uuid.UUID          `json:"id" validate:"required"`
	CustomerID    uuid.UUID          `json:"customer_id" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=CreditCard DebitCard Pix BankTransfer Cash"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Processing Shipped Delivered Cancelled"`
}

type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type PaymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	IsConfirmed bool            `json:"is_confirmed"`
}

type InvoiceResponse struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"order_id"`
	InvoiceNumber string          `json:"invoice_number"`
	IssuedAt      time.Time       `json:"issued_at"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type OrderResponse struct {
	ID          uuid.UUID           `json:"id"`
	CustomerID  uuid.UUID           `json:"customer_id"`
	Status      string              `json:"status"`
	Items       []OrderItemResponse `json:"items"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Payment     *PaymentResponse    `json:"payment,omitempty"`
	Invoice     *InvoiceResponse    `json:"invoice,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   *time.Time          `json:"updated_at,omitempty"`
}

func ToResponse(o *Order) *OrderResponse {
	resp := &OrderResponse{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		Status:      o.Status.String(),
		Items:       make([]OrderItemResponse, 0, len(o.Items)),
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal(),
		})
	}
	if o.Payment != nil {
		resp.Payment = toPaymentResponse(o.Payment)
	}
	if o.Invoice != nil {
		resp.Invoice = toInvoiceResponse(o.Invoice)
	}
	return resp
}

func toPaymentResponse(p *Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Method:      p.Method.String(),
		Amount:      p.Amount,
		PaidAt:      p.PaidAt,
		IsConfirmed: p.IsConfirmed,
	}
}

func toInvoiceResponse(inv *Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:            inv.ID,
		OrderID:       inv.OrderID,
		InvoiceNumber: inv.InvoiceNumber,
		IssuedAt:      inv.IssuedAt,
		TotalAmount:   inv.TotalAmount,
	}
}

// ToOrder maps a projection back onto an entity. Soft-delete state is not
// part of the projection and is left empty.
func (r *OrderResponse) ToOrder() (*Order, error) {
	status, err := ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		Status:      status,
		Items:       make([]OrderItem, 0, len(r.Items)),
		TotalAmount: r.TotalAmount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, item := range r.Items {
		o.Items = append(o.Items, OrderItem{
			ID:          item.ID,
			OrderID:     r.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	if r.Payment != nil {
		method, err := ParsePaymentMethod(r.Payment.Method)
		if err != nil {
			return nil, err
		}
		o.Payment = &Payment{
			ID:          r.Payment.ID,
			OrderID:     r.Payment.OrderID,
			Method:      method,
			Amount:      r.Payment.Amount,
			PaidAt:      r.Payment.PaidAt,
			IsConfirmed: r.Payment.IsConfirmed,
		}
	}
	if r.Invoice != nil {
		o.Invoice = &Invoice{
			ID:            r.Invoice.ID,
			OrderID:       r.Invoice.OrderID,
			InvoiceNumber: r.Invoice.InvoiceNumber,
			IssuedAt:      r.Invoice.IssuedAt,
			TotalAmount:   r.Invoice.TotalAmount,
		}
	}
	return o, nil
}
