package order

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopbridge/order-service/internal/events"
)

const tracerName = "github.com/shopbridge/order-service/internal/order"

type Service interface {
	ListOrders(ctx context.Context, filter ListFilter) ([]OrderResponse, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*OrderResponse, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error)
	UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*OrderResponse, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status Status) (*OrderResponse, error)
	DeleteOrder(ctx context.Context, id uuid.UUID, purge bool) error
	GetPayment(ctx context.Context, orderID uuid.UUID) (*PaymentResponse, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*PaymentResponse, error)
	GetInvoice(ctx context.Context, orderID uuid.UUID) (*InvoiceResponse, error)
}

type service struct {
	orderRepo Repository
	publisher events.Publisher
	now       func() time.Time
	tracer    trace.Tracer
}

type Option func(*service)

func WithPublisher(p events.Publisher) Option {
	return func(s *service) { s.publisher = p }
}

// WithClock overrides the time source; the returned times are stored as UTC.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(orderRepo Repository, opts ...Option) Service {
	s := &service{
		orderRepo: orderRepo,
		publisher: events.NopPublisher{},
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) ListOrders(ctx context.Context, filter ListFilter) ([]OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "order.ListOrders")
	defer span.End()

	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		recordError(span, err)
		log.Error().Err(err).Msg("service: failed to list orders in repository")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, *ToResponse(&orders[i]))
	}
	span.SetAttributes(attribute.Int("orders.count", len(resp)))
	return resp, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "order.GetOrderByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	o, err := s.getOrder(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return ToResponse(o), nil
}

func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder")
	defer span.End()

	method, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order id: %w", err)
	}

	items, err := buildItems(orderID, req.Items)
	if err != nil {
		recordError(span, err)
		log.Warn().Err(err).Stringer("customer_id", req.CustomerID).Msg("service: rejected order")
		return nil, err
	}

	total, err := orderTotal(items)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	now := s.now().UTC()

	payment, err := newPayment(orderID, method, total)
	if err != nil {
		return nil, err
	}
	invoice, err := newInvoice(orderID, total, now)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:          orderID,
		CustomerID:  req.CustomerID,
		Status:      StatusPending,
		Items:       items,
		TotalAmount: total,
		Payment:     payment,
		Invoice:     invoice,
		CreatedAt:   now,
	}

	if err := s.orderRepo.Create(ctx, o); err != nil {
		recordError(span, err)
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	span.SetAttributes(attribute.String("order.id", o.ID.String()))
	log.Info().Stringer("order_id", o.ID).Stringer("customer_id", o.CustomerID).Str("total", total.String()).Msg("service: order created successfully")

	s.publish(ctx, events.OrderCreated, o)
	return ToResponse(o), nil
}

func (s *service) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateOrder", trace.WithAttributes(attribute.String("order.id", req.ID.String())))
	defer span.End()

	method, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	o, err := s.getOrder(ctx, req.ID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	items, err := buildItems(o.ID, req.Items)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	total, err := orderTotal(items)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	now := s.now().UTC()

	payment, err := newPayment(o.ID, method, total)
	if err != nil {
		return nil, err
	}

	o.CustomerID = req.CustomerID
	o.Items = items
	o.TotalAmount = total
	o.Status = StatusProcessing
	o.UpdatedAt = &now
	o.Payment = payment
	if o.Invoice != nil {
		o.Invoice.TotalAmount = total
	} else if o.Invoice, err = newInvoice(o.ID, total, now); err != nil {
		return nil, err
	}

	if err := s.orderRepo.Update(ctx, o); err != nil {
		recordError(span, err)
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", o.ID).Msg("service: order disappeared during update")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to update order in repository")
		return nil, fmt.Errorf("service: failed to update order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Str("total", total.String()).Msg("service: order updated successfully")

	s.publish(ctx, events.OrderUpdated, o)
	return ToResponse(o), nil
}

// UpdateOrderStatus accepts any known status regardless of the current one.
func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status Status) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.status", status.String()),
	))
	defer span.End()

	if !status.Valid() {
		recordError(span, ErrInvalidStatus)
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, status, s.now().UTC()); err != nil {
		recordError(span, err)
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Stringer("new_status", status).Msg("service: order not found, cannot update status")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", id).Stringer("new_status", status).Msg("service: order status updated successfully")

	s.publish(ctx, events.OrderStatusChanged, o)
	return ToResponse(o), nil
}

func (s *service) DeleteOrder(ctx context.Context, id uuid.UUID, purge bool) error {
	ctx, span := s.tracer.Start(ctx, "order.DeleteOrder", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.Bool("order.purge", purge),
	))
	defer span.End()

	// loaded first so the event can carry the customer and total
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil && !(purge && errors.Is(err, ErrOrderNotFound)) {
		recordError(span, err)
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to fetch order for delete: %w", err)
	}

	if purge {
		err = s.orderRepo.Delete(ctx, id)
	} else {
		err = s.orderRepo.SoftDelete(ctx, id, s.now().UTC())
	}
	if err != nil {
		recordError(span, err)
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found for delete")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to delete order in repository")
		return fmt.Errorf("service: failed to delete order: %w", err)
	}

	log.Info().Stringer("order_id", id).Bool("purge", purge).Msg("service: order deleted")

	if o == nil {
		o = &Order{ID: id}
	}
	s.publish(ctx, events.OrderDeleted, o)
	return nil
}

func (s *service) GetPayment(ctx context.Context, orderID uuid.UUID) (*PaymentResponse, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Payment == nil {
		return nil, ErrPaymentNotFound
	}
	return toPaymentResponse(o.Payment), nil
}

// ConfirmPayment marks the payment as paid. Confirming twice keeps the first
// paid-at timestamp.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*PaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "order.ConfirmPayment", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if o.Payment == nil {
		recordError(span, ErrPaymentNotFound)
		return nil, ErrPaymentNotFound
	}
	if o.Payment.IsConfirmed {
		return toPaymentResponse(o.Payment), nil
	}

	paidAt := s.now().UTC()
	if err := s.orderRepo.ConfirmPayment(ctx, orderID, paidAt); err != nil {
		recordError(span, err)
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to confirm payment in repository")
		return nil, fmt.Errorf("service: failed to confirm payment: %w", err)
	}

	o.Payment.IsConfirmed = true
	o.Payment.PaidAt = &paidAt

	log.Info().Stringer("order_id", orderID).Msg("service: payment confirmed")

	s.publish(ctx, events.OrderPaymentConfirmed, o)
	return toPaymentResponse(o.Payment), nil
}

func (s *service) GetInvoice(ctx context.Context, orderID uuid.UUID) (*InvoiceResponse, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return toInvoiceResponse(o.Invoice), nil
}

func (s *service) getOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

// publish never fails the caller; the database is the source of truth.
func (s *service) publish(ctx context.Context, typ events.Type, o *Order) {
	id, err := uuid.NewV4()
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate event id")
		return
	}
	e := events.Event{
		ID:          id,
		Type:        typ,
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Status:      o.Status.String(),
		TotalAmount: o.TotalAmount,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Str("event_type", string(typ)).Msg("service: failed to publish order event")
	}
}

func buildItems(orderID uuid.UUID, reqs []OrderItemRequest) ([]OrderItem, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyOrder
	}

	items := make([]OrderItem, 0, len(reqs))
	for _, req := range reqs {
		if req.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product id cannot be empty", ErrInvalidItem)
		}
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be greater than zero", ErrInvalidItem, req.ProductID)
		}
		if !req.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("%w: unit price for product %s must be greater than zero", ErrInvalidItem, req.ProductID)
		}
		if !ValidAmount(req.UnitPrice) {
			return nil, fmt.Errorf("%w: unit price for product %s must have at most %d decimal places and not exceed %s",
				ErrInvalidItem, req.ProductID, MoneyScale, MaxAmount)
		}
		name := strings.TrimSpace(req.ProductName)
		if name == "" {
			return nil, fmt.Errorf("%w: product name for product %s cannot be blank", ErrInvalidItem, req.ProductID)
		}

		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate order item id: %w", err)
		}
		items = append(items, OrderItem{
			ID:          id,
			OrderID:     orderID,
			ProductID:   req.ProductID,
			ProductName: name,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
		})
	}
	return items, nil
}

func orderTotal(items []OrderItem) (decimal.Decimal, error) {
	total := CalculateTotal(items)
	if !ValidAmount(total) {
		return decimal.Zero, fmt.Errorf("%w: order total %s exceeds %s", ErrInvalidItem, total, MaxAmount)
	}
	return total, nil
}

func newPayment(orderID uuid.UUID, method PaymentMethod, amount decimal.Decimal) (*Payment, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate payment id: %w", err)
	}
	return &Payment{
		ID:      id,
		OrderID: orderID,
		Method:  method,
		Amount:  amount,
	}, nil
}

func newInvoice(orderID uuid.UUID, amount decimal.Decimal, issuedAt time.Time) (*Invoice, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate invoice id: %w", err)
	}
	return &Invoice{
		ID:            id,
		OrderID:       orderID,
		InvoiceNumber: InvoiceNumber(orderID, issuedAt),
		IssuedAt:      issuedAt,
		TotalAmount:   amount,
	}, nil
}

// InvoiceNumber formats INV-YYYYMMDD-<order id hex> from the issue date and
// the whole order id, so the number is unique whenever the order id is.
func InvoiceNumber(orderID uuid.UUID, issuedAt time.Time) string {
	return fmt.Sprintf("INV-%s-%s", issuedAt.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(orderID.Bytes())))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
