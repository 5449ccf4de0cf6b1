// Package events publishes order lifecycle notifications to a message broker.
package events

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	OrderCreated          Type = "order.created"
	OrderUpdated          Type = "order.updated"
	OrderStatusChanged    Type = "order.status_changed"
	OrderDeleted          Type = "order.deleted"
	OrderPaymentConfirmed Type = "order.payment_confirmed"
)

type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        Type            `json:"type"`
	OrderID     uuid.UUID       `json:"order_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Status      string          `json:"status,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
