package order

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

var statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "CreditCard"
	PaymentDebitCard    PaymentMethod = "DebitCard"
	PaymentPix          PaymentMethod = "Pix"
	PaymentBankTransfer PaymentMethod = "BankTransfer"
	PaymentCash         PaymentMethod = "Cash"
)

var paymentMethods = []PaymentMethod{PaymentCreditCard, PaymentDebitCard, PaymentPix, PaymentBankTransfer, PaymentCash}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Valid() bool {
	for _, known := range paymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(raw)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
	}
	return m, nil
}

type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Method      PaymentMethod
	Amount      decimal.Decimal
	PaidAt      *time.Time
	IsConfirmed bool
}

type Invoice struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	InvoiceNumber string
	IssuedAt      time.Time
	TotalAmount   decimal.Decimal
}

// Order is the aggregate root. Items, Payment and Invoice are owned by it and
// are persisted and deleted together with it.
type Order struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	Status      Status
	Items       []OrderItem
	TotalAmount decimal.Decimal
	Payment     *Payment
	Invoice     *Invoice
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
}

func (o *Order) IsDeleted() bool {
	return o.DeletedAt != nil
}

// MoneyScale is the number of decimal places every stored amount carries.
const MoneyScale = 2

// MaxAmount is the largest amount a NUMERIC(18,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// ValidAmount reports whether d has at most MoneyScale decimal places and
// fits in MaxAmount, so that it is stored without rounding.
func ValidAmount(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale)) && d.Abs().LessThanOrEqual(MaxAmount)
}

// CalculateTotal sums the item subtotals.
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ListFilter narrows List results. A zero Limit means no limit.
type ListFilter struct {
	CustomerID *uuid.UUID
	Limit      int
	Offset     int
}
