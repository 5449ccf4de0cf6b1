package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbridge/order-service/internal/db"
	"github.com/shopbridge/order-service/internal/db/dbtest"
	"github.com/shopbridge/order-service/internal/order"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func newOrder(t *testing.T, customerID uuid.UUID, createdAt time.Time, prices ...string) *order.Order {
	t.Helper()
	id := uuid.Must(uuid.NewV4())
	o := &order.Order{
		ID:         id,
		CustomerID: customerID,
		Status:     order.StatusPending,
		CreatedAt:  createdAt,
	}
	for i, p := range prices {
		o.Items = append(o.Items, order.OrderItem{
			ID:          uuid.Must(uuid.NewV4()),
			OrderID:     id,
			ProductID:   uuid.Must(uuid.NewV4()),
			ProductName: "Product " + string(rune('A'+i)),
			Quantity:    i + 1,
			UnitPrice:   decimal.RequireFromString(p),
		})
	}
	o.TotalAmount = order.CalculateTotal(o.Items)
	o.Payment = &order.Payment{
		ID:      uuid.Must(uuid.NewV4()),
		OrderID: id,
		Method:  order.PaymentBankTransfer,
		Amount:  o.TotalAmount,
	}
	o.Invoice = &order.Invoice{
		ID:            uuid.Must(uuid.NewV4()),
		OrderID:       id,
		InvoiceNumber: order.InvoiceNumber(id, createdAt),
		IssuedAt:      createdAt,
		TotalAmount:   o.TotalAmount,
	}
	return o
}

func setupRepository(t *testing.T) (order.Repository, *db.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	return order.NewRepository(conn), conn
}

func TestRepository_CreateAndGetByID(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	o := newOrder(t, uuid.Must(uuid.NewV4()), now, "10.00", "2.50", "19.99")
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(o, got, decimalComparer); diff != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
	}
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo, _ := setupRepository(t)

	_, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestRepository_List(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	alice, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	first := newOrder(t, alice, base, "1")
	second := newOrder(t, bob, base.Add(time.Minute), "2", "3")
	third := newOrder(t, alice, base.Add(2*time.Minute), "4")
	for _, o := range []*order.Order{first, second, third} {
		require.NoError(t, repo.Create(ctx, o))
	}

	t.Run("all in creation order", func(t *testing.T) {
		orders, err := repo.List(ctx, order.ListFilter{})
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, first.ID, orders[0].ID)
		assert.Equal(t, second.ID, orders[1].ID)
		assert.Equal(t, third.ID, orders[2].ID)
		assert.Len(t, orders[1].Items, 2)
		assert.NotNil(t, orders[1].Payment)
		assert.NotNil(t, orders[1].Invoice)
	})

	t.Run("by customer", func(t *testing.T) {
		orders, err := repo.List(ctx, order.ListFilter{CustomerID: &alice})
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, first.ID, orders[0].ID)
		assert.Equal(t, third.ID, orders[1].ID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		orders, err := repo.List(ctx, order.ListFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, second.ID, orders[0].ID)
	})

	t.Run("offset without limit", func(t *testing.T) {
		orders, err := repo.List(ctx, order.ListFilter{Offset: 2})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, third.ID, orders[0].ID)
	})

	t.Run("empty result", func(t *testing.T) {
		nobody := uuid.Must(uuid.NewV4())
		orders, err := repo.List(ctx, order.ListFilter{CustomerID: &nobody})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})
}

func TestRepository_Update_ReplacesChildren(t *testing.T) {
	repo, conn := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	o := newOrder(t, uuid.Must(uuid.NewV4()), now, "10", "20")
	require.NoError(t, repo.Create(ctx, o))

	updatedAt := now.Add(time.Minute)
	replacement := newOrder(t, uuid.Must(uuid.NewV4()), now, "5")
	o.CustomerID = replacement.CustomerID
	o.Items = replacement.Items
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	o.TotalAmount = order.CalculateTotal(o.Items)
	o.Status = order.StatusProcessing
	o.UpdatedAt = &updatedAt
	o.Payment = &order.Payment{ID: uuid.Must(uuid.NewV4()), OrderID: o.ID, Method: order.PaymentCash, Amount: o.TotalAmount}
	o.Invoice.TotalAmount = o.TotalAmount

	require.NoError(t, repo.Update(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(o, got, decimalComparer); diff != "" {
		t.Errorf("GetByID() after Update mismatch (-want +got):\n%s", diff)
	}

	var itemCount, paymentCount int
	require.NoError(t, conn.Get(&itemCount, `SELECT COUNT(*) FROM order_items WHERE order_id = ?`, o.ID.String()))
	require.NoError(t, conn.Get(&paymentCount, `SELECT COUNT(*) FROM payments WHERE order_id = ?`, o.ID.String()))
	assert.Equal(t, 1, itemCount)
	assert.Equal(t, 1, paymentCount)
}

func TestRepository_Update_NotFound(t *testing.T) {
	repo, _ := setupRepository(t)
	o := newOrder(t, uuid.Must(uuid.NewV4()), time.Now().UTC(), "1")

	err := repo.Update(context.Background(), o)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestRepository_SoftDelete(t *testing.T) {
	repo, conn := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	o := newOrder(t, uuid.Must(uuid.NewV4()), now, "3")
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.SoftDelete(ctx, o.ID, now))

	_, err := repo.GetByID(ctx, o.ID)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	orders, err := repo.List(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	require.ErrorIs(t, repo.SoftDelete(ctx, o.ID, now), order.ErrOrderNotFound)
	require.ErrorIs(t, repo.UpdateStatus(ctx, o.ID, order.StatusShipped, now), order.ErrOrderNotFound)

	var rows int
	require.NoError(t, conn.Get(&rows, `SELECT COUNT(*) FROM orders WHERE id = ? AND deleted_at IS NOT NULL`, o.ID.String()))
	assert.Equal(t, 1, rows)
}

func TestRepository_Delete_RemovesOwnedRows(t *testing.T) {
	repo, conn := setupRepository(t)
	ctx := context.Background()

	o := newOrder(t, uuid.Must(uuid.NewV4()), time.Now().UTC(), "3", "4")
	require.NoError(t, repo.Create(ctx, o))
	require.NoError(t, repo.SoftDelete(ctx, o.ID, time.Now().UTC()))

	require.NoError(t, repo.Delete(ctx, o.ID))

	for _, table := range []string{"orders", "order_items", "payments", "invoices"} {
		column := "order_id"
		if table == "orders" {
			column = "id"
		}
		var count int
		require.NoError(t, conn.Get(&count, `SELECT COUNT(*) FROM `+table+` WHERE `+column+` = ?`, o.ID.String()))
		assert.Zero(t, count, table)
	}

	require.ErrorIs(t, repo.Delete(ctx, o.ID), order.ErrOrderNotFound)
}

func TestRepository_UpdateStatusAndConfirmPayment(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	o := newOrder(t, uuid.Must(uuid.NewV4()), now, "7")
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.UpdateStatus(ctx, o.ID, order.StatusShipped, now))
	require.NoError(t, repo.ConfirmPayment(ctx, o.ID, now))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, now.Equal(*got.UpdatedAt))
	require.NotNil(t, got.Payment)
	assert.True(t, got.Payment.IsConfirmed)
	require.NotNil(t, got.Payment.PaidAt)
	assert.True(t, now.Equal(*got.Payment.PaidAt))

	err = repo.ConfirmPayment(ctx, uuid.Must(uuid.NewV4()), now)
	require.ErrorIs(t, err, order.ErrPaymentNotFound)
}

func TestRepository_MoneyIsStoredExactly(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	// quantities 1, 2 and 3; the total needs more digits than a float64 holds
	o := newOrder(t, uuid.Must(uuid.NewV4()), now, "0.10", "9999999.99", "1234567890123.45")
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)

	require.Len(t, got.Items, len(o.Items))
	for i := range o.Items {
		assert.True(t, o.Items[i].UnitPrice.Equal(got.Items[i].UnitPrice), "unit price %s, stored %s", o.Items[i].UnitPrice, got.Items[i].UnitPrice)
	}
	assert.True(t, o.TotalAmount.Equal(got.TotalAmount), "total %s, stored %s", o.TotalAmount, got.TotalAmount)
	assert.True(t, order.CalculateTotal(got.Items).Equal(got.TotalAmount), "stored total %s, stored items sum %s", got.TotalAmount, order.CalculateTotal(got.Items))
	require.NotNil(t, got.Payment)
	assert.True(t, got.TotalAmount.Equal(got.Payment.Amount))
	require.NotNil(t, got.Invoice)
	assert.True(t, got.TotalAmount.Equal(got.Invoice.TotalAmount))
}
