package customer_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbridge/order-service/internal/customer"
	"github.com/shopbridge/order-service/internal/db/dbtest"
)

func newCustomer(email string, createdAt time.Time) *customer.Customer {
	return &customer.Customer{
		ID:        uuid.Must(uuid.NewV4()),
		FullName:  "Jane Roe",
		Email:     email,
		Address:   "1 Main St",
		CreatedAt: createdAt,
	}
}

func TestCustomerRepository_CRUD(t *testing.T) {
	repo := customer.NewRepository(dbtest.Open(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	c := newCustomer("jane@example.com", now)
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
	}

	updatedAt := now.Add(time.Minute)
	c.FullName = "Jane Q. Roe"
	c.UpdatedAt = &updatedAt
	require.NoError(t, repo.Update(ctx, c))

	got, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Q. Roe", got.FullName)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, updatedAt.Equal(*got.UpdatedAt))

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	require.ErrorIs(t, err, customer.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, c.ID), customer.ErrNotFound)
	require.ErrorIs(t, repo.Update(ctx, c), customer.ErrNotFound)
}

func TestCustomerRepository_DuplicateEmail(t *testing.T) {
	repo := customer.NewRepository(dbtest.Open(t))
	ctx := context.Background()
	now := time.Now().UTC()

	first := newCustomer("dup@example.com", now)
	second := newCustomer("other@example.com", now)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	require.ErrorIs(t, repo.Create(ctx, newCustomer("dup@example.com", now)), customer.ErrEmailExists)

	second.Email = "dup@example.com"
	require.ErrorIs(t, repo.Update(ctx, second), customer.ErrEmailExists)
}

func TestCustomerRepository_List(t *testing.T) {
	repo := customer.NewRepository(dbtest.Open(t))
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	a := newCustomer("a@example.com", base)
	b := newCustomer("b@example.com", base.Add(time.Second))
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	all, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, b.ID, page[0].ID)
}
