package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	CreateCustomer(ctx context.Context, c *Customer) (*Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) (*Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

const minNameLength = 2

// normalize trims the fields and lowercases the email, then rejects values
// that are blank once trimmed.
func normalize(c *Customer) error {
	c.FullName = strings.TrimSpace(c.FullName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Address = strings.TrimSpace(c.Address)

	if utf8.RuneCountInString(c.FullName) < minNameLength {
		return fmt.Errorf("%w: full name must be at least %d characters long", ErrInvalidCustomer, minNameLength)
	}
	if c.Email == "" {
		return fmt.Errorf("%w: email cannot be blank", ErrInvalidCustomer)
	}
	return nil
}

func (s *service) CreateCustomer(ctx context.Context, c *Customer) (*Customer, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate customer id: %w", err)
	}

	if err := normalize(c); err != nil {
		return nil, err
	}
	c.ID = id
	c.CreatedAt = s.now().UTC()
	c.UpdatedAt = nil

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create customer in repository")
		return nil, fmt.Errorf("service: failed to save customer: %w", err)
	}

	log.Info().Stringer("customer_id", c.ID).Msg("service: customer created")
	return c, nil
}

func (s *service) GetCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to get customer by id '%s': %w", id, err)
	}
	return c, nil
}

func (s *service) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	customers, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list customers: %w", err)
	}
	return customers, nil
}

// UpdateCustomer overwrites the mutable fields; CreatedAt is kept from storage.
func (s *service) UpdateCustomer(ctx context.Context, c *Customer) (*Customer, error) {
	if err := normalize(c); err != nil {
		return nil, err
	}

	existing, err := s.GetCustomerByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = &now

	if err := s.repo.Update(ctx, c); err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			return nil, ErrEmailExists
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("customer_id", c.ID).Msg("service: failed to update customer")
		return nil, fmt.Errorf("service: failed to update customer by id '%s': %w", c.ID, err)
	}
	return c, nil
}

// DeleteCustomer removes the customer only. Orders keep their customer
// reference and stay readable.
func (s *service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("customer_id", id).Msg("service: failed to delete customer")
		return fmt.Errorf("service: failed to delete customer by id '%s': %w", id, err)
	}
	return nil
}
