package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/shopbridge/order-service/internal/db"
)

var (
	ErrNotFound    = errors.New("customer not found")
	ErrEmailExists = errors.New("email already exists")

	ErrInvalidCustomer = errors.New("invalid customer")
)

type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	List(ctx context.Context, limit, offset int) ([]Customer, error)
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *db.DB
	sb sq.StatementBuilderType
}

func NewRepository(conn *db.DB) Repository {
	return &repository{db: conn, sb: conn.Builder()}
}

var customerColumns = []string{"id", "full_name", "email", "address", "created_at", "updated_at"}

type customerRow struct {
	ID        string       `db:"id"`
	FullName  string       `db:"full_name"`
	Email     string       `db:"email"`
	Address   string       `db:"address"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

func (r customerRow) toModel() (*Customer, error) {
	id, err := uuid.FromString(r.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: corrupt customer id %q: %w", r.ID, err)
	}
	c := &Customer{
		ID:        id,
		FullName:  r.FullName,
		Email:     r.Email,
		Address:   r.Address,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.UpdatedAt.Valid {
		t := r.UpdatedAt.Time.UTC()
		c.UpdatedAt = &t
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, c *Customer) error {
	query, args, err := r.sb.Insert("customers").
		Columns(customerColumns...).
		Values(c.ID.String(), c.FullName, c.Email, c.Address, c.CreatedAt.UTC(), nil).
		ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build insert customer query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		log.Error().Err(err).Stringer("customer_id", c.ID).Msg("repository: failed to insert customer")
		return fmt.Errorf("repository: failed to insert customer: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	query, args, err := r.sb.Select(customerColumns...).
		From("customers").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build get customer query: %w", err)
	}

	var row customerRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("customer_id", id).Msg("repository: failed to select customer")
		return nil, fmt.Errorf("repository: failed to select customer %s: %w", id, err)
	}
	return row.toModel()
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Customer, error) {
	q := r.sb.Select(customerColumns...).From("customers").OrderBy("created_at", "id")
	q = db.Paginate(q, limit, offset)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build list customers query: %w", err)
	}

	var rows []customerRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		log.Error().Err(err).Msg("repository: failed to list customers")
		return nil, fmt.Errorf("repository: failed to list customers: %w", err)
	}

	customers := make([]Customer, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, nil
}

func (r *repository) Update(ctx context.Context, c *Customer) error {
	var updatedAt interface{}
	if c.UpdatedAt != nil {
		updatedAt = c.UpdatedAt.UTC()
	}

	query, args, err := r.sb.Update("customers").
		SetMap(map[string]interface{}{
			"full_name":  c.FullName,
			"email":      c.Email,
			"address":    c.Address,
			"updated_at": updatedAt,
		}).
		Where(sq.Eq{"id": c.ID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build update customer query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		log.Error().Err(err).Stringer("customer_id", c.ID).Msg("repository: failed to update customer")
		return fmt.Errorf("repository: failed to update customer %s: %w", c.ID, err)
	}
	return requireAffected(res)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := r.sb.Delete("customers").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build delete customer query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Stringer("customer_id", id).Msg("repository: failed to delete customer")
		return fmt.Errorf("repository: failed to delete customer %s: %w", id, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
