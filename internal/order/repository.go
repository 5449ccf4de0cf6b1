package order

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
	"github.com/shopspring/decimal"

	"github.com/shopbridge/order-service/internal/db"
)

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Create(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type sqlRepository struct {
	db *db.DB
	sb sq.StatementBuilderType
}

func NewRepository(conn *db.DB) Repository {
	return &sqlRepository{db: conn, sb: conn.Builder()}
}

var (
	orderColumns   = []string{"id", "customer_id", "status", "total_amount", "created_at", "updated_at", "deleted_at"}
	itemColumns    = []string{"id", "order_id", "product_id", "product_name", "quantity", "unit_price", "line_no"}
	paymentColumns = []string{"id", "order_id", "method", "amount", "paid_at", "is_confirmed"}
	invoiceColumns = []string{"id", "order_id", "invoice_number", "issued_at", "total_amount"}
)

func (r *sqlRepository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	q := r.sb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("created_at", "id")

	if filter.CustomerID != nil {
		q = q.Where(sq.Eq{"customer_id": filter.CustomerID.String()})
	}
	q = db.Paginate(q, filter.Limit, filter.Offset)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build list query: %w", err)
	}

	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		log.Error().Err(err).Msg("repository: failed to list orders")
		return nil, fmt.Errorf("repository: failed to list orders: %w", err)
	}

	orders := make([]Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := r.attachRelations(ctx, r.db, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *sqlRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query, args, err := r.sb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id.String(), "deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build get query: %w", err)
	}

	var row orderRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("repository: failed to select order by id")
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	o, err := row.toModel()
	if err != nil {
		return nil, err
	}

	orders := []Order{*o}
	if err := r.attachRelations(ctx, r.db, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

func (r *sqlRepository) Create(ctx context.Context, o *Order) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		row := orderRowFromModel(o)
		query, args, err := r.sb.Insert("orders").
			Columns(orderColumns...).
			Values(row.ID, row.CustomerID, row.Status, row.TotalAmount, row.CreatedAt, row.UpdatedAt, row.DeletedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("repository: failed to build insert order query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}

		return r.insertChildren(ctx, tx, o)
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("repository: failed to create order")
		return err
	}
	return nil
}

func (r *sqlRepository) Update(ctx context.Context, o *Order) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		row := orderRowFromModel(o)
		query, args, err := r.sb.Update("orders").
			SetMap(map[string]interface{}{
				"customer_id":  row.CustomerID,
				"status":       row.Status,
				"total_amount": row.TotalAmount,
				"updated_at":   row.UpdatedAt,
			}).
			Where(sq.Eq{"id": row.ID, "deleted_at": nil}).
			ToSql()
		if err != nil {
			return fmt.Errorf("repository: failed to build update order query: %w", err)
		}

		if err := execAffectingOne(ctx, tx, query, args, ErrOrderNotFound); err != nil {
			return err
		}

		for _, table := range []string{"order_items", "payments", "invoices"} {
			if err := r.deleteByOrderID(ctx, tx, table, o.ID); err != nil {
				return err
			}
		}

		return r.insertChildren(ctx, tx, o)
	})
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			log.Error().Err(err).Stringer("order_id", o.ID).Msg("repository: failed to update order")
		}
		return err
	}
	return nil
}

func (r *sqlRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error {
	query, args, err := r.sb.Update("orders").
		Set("status", status.String()).
		Set("updated_at", at).
		Where(sq.Eq{"id": id.String(), "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build update status query: %w", err)
	}

	if err := execAffectingOne(ctx, r.db, query, args, ErrOrderNotFound); err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", status).Msg("repository: failed to update order status")
		}
		return err
	}
	return nil
}

func (r *sqlRepository) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	query, args, err := r.sb.Update("payments").
		Set("is_confirmed", true).
		Set("paid_at", paidAt).
		Where(sq.Eq{"order_id": orderID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build confirm payment query: %w", err)
	}

	if err := execAffectingOne(ctx, r.db, query, args, ErrPaymentNotFound); err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			log.Error().Err(err).Stringer("order_id", orderID).Msg("repository: failed to confirm payment")
		}
		return err
	}
	return nil
}

func (r *sqlRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query, args, err := r.sb.Update("orders").
		Set("deleted_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": id.String(), "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build soft delete query: %w", err)
	}

	if err := execAffectingOne(ctx, r.db, query, args, ErrOrderNotFound); err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			log.Error().Err(err).Stringer("order_id", id).Msg("repository: failed to soft delete order")
		}
		return err
	}
	return nil
}

// Delete removes the order row and everything it owns, including orders that
// were already soft-deleted.
func (r *sqlRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"order_items", "payments", "invoices"} {
			if err := r.deleteByOrderID(ctx, tx, table, id); err != nil {
				return err
			}
		}

		query, args, err := r.sb.Delete("orders").Where(sq.Eq{"id": id.String()}).ToSql()
		if err != nil {
			return fmt.Errorf("repository: failed to build delete order query: %w", err)
		}
		return execAffectingOne(ctx, tx, query, args, ErrOrderNotFound)
	})
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			log.Error().Err(err).Stringer("order_id", id).Msg("repository: failed to delete order")
		}
		return err
	}
	return nil
}

func (r *sqlRepository) insertChildren(ctx context.Context, tx *sqlx.Tx, o *Order) error {
	if len(o.Items) > 0 {
		q := r.sb.Insert("order_items").Columns(itemColumns...)
		for i := range o.Items {
			row := itemRowFromModel(&o.Items[i], i)
			q = q.Values(row.ID, row.OrderID, row.ProductID, row.ProductName, row.Quantity, row.UnitPrice, row.LineNo)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("repository: failed to build insert items query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("repository: failed to insert order items for order %s: %w", o.ID, err)
		}
	}

	if o.Payment != nil {
		row := paymentRowFromModel(o.Payment)
		query, args, err := r.sb.Insert("payments").
			Columns(paymentColumns...).
			Values(row.ID, row.OrderID, row.Method, row.Amount, row.PaidAt, row.IsConfirmed).
			ToSql()
		if err != nil {
			return fmt.Errorf("repository: failed to build insert payment query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("repository: failed to insert payment for order %s: %w", o.ID, err)
		}
	}

	if o.Invoice != nil {
		row := invoiceRowFromModel(o.Invoice)
		query, args, err := r.sb.Insert("invoices").
			Columns(invoiceColumns...).
			Values(row.ID, row.OrderID, row.InvoiceNumber, row.IssuedAt, row.TotalAmount).
			ToSql()
		if err != nil {
			return fmt.Errorf("repository: failed to build insert invoice query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("repository: failed to insert invoice for order %s: %w", o.ID, err)
		}
	}

	return nil
}

func (r *sqlRepository) deleteByOrderID(ctx context.Context, tx *sqlx.Tx, table string, orderID uuid.UUID) error {
	query, args, err := r.sb.Delete(table).Where(sq.Eq{"order_id": orderID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build delete query for %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("repository: failed to delete %s for order %s: %w", table, orderID, err)
	}
	return nil
}

// attachRelations loads items, payments and invoices for the given orders with
// one query per relation and assigns them in place.
func (r *sqlRepository) attachRelations(ctx context.Context, q sqlx.QueryerContext, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[uuid.UUID]*Order, len(orders))
	for i := range orders {
		orders[i].Items = make([]OrderItem, 0)
		ids = append(ids, orders[i].ID.String())
		byID[orders[i].ID] = &orders[i]
	}

	var items []itemRow
	if err := r.selectByOrderIDs(ctx, q, &items, "order_items", itemColumns, ids, "order_id", "line_no"); err != nil {
		return err
	}
	for _, row := range items {
		item, err := row.toModel()
		if err != nil {
			return err
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, *item)
		}
	}

	var payments []paymentRow
	if err := r.selectByOrderIDs(ctx, q, &payments, "payments", paymentColumns, ids); err != nil {
		return err
	}
	for _, row := range payments {
		p, err := row.toModel()
		if err != nil {
			return err
		}
		if o, ok := byID[p.OrderID]; ok {
			o.Payment = p
		}
	}

	var invoices []invoiceRow
	if err := r.selectByOrderIDs(ctx, q, &invoices, "invoices", invoiceColumns, ids); err != nil {
		return err
	}
	for _, row := range invoices {
		inv, err := row.toModel()
		if err != nil {
			return err
		}
		if o, ok := byID[inv.OrderID]; ok {
			o.Invoice = inv
		}
	}

	return nil
}

func (r *sqlRepository) selectByOrderIDs(ctx context.Context, q sqlx.QueryerContext, dest interface{}, table string, columns, orderIDs []string, orderBy ...string) error {
	b := r.sb.Select(columns...).From(table).Where(sq.Eq{"order_id": orderIDs})
	if len(orderBy) > 0 {
		b = b.OrderBy(orderBy...)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("repository: failed to build %s query: %w", table, err)
	}
	if err := sqlx.SelectContext(ctx, q, dest, query, args...); err != nil {
		log.Error().Err(err).Str("table", table).Msg("repository: failed to load order relations")
		return fmt.Errorf("repository: failed to query %s: %w", table, err)
	}
	return nil
}

func execAffectingOne(ctx context.Context, ex sqlx.ExecerContext, query string, args []interface{}, notFound error) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository: failed to execute statement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

type orderRow struct {
	ID          string          `db:"id"`
	CustomerID  string          `db:"customer_id"`
	Status      string          `db:"status"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   sql.NullTime    `db:"updated_at"`
	DeletedAt   sql.NullTime    `db:"deleted_at"`
}

func orderRowFromModel(o *Order) orderRow {
	return orderRow{
		ID:          o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		Status:      o.Status.String(),
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt.UTC(),
		UpdatedAt:   nullTime(o.UpdatedAt),
		DeletedAt:   nullTime(o.DeletedAt),
	}
}

func (r orderRow) toModel() (*Order, error) {
	id, err := uuid.FromString(r.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: corrupt order id %q: %w", r.ID, err)
	}
	customerID, err := uuid.FromString(r.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("repository: corrupt customer id on order %s: %w", r.ID, err)
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("repository: order %s: %w", r.ID, err)
	}
	return &Order{
		ID:          id,
		CustomerID:  customerID,
		Status:      status,
		TotalAmount: r.TotalAmount,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   timePtr(r.UpdatedAt),
		DeletedAt:   timePtr(r.DeletedAt),
	}, nil
}

type itemRow struct {
	ID          string          `db:"id"`
	OrderID     string          `db:"order_id"`
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	LineNo      int             `db:"line_no"`
}

func itemRowFromModel(i *OrderItem, lineNo int) itemRow {
	return itemRow{
		ID:          i.ID.String(),
		OrderID:     i.OrderID.String(),
		ProductID:   i.ProductID.String(),
		ProductName: i.ProductName,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice,
		LineNo:      lineNo,
	}
}

func (r itemRow) toModel() (*OrderItem, error) {
	ids, err := parseUUIDs(r.ID, r.OrderID, r.ProductID)
	if err != nil {
		return nil, fmt.Errorf("repository: corrupt order item %q: %w", r.ID, err)
	}
	return &OrderItem{
		ID:          ids[0],
		OrderID:     ids[1],
		ProductID:   ids[2],
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
	}, nil
}

type paymentRow struct {
	ID          string          `db:"id"`
	OrderID     string          `db:"order_id"`
	Method      string          `db:"method"`
	Amount      decimal.Decimal `db:"amount"`
	PaidAt      sql.NullTime    `db:"paid_at"`
	IsConfirmed bool            `db:"is_confirmed"`
}

func paymentRowFromModel(p *Payment) paymentRow {
	return paymentRow{
		ID:          p.ID.String(),
		OrderID:     p.OrderID.String(),
		Method:      p.Method.String(),
		Amount:      p.Amount,
		PaidAt:      nullTime(p.PaidAt),
		IsConfirmed: p.IsConfirmed,
	}
}

func (r paymentRow) toModel() (*Payment, error) {
	ids, err := parseUUIDs(r.ID, r.OrderID)
	if err != nil {
		return nil, fmt.Errorf("repository: corrupt payment %q: %w", r.ID, err)
	}
	method, err := ParsePaymentMethod(r.Method)
	if err != nil {
		return nil, fmt.Errorf("repository: payment %s: %w", r.ID, err)
	}
	return &Payment{
		ID:          ids[0],
		OrderID:     ids[1],
		Method:      method,
		Amount:      r.Amount,
		PaidAt:      timePtr(r.PaidAt),
		IsConfirmed: r.IsConfirmed,
	}, nil
}

type invoiceRow struct {
	ID            string          `db:"id"`
	OrderID       string          `db:"order_id"`
	InvoiceNumber string          `db:"invoice_number"`
	IssuedAt      time.Time       `db:"issued_at"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
}

func invoiceRowFromModel(inv *Invoice) invoiceRow {
	return invoiceRow{
		ID:            inv.ID.String(),
		OrderID:       inv.OrderID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		IssuedAt:      inv.IssuedAt.UTC(),
		TotalAmount:   inv.TotalAmount,
	}
}

func (r invoiceRow) toModel() (*Invoice, error) {
	ids, err := parseUUIDs(r.ID, r.OrderID)
	if err != nil {
		return nil, fmt.Errorf("repository: corrupt invoice %q: %w", r.ID, err)
	}
	return &Invoice{
		ID:            ids[0],
		OrderID:       ids[1],
		InvoiceNumber: r.InvoiceNumber,
		IssuedAt:      r.IssuedAt.UTC(),
		TotalAmount:   r.TotalAmount,
	}, nil
}

func parseUUIDs(raw ...string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.FromString(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
