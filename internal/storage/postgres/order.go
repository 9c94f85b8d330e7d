package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/domain/validation"
)

const (
	orderColumns = `id, status, total_price, total_discount, user_id, payment_type_id,
		details, checkout_key, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`

	getOrderByCheckoutKeySQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND checkout_key = $2`

	listOrdersCreatedBetweenSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at, id`

	orderUserFKConstraint        = "orders_user_id_fkey"
	orderPaymentTypeFKConstraint = "orders_payment_type_id_fkey"
	orderCheckoutKeyConstraint   = "orders_user_checkout_key_idx"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The details snapshot is serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	details, err := json.Marshal(o.Details)
	if err != nil {
		return fmt.Errorf("marshaling order details: %w", err)
	}

	var key *string
	if o.CheckoutKey != "" {
		key = &o.CheckoutKey
	}

	_, err = conn(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, string(o.Status), o.TotalPrice, o.TotalDiscount, o.UserID, o.PaymentTypeID,
		details, key, o.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if name, ok := constraintViolation(err, codeForeignKeyViolation); ok {
		switch name {
		case orderUserFKConstraint:
			return validation.NewError("user", "exists")
		case orderPaymentTypeFKConstraint:
			return validation.NewError("paymentType", "exists")
		}
	}
	if name, ok := constraintViolation(err, codeUniqueViolation); ok && name == orderCheckoutKeyConstraint {
		return order.ErrCheckoutConflict
	}
	return fmt.Errorf("creating order %q: %w", o.ID, err)
}

// GetByID returns the order with the given id or order.ErrOrderNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if uuid.Validate(id) != nil {
		return nil, order.ErrOrderNotFound
	}
	return r.one(ctx, getOrderByIDSQL, id)
}

// FindByCheckoutKey returns the user's order created with key.
func (r *OrderRepository) FindByCheckoutKey(ctx context.Context, userID, key string) (*order.Order, error) {
	return r.one(ctx, getOrderByCheckoutKeySQL, userID, key)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return orders, nil
}

// Stream calls fn for every order created in [from, to), oldest first,
// without loading the whole range into memory. A non-nil error from fn stops
// the iteration and is returned as is.
func (r *OrderRepository) Stream(ctx context.Context, from, to time.Time, fn func(*order.Order) error) error {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersCreatedBetweenSQL, from, to)
	if err != nil {
		return fmt.Errorf("streaming orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return fmt.Errorf("scanning order: %w", err)
		}
		if err := fn(&o); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("streaming orders: %w", err)
	}
	return nil
}

func (r *OrderRepository) one(ctx context.Context, query string, args ...any) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		status  string
		details []byte
		key     *string
	)
	err := row.Scan(
		&o.ID, &status, &o.TotalPrice, &o.TotalDiscount, &o.UserID, &o.PaymentTypeID,
		&details, &key, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if key != nil {
		o.CheckoutKey = *key
	}
	if err := json.Unmarshal(details, &o.Details); err != nil {
		return o, fmt.Errorf("unmarshaling order details: %w", err)
	}
	return o, nil
}
