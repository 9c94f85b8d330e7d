package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookstore-checkout/internal/domain/payment"
)

const (
	paymentTypeExistsSQL = `SELECT EXISTS (SELECT 1 FROM payment_types WHERE id = $1)`

	upsertPaymentTypeSQL = `INSERT INTO payment_types (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
)

var _ payment.Repository = (*PaymentTypeRepository)(nil)

// PaymentTypeRepository implements payment.Repository backed by PostgreSQL.
type PaymentTypeRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentTypeRepository returns a PaymentTypeRepository that uses the given pool.
func NewPaymentTypeRepository(pool *pgxpool.Pool) *PaymentTypeRepository {
	return &PaymentTypeRepository{pool: pool}
}

// Exists reports whether a payment type with the given id exists.
func (r *PaymentTypeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := conn(ctx, r.pool).QueryRow(ctx, paymentTypeExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking payment type %q: %w", id, err)
	}
	return ok, nil
}

// Upsert inserts a payment type or renames the existing one.
func (r *PaymentTypeRepository) Upsert(ctx context.Context, t payment.Type) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, upsertPaymentTypeSQL, t.ID, t.Name); err != nil {
		return fmt.Errorf("upserting payment type %q: %w", t.ID, err)
	}
	return nil
}
