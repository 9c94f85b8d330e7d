package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/validation"
)

const (
	createCartLineSQL = `INSERT INTO cart_lines (id, user_id, book_id, count, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	updateCartLineCountSQL = `UPDATE cart_lines SET count = $3
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, book_id, count, created_at`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE id = $1 AND user_id = $2`

	listCartLinesSQL = `SELECT id, user_id, book_id, count, created_at
		FROM cart_lines WHERE user_id = $1 ORDER BY created_at, id`

	deleteCartLinesByUserSQL = `DELETE FROM cart_lines WHERE user_id = $1`

	cartUserBookConstraint = "cart_lines_user_book_key"
	cartBookFKConstraint   = "cart_lines_book_id_fkey"
	cartUserFKConstraint   = "cart_lines_user_id_fkey"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Create inserts a cart line. A second line for the same (user, book) pair
// fails with *cart.DuplicateLineError.
func (r *CartRepository) Create(ctx context.Context, l *cart.Line) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createCartLineSQL,
		l.ID, l.UserID, l.BookID, l.Count, l.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if name, ok := constraintViolation(err, codeUniqueViolation); ok && name == cartUserBookConstraint {
		return &cart.DuplicateLineError{UserID: l.UserID, BookID: l.BookID}
	}
	if name, ok := constraintViolation(err, codeForeignKeyViolation); ok {
		switch name {
		case cartBookFKConstraint:
			return validation.NewError("book", "exists")
		case cartUserFKConstraint:
			return validation.NewError("user", "exists")
		}
	}
	return fmt.Errorf("creating cart line %q: %w", l.ID, err)
}

// UpdateCount sets the count of one of the user's lines.
func (r *CartRepository) UpdateCount(ctx context.Context, userID, id string, count int) (*cart.Line, error) {
	if uuid.Validate(id) != nil {
		return nil, cart.ErrLineNotFound
	}

	rows, err := conn(ctx, r.pool).Query(ctx, updateCartLineCountSQL, id, userID, count)
	if err != nil {
		return nil, fmt.Errorf("updating cart line %q: %w", id, err)
	}
	l, err := pgx.CollectExactlyOneRow(rows, scanCartLine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("updating cart line %q: %w", id, err)
	}
	return &l, nil
}

// Delete removes one of the user's lines.
func (r *CartRepository) Delete(ctx context.Context, userID, id string) error {
	if uuid.Validate(id) != nil {
		return cart.ErrLineNotFound
	}

	tag, err := conn(ctx, r.pool).Exec(ctx, deleteCartLineSQL, id, userID)
	if err != nil {
		return fmt.Errorf("deleting cart line %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// ListByUser returns the user's lines in insertion order. Inside a
// transaction the rows are locked until commit, so a concurrent checkout of
// the same cart waits and then reads what is left.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Line, error) {
	query := listCartLinesSQL
	if _, ok := txFrom(ctx); ok {
		query += " FOR UPDATE"
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines of %q: %w", userID, err)
	}
	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines of %q: %w", userID, err)
	}
	return lines, nil
}

// DeleteByUser removes every line of the user and reports how many were
// removed.
func (r *CartRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteCartLinesByUserSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ID, &l.UserID, &l.BookID, &l.Count, &l.CreatedAt)
	return l, err
}
