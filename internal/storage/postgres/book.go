package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
)

const (
	getBookByIDSQL = `SELECT id, title, price, discount FROM books WHERE id = $1`

	getBooksByIDsSQL = `SELECT id, title, price, discount FROM books WHERE id = ANY($1)`

	upsertBookSQL = `INSERT INTO books (id, title, price, discount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, price = EXCLUDED.price, discount = EXCLUDED.discount`
)

var _ catalog.Repository = (*BookRepository)(nil)

// BookRepository implements catalog.Repository backed by PostgreSQL.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository returns a BookRepository that uses the given pool.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// GetByID returns a single book by its identifier.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*catalog.Book, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getBookByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBook)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}
	return &b, nil
}

// GetByIDs returns books matching any of the given IDs.
func (r *BookRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Book, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getBooksByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting books by ids: %w", err)
	}
	books, err := pgx.CollectRows(rows, scanBook)
	if err != nil {
		return nil, fmt.Errorf("getting books by ids: %w", err)
	}
	return books, nil
}

// Upsert inserts a book or overwrites the existing row with the same id.
func (r *BookRepository) Upsert(ctx context.Context, b catalog.Book) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, upsertBookSQL, b.ID, b.Title, b.Price, b.Discount); err != nil {
		return fmt.Errorf("upserting book %q: %w", b.ID, err)
	}
	return nil
}

func scanBook(row pgx.CollectableRow) (catalog.Book, error) {
	var b catalog.Book
	err := row.Scan(&b.ID, &b.Title, &b.Price, &b.Discount)
	return b, err
}
