package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Book is the part of a catalog entry that checkout reads. Discount is a
// percentage in the range [0, 100].
type Book struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	Discount decimal.Decimal
}

// Repository defines read operations for the book catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Book, error)
	// GetByIDs returns the books matching any of ids. Missing ids are
	// silently absent from the result.
	GetByIDs(ctx context.Context, ids []string) ([]Book, error)
}
