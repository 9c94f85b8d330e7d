package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
)

// Resolver loads a user's cart lines together with their books, fetching
// all referenced books in a single batch.
type Resolver struct {
	lines Repository
	books catalog.Repository
}

// NewResolver creates a Resolver over the given cart and catalog stores.
func NewResolver(lines Repository, books catalog.Repository) *Resolver {
	return &Resolver{lines: lines, books: books}
}

// Resolve returns the user's cart lines in insertion order, each carrying the
// current title, price and discount of its book. A line whose book has been
// removed from the catalog fails the whole call with *BookNotFoundError.
func (r *Resolver) Resolve(ctx context.Context, userID string) ([]ResolvedLine, error) {
	lines, err := r.lines.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.BookID
	}

	books, err := r.books.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get books")
	}

	byID := make(map[string]catalog.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	out := make([]ResolvedLine, len(lines))
	for i, l := range lines {
		b, ok := byID[l.BookID]
		if !ok {
			return nil, &BookNotFoundError{LineID: l.ID, BookID: l.BookID}
		}
		out[i] = ResolvedLine{Line: l, Book: b}
	}
	return out, nil
}
