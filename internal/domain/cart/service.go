package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
	"github.com/xenking/bookstore-checkout/internal/domain/validation"
)

// Service implements the cart line lifecycle: add, change count, remove.
// Bulk removal at checkout belongs to the order service.
type Service struct {
	lines    Repository
	books    catalog.Repository
	resolver *Resolver
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(lines Repository, books catalog.Repository) *Service {
	return &Service{
		lines:    lines,
		books:    books,
		resolver: NewResolver(lines, books),
		now:      time.Now,
	}
}

// Add puts count copies of a book into the user's cart. Adding a book that is
// already in the cart fails with *DuplicateLineError; use UpdateCount instead.
func (s *Service) Add(ctx context.Context, userID, bookID string, count int) (*Line, error) {
	l := &Line{
		ID:        uuid.New().String(),
		UserID:    userID,
		BookID:    bookID,
		Count:     count,
		CreatedAt: s.now().UTC(),
	}
	if err := validation.Struct(l); err != nil {
		return nil, err
	}

	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, validation.NewError("book", "exists")
		}
		return nil, errors.Wrap(err, "get book")
	}

	if err := s.lines.Create(ctx, l); err != nil {
		var dup *DuplicateLineError
		if errors.As(err, &dup) {
			return nil, dup
		}
		return nil, errors.Wrap(err, "create cart line")
	}
	return l, nil
}

// UpdateCount changes the count of one of the user's cart lines.
func (s *Service) UpdateCount(ctx context.Context, userID, lineID string, count int) (*Line, error) {
	if count < 1 {
		return nil, validation.NewError("count", "gte")
	}

	l, err := s.lines.UpdateCount(ctx, userID, lineID, count)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, errors.Wrap(err, "update cart line")
	}
	return l, nil
}

// Remove deletes one of the user's cart lines.
func (s *Service) Remove(ctx context.Context, userID, lineID string) error {
	if err := s.lines.Delete(ctx, userID, lineID); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return errors.Wrap(err, "delete cart line")
	}
	return nil
}

// List returns the user's cart with current book data.
func (s *Service) List(ctx context.Context, userID string) ([]ResolvedLine, error) {
	return s.resolver.Resolve(ctx, userID)
}
