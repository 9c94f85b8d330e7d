package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
)

// ErrLineNotFound is returned when a cart line does not exist or belongs to
// another user.
var ErrLineNotFound = errors.New("cart line not found")

// DuplicateLineError reports a violation of the (user, book) uniqueness
// constraint on cart lines.
type DuplicateLineError struct {
	UserID string
	BookID string
}

func (e *DuplicateLineError) Error() string {
	return fmt.Sprintf("cart line for user %s and book %s already exists: (user, book) must be unique", e.UserID, e.BookID)
}

// Fields names the fields taking part in the violated constraint.
func (e *DuplicateLineError) Fields() []string {
	return []string{"user", "book"}
}

// BookNotFoundError indicates a cart line references a book that is no
// longer in the catalog.
type BookNotFoundError struct {
	LineID string
	BookID string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("book %s referenced by cart line %s not found", e.BookID, e.LineID)
}

// Line is one (user, book, count) intent to buy. User and Book never change
// after creation; only Count does.
type Line struct {
	ID        string    `json:"id" validate:"required"`
	UserID    string    `json:"user" validate:"required"`
	BookID    string    `json:"book" validate:"required"`
	Count     int       `json:"count" validate:"gte=1"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResolvedLine is a cart line joined with the current catalog data of its book.
type ResolvedLine struct {
	Line
	Book catalog.Book
}

// Repository defines persistence operations for cart lines. Implementations
// return lines of a user in insertion order.
type Repository interface {
	// Create inserts a line, failing with *DuplicateLineError when the user
	// already has a line for the book.
	Create(ctx context.Context, line *Line) error
	// UpdateCount sets the count of the user's line and returns the result.
	UpdateCount(ctx context.Context, userID, id string, count int) (*Line, error)
	Delete(ctx context.Context, userID, id string) error
	ListByUser(ctx context.Context, userID string) ([]Line, error)
	// DeleteByUser removes every line of the user and reports how many went.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
