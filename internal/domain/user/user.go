package user

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no user matches the requested id.
var ErrNotFound = errors.New("user not found")

// User is an authenticated customer as supplied by the auth layer.
// DiscountPercent is the personal discount in the range [0, 50].
type User struct {
	ID              string
	Name            string
	Email           string
	DiscountPercent decimal.Decimal
}

// Repository provides user lookup for the auth layer.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
