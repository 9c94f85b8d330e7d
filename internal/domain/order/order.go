package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
)

// Status is the fulfilment state of an order.
type Status string

const (
	// StatusInProgress is the state every order is created in.
	StatusInProgress Status = "in_progress"
	// StatusDone is set by back-office tooling once an order is fulfilled.
	StatusDone Status = "done"
)

// Order is an immutable snapshot of a completed checkout. Totals are computed
// once at creation and Details are copied by value, so later catalog or
// profile edits never change a stored order.
type Order struct {
	ID            string          `json:"id" validate:"required"`
	Status        Status          `json:"status" validate:"oneof=in_progress done"`
	TotalPrice    decimal.Decimal `json:"totalPrice" validate:"gte=0"`
	TotalDiscount decimal.Decimal `json:"totalDiscount" validate:"gte=0"`
	UserID        string          `json:"user" validate:"required"`
	PaymentTypeID string          `json:"paymentType" validate:"required"`
	Details       Details         `json:"details"`
	// CheckoutKey is the optional client idempotency key of the checkout
	// that produced the order. Unique per user.
	CheckoutKey string    `json:"checkoutKey,omitempty" validate:"max=128"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Details is the denormalized purchase record stored with an order.
type Details struct {
	User  UserSnapshot   `json:"user"`
	Books []BookSnapshot `json:"books" validate:"min=1,dive"`
}

// UserSnapshot captures the buyer's profile at order time.
type UserSnapshot struct {
	Name     string          `json:"name"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Discount decimal.Decimal `json:"discount" validate:"gte=0,lte=50"`
}

// BookSnapshot captures one cart line's catalog values at order time.
type BookSnapshot struct {
	Title    string          `json:"title" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Discount decimal.Decimal `json:"discount" validate:"gte=0,lte=100"`
	Count    int             `json:"count" validate:"gte=1"`
}

// Repository defines persistence operations for orders. Orders are
// write-once: there is no update or delete.
type Repository interface {
	// Create persists a new order. Stores that enforce references return
	// *validation.Error for a missing user or payment type, and
	// ErrCheckoutConflict when the checkout key was already used.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	FindByCheckoutKey(ctx context.Context, userID, key string) (*Order, error)
}

// Transactor runs fn in a single storage transaction. Repository calls made
// with the context passed to fn take part in it. A non-nil error from fn
// rolls the transaction back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartResolver loads a user's cart lines joined with their books.
type CartResolver interface {
	Resolve(ctx context.Context, userID string) ([]cart.ResolvedLine, error)
}
