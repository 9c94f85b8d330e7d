package order

import "github.com/go-faster/errors"

var (
	// ErrEmptyCart is returned by checkout when the user has no cart lines.
	ErrEmptyCart = errors.New("no items in cart")
	// ErrOrderNotFound is returned when an order does not exist or is not
	// visible to the requesting user.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCheckoutConflict is returned when another checkout for the same user
	// holds the cart. The whole checkout may be retried.
	ErrCheckoutConflict = errors.New("concurrent checkout conflict")
)
