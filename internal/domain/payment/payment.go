// Package payment holds the payment type reference an order points to.
// Payment processing itself happens outside this service.
package payment

import "context"

// Type is a payment method an order may reference.
type Type struct {
	ID   string
	Name string
}

// Repository reports whether a payment type exists.
type Repository interface {
	Exists(ctx context.Context, id string) (bool, error)
}
