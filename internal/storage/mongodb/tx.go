package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xenking/bookstore-checkout/internal/domain/order"
)

var _ order.Transactor = (*Transactor)(nil)

// Transactor runs functions inside a MongoDB session transaction. The session
// travels in the context, so repository calls made with it join the
// transaction.
type Transactor struct {
	client *mongo.Client
}

// NewTransactor returns a Transactor for the client of db.
func NewTransactor(db *mongo.Database) *Transactor {
	return &Transactor{client: db.Client()}
}

// InTx commits when fn returns nil and aborts otherwise. The driver retries
// fn on transient errors such as write conflicts, so fn must tolerate being
// run more than once. Nested calls join the outer transaction.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(context.Background())

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return fmt.Errorf("running transaction: %w", err)
	}
	return nil
}
