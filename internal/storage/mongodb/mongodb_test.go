//go:build integration

package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/domain/payment"
	"github.com/xenking/bookstore-checkout/internal/domain/user"
)

func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7", tcmongo.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, uri, "bookstore")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(context.Background()) })

	require.NoError(t, EnsureIndexes(ctx, db))
	require.NoError(t, EnsureIndexes(ctx, db))

	books := NewBookRepository(db)
	require.NoError(t, books.Upsert(ctx, catalog.Book{
		ID: "dune", Title: "Dune", Price: decimal.NewFromInt(100), Discount: decimal.NewFromInt(40),
	}))
	require.NoError(t, books.Upsert(ctx, catalog.Book{
		ID: "emma", Title: "Emma", Price: decimal.RequireFromString("19.99"), Discount: decimal.Zero,
	}))
	require.NoError(t, NewUserRepository(db).Upsert(ctx, user.User{
		ID: "u1", Name: "Ann", Email: "ann@example.com", DiscountPercent: decimal.NewFromInt(20),
	}))
	require.NoError(t, NewPaymentTypeRepository(db).Upsert(ctx, payment.Type{ID: "card", Name: "Card"}))

	return db
}

func newLine(userID, bookID string, count int) *cart.Line {
	return &cart.Line{
		ID:        uuid.New().String(),
		UserID:    userID,
		BookID:    bookID,
		Count:     count,
		CreatedAt: time.Now().UTC(),
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "19.99", "100", "0.005", "123456789.12"} {
		v, err := toDecimal128(decimal.RequireFromString(s))
		require.NoError(t, err)
		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString(s).Equal(back), s)
	}
}

func TestCartRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	carts := NewCartRepository(db)

	l := newLine("u1", "dune", 1)
	require.NoError(t, carts.Create(ctx, l))

	var dup *cart.DuplicateLineError
	require.ErrorAs(t, carts.Create(ctx, newLine("u1", "dune", 2)), &dup)
	require.NoError(t, carts.Create(ctx, newLine("u2", "dune", 2)))

	updated, err := carts.UpdateCount(ctx, "u1", l.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Count)

	_, err = carts.UpdateCount(ctx, "u2", l.ID, 3)
	require.ErrorIs(t, err, cart.ErrLineNotFound)

	require.NoError(t, carts.Delete(ctx, "u1", l.ID))
	require.ErrorIs(t, carts.Delete(ctx, "u1", l.ID), cart.ErrLineNotFound)

	n, err := carts.DeleteByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCheckout_PersistsOrderAndClearsCart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	books := NewBookRepository(db)
	carts := NewCartRepository(db)
	orders := NewOrderRepository(db)
	require.NoError(t, carts.Create(ctx, newLine("u1", "dune", 1)))
	require.NoError(t, carts.Create(ctx, newLine("u1", "emma", 3)))

	svc, err := order.NewService(order.Deps{
		Cart:     cart.NewResolver(carts, books),
		Lines:    carts,
		Orders:   orders,
		Payments: NewPaymentTypeRepository(db),
		Tx:       NewTransactor(db),
	})
	require.NoError(t, err)

	u, err := NewUserRepository(db).GetByID(ctx, "u1")
	require.NoError(t, err)

	o, err := svc.Save(ctx, *u, "card", order.WithIdempotencyKey("k1"))
	require.NoError(t, err)
	// Dune: 100 at 50% capped. Emma: 19.99 at 20%, three copies.
	assert.True(t, decimal.RequireFromString("97.98").Equal(o.TotalPrice), o.TotalPrice.String())
	assert.True(t, decimal.RequireFromString("61.99").Equal(o.TotalDiscount), o.TotalDiscount.String())

	lines, err := carts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	stored, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, o.TotalPrice.Equal(stored.TotalPrice))
	require.Len(t, stored.Details.Books, 2)
	prices := map[string]decimal.Decimal{}
	for _, b := range stored.Details.Books {
		prices[b.Title] = b.Price
	}
	assert.True(t, decimal.RequireFromString("19.99").Equal(prices["Emma"]))
	assert.True(t, decimal.NewFromInt(100).Equal(prices["Dune"]))

	replay, err := svc.Save(ctx, *u, "card", order.WithIdempotencyKey("k1"))
	require.NoError(t, err)
	assert.Equal(t, o.ID, replay.ID)

	_, err = svc.Save(ctx, *u, "card")
	require.ErrorIs(t, err, order.ErrEmptyCart)

	listed, err := orders.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestTransactor_AbortsOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	carts := NewCartRepository(db)

	boom := errors.New("boom")
	err := NewTransactor(db).InTx(ctx, func(ctx context.Context) error {
		if err := carts.Create(ctx, newLine("u1", "emma", 1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	lines, err := carts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestOrderRepository_CheckoutKeyUnique(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	orders := NewOrderRepository(db)

	newOrder := func(key string) *order.Order {
		return &order.Order{
			ID:            uuid.New().String(),
			Status:        order.StatusInProgress,
			UserID:        "u1",
			PaymentTypeID: "card",
			CheckoutKey:   key,
			Details:       order.Details{Books: []order.BookSnapshot{{Title: "Dune", Count: 1}}},
			CreatedAt:     time.Now().UTC(),
		}
	}

	require.NoError(t, orders.Create(ctx, newOrder("k1")))
	require.ErrorIs(t, orders.Create(ctx, newOrder("k1")), order.ErrCheckoutConflict)

	// Orders without a key are not covered by the unique index.
	require.NoError(t, orders.Create(ctx, newOrder("")))
	require.NoError(t, orders.Create(ctx, newOrder("")))

	var n int
	err := orders.Stream(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour), func(*order.Order) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
