package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/domain/payment"
	"github.com/xenking/bookstore-checkout/internal/domain/user"
	"github.com/xenking/bookstore-checkout/internal/storage/mongodb"
	"github.com/xenking/bookstore-checkout/internal/storage/postgres"
	"github.com/xenking/bookstore-checkout/pkg/health"
)

// BookStore is the catalog with write access for seeding.
type BookStore interface {
	catalog.Repository
	Upsert(ctx context.Context, b catalog.Book) error
}

// UserStore is the user lookup with write access for seeding.
type UserStore interface {
	user.Repository
	Upsert(ctx context.Context, u user.User) error
}

// PaymentStore is the payment type lookup with write access for seeding.
type PaymentStore interface {
	payment.Repository
	Upsert(ctx context.Context, t payment.Type) error
}

// OrderStore is the order repository plus the export cursor.
type OrderStore interface {
	order.Repository
	// Stream calls fn for every order created in [from, to), oldest first.
	Stream(ctx context.Context, from, to time.Time, fn func(*order.Order) error) error
}

// Stores is one storage backend opened by OpenStores.
type Stores struct {
	Books    BookStore
	Users    UserStore
	Payments PaymentStore
	Lines    cart.Repository
	Orders   OrderStore
	Tx       order.Transactor
	// Ping reports whether the backend is reachable.
	Ping health.CheckFunc
	// Close releases the connections.
	Close func()
}

// OpenStores connects to the configured backend and prepares its schema.
func OpenStores(ctx context.Context, cfg StorageConfig) (*Stores, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg.DatabaseURL)
	case DriverMongo:
		return openMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, url string) (*Stores, error) {
	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return &Stores{
		Books:    postgres.NewBookRepository(pool),
		Users:    postgres.NewUserRepository(pool),
		Payments: postgres.NewPaymentTypeRepository(pool),
		Lines:    postgres.NewCartRepository(pool),
		Orders:   postgres.NewOrderRepository(pool),
		Tx:       postgres.NewTransactor(pool),
		Ping:     health.PingCheck(pool),
		Close:    pool.Close,
	}, nil
}

func openMongo(ctx context.Context, uri, database string) (*Stores, error) {
	db, err := mongodb.Connect(ctx, uri, database)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}
	closeFn := func() { _ = db.Client().Disconnect(context.Background()) }

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		closeFn()
		return nil, errors.Wrap(err, "ensure indexes")
	}

	return &Stores{
		Books:    mongodb.NewBookRepository(db),
		Users:    mongodb.NewUserRepository(db),
		Payments: mongodb.NewPaymentTypeRepository(db),
		Lines:    mongodb.NewCartRepository(db),
		Orders:   mongodb.NewOrderRepository(db),
		Tx:       mongodb.NewTransactor(db),
		Ping: func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		},
		Close: closeFn,
	}, nil
}
