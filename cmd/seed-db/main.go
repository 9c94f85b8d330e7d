package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	appkg "github.com/xenking/bookstore-checkout/internal/app"
	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
	"github.com/xenking/bookstore-checkout/internal/domain/payment"
	"github.com/xenking/bookstore-checkout/internal/domain/user"
	"github.com/xenking/bookstore-checkout/internal/handler"
)

var demoUsers = []user.User{
	{ID: "demo", Name: "Demo Reader", Email: "demo@example.com", DiscountPercent: decimal.NewFromInt(20)},
	{ID: "guest", Name: "Guest Reader", Email: "guest@example.com", DiscountPercent: decimal.Zero},
}

var demoPaymentTypes = []payment.Type{
	{ID: "card", Name: "Credit card"},
	{ID: "cash", Name: "Cash on delivery"},
	{ID: "invoice", Name: "Invoice"},
}

func main() {
	var (
		storage   appkg.StorageConfig
		booksFile string
		jwtSecret string
		tokenTTL  time.Duration
	)

	flag.StringVar(&storage.Driver, "driver", appkg.DriverPostgres, "storage driver: postgres or mongo")
	flag.StringVar(&storage.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storage.MongoURI, "mongo-uri", "", "MongoDB connection URI")
	flag.StringVar(&storage.MongoDatabase, "mongo-database", "bookstore", "MongoDB database name")
	flag.StringVar(&booksFile, "books-file", "db/seed/books.json", "path to books JSON file")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HS256 secret for the demo token (or BOOKSTORE_AUTH_JWT_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the demo token")
	flag.Parse()

	if storage.DatabaseURL == "" {
		storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("BOOKSTORE_AUTH_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, storage, booksFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")

	if jwtSecret == "" {
		slog.Warn("no JWT secret given, skipping demo token")
		return
	}
	token, err := handler.SignToken([]byte(jwtSecret), demoUsers[0].ID, time.Now(), tokenTTL)
	if err != nil {
		slog.Error("sign demo token", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("demo token issued", slog.String("user", demoUsers[0].ID), slog.Duration("ttl", tokenTTL))
	fmt.Println(token)
}

func run(ctx context.Context, cfg appkg.StorageConfig, booksFile string) error {
	slog.Info("connecting to storage", slog.String("driver", cfg.Driver))

	stores, err := appkg.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	if err := seedBooks(ctx, stores.Books, booksFile); err != nil {
		return errors.Wrap(err, "seed books")
	}

	slog.Info("upserting payment types", slog.Int("count", len(demoPaymentTypes)))
	for _, t := range demoPaymentTypes {
		if err := stores.Payments.Upsert(ctx, t); err != nil {
			return errors.Wrapf(err, "upsert payment type %s", t.ID)
		}
	}

	slog.Info("upserting users", slog.Int("count", len(demoUsers)))
	for _, u := range demoUsers {
		if err := stores.Users.Upsert(ctx, u); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
		slog.Info("upserted user", slog.String("id", u.ID), slog.String("discount", u.DiscountPercent.String()))
	}
	return nil
}

func seedBooks(ctx context.Context, books appkg.BookStore, path string) error {
	slog.Info("reading books file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read books file")
	}
	parsed, err := parseBooks(data)
	if err != nil {
		return errors.Wrap(err, "parse books JSON")
	}

	slog.Info("upserting books", slog.Int("count", len(parsed)))
	for _, b := range parsed {
		if err := books.Upsert(ctx, b); err != nil {
			return errors.Wrapf(err, "upsert book %s", b.ID)
		}
		slog.Info("upserted book", slog.String("id", b.ID), slog.String("title", b.Title))
	}
	return nil
}

func parseBooks(data []byte) ([]catalog.Book, error) {
	var books []catalog.Book
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var b catalog.Book
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				b.ID, err = d.Str()
			case "title":
				b.Title, err = d.Str()
			case "price":
				b.Price, err = decodeDecimal(d)
			case "discount":
				b.Discount, err = decodeDecimal(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if b.ID == "" || b.Title == "" {
			return errors.New("book needs id and title")
		}
		books = append(books, b)
		return nil
	})
	return books, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}
