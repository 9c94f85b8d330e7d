package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	appkg "github.com/xenking/bookstore-checkout/internal/app"
	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/handler"
)

const (
	gzipBlockSize = 1 << 20
	progressEvery = 10_000
)

// streamFunc yields orders created in [from, to), oldest first.
type streamFunc func(ctx context.Context, from, to time.Time, fn func(*order.Order) error) error

func main() {
	var (
		storage  appkg.StorageConfig
		fromFlag string
		toFlag   string
		out      string
	)

	flag.StringVar(&storage.Driver, "driver", appkg.DriverPostgres, "storage driver: postgres or mongo")
	flag.StringVar(&storage.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storage.MongoURI, "mongo-uri", "", "MongoDB connection URI")
	flag.StringVar(&storage.MongoDatabase, "mongo-database", "bookstore", "MongoDB database name")
	flag.StringVar(&fromFlag, "from", "", "start of the export range, inclusive (RFC 3339 or YYYY-MM-DD)")
	flag.StringVar(&toFlag, "to", "", "end of the export range, exclusive (default: now)")
	flag.StringVar(&out, "out", "orders.ndjson.gz", "output file, - for stdout")
	flag.Parse()

	if storage.DatabaseURL == "" {
		storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	from, to, err := parseRange(fromFlag, toFlag, time.Now())
	if err != nil {
		slog.Error("invalid range", slog.String("error", err.Error()))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, storage, from, to, out); err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appkg.StorageConfig, from, to time.Time, out string) error {
	slog.Info("connecting to storage", slog.String("driver", cfg.Driver))

	stores, err := appkg.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	slog.Info("exporting orders",
		slog.Time("from", from),
		slog.Time("to", to),
		slog.String("out", out),
	)
	n, err := export(ctx, w, stores.Orders.Stream, from, to)
	if err != nil {
		return err
	}
	slog.Info("order export completed", slog.Int("orders", n))
	return nil
}

// export writes one JSON order per line, gzip-compressed, and returns the
// number of orders written.
func export(ctx context.Context, w io.Writer, stream streamFunc, from, to time.Time) (int, error) {
	zw := pgzip.NewWriter(w)
	if err := zw.SetConcurrency(gzipBlockSize, runtime.GOMAXPROCS(0)); err != nil {
		return 0, errors.Wrap(err, "configure gzip")
	}

	var (
		e jx.Encoder
		n int
	)
	err := stream(ctx, from, to, func(o *order.Order) error {
		e.Reset()
		handler.EncodeOrder(&e, o)
		if _, err := zw.Write(append(e.Bytes(), '\n')); err != nil {
			return errors.Wrap(err, "write order")
		}
		n++
		if n%progressEvery == 0 {
			slog.Info("export progress", slog.Int("orders", n))
		}
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return n, errors.Wrap(err, "stream orders")
	}
	if err := zw.Close(); err != nil {
		return n, errors.Wrap(err, "flush gzip")
	}
	return n, nil
}

func parseRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	if from == "" {
		return time.Time{}, time.Time{}, errors.New("--from is required")
	}
	start, err := parseTime(from)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "parse --from")
	}
	end := now.UTC()
	if to != "" {
		if end, err = parseTime(to); err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "parse --to")
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.Errorf("empty range [%s, %s)", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
