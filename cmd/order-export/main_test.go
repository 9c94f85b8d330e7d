package main

import (
	"bufio"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookstore-checkout/internal/domain/order"
)

func fakeStream(orders []order.Order, failAfter int) streamFunc {
	return func(_ context.Context, from, to time.Time, fn func(*order.Order) error) error {
		for i := range orders {
			if failAfter >= 0 && i == failAfter {
				return errors.New("cursor died")
			}
			if orders[i].CreatedAt.Before(from) || !orders[i].CreatedAt.Before(to) {
				continue
			}
			if err := fn(&orders[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func testOrders() []order.Order {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]order.Order, 3)
	for i := range out {
		out[i] = order.Order{
			ID:            []string{"o1", "o2", "o3"}[i],
			Status:        order.StatusInProgress,
			TotalPrice:    decimal.NewFromInt(int64(10 * (i + 1))),
			TotalDiscount: decimal.Zero,
			UserID:        "u1",
			PaymentTypeID: "card",
			Details: order.Details{
				User:  order.UserSnapshot{Name: "Ann"},
				Books: []order.BookSnapshot{{Title: "Dune", Price: decimal.NewFromInt(10), Count: i + 1}},
			},
			CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}
	}
	return out
}

func readIDs(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := pgzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	var ids []string
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		require.NoError(t, jx.DecodeBytes(sc.Bytes()).Obj(func(d *jx.Decoder, key string) error {
			if key != "id" {
				return d.Skip()
			}
			id, err := d.Str()
			ids = append(ids, id)
			return err
		}))
	}
	require.NoError(t, sc.Err())
	return ids
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	n, err := export(context.Background(), &buf, fakeStream(testOrders(), -1), from, to)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"o2", "o3"}, readIDs(t, buf.Bytes()))
}

func TestExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := export(context.Background(), &buf, fakeStream(testOrders(), -1), from, from.Add(time.Hour))

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, readIDs(t, buf.Bytes()), "output is still a valid gzip stream")
}

func TestExport_StreamError(t *testing.T) {
	var buf bytes.Buffer
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := export(context.Background(), &buf, fakeStream(testOrders(), 1), from, from.AddDate(1, 0, 0))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor died")
	assert.Equal(t, 1, n)
}

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	from, to, err := parseRange("2024-05-01", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, now, to)

	from, to, err = parseRange("2024-05-01T10:00:00+02:00", "2024-05-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), to)

	for _, tt := range [][2]string{
		{"", ""},
		{"yesterday", ""},
		{"2024-05-02", "2024-05-01"},
		{"2024-05-01", "2024-05-01"},
	} {
		_, _, err := parseRange(tt[0], tt[1], now)
		assert.Error(t, err, "%v", tt)
	}
}
