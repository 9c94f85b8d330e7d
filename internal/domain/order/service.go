package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/payment"
	"github.com/xenking/bookstore-checkout/internal/domain/pricing"
	"github.com/xenking/bookstore-checkout/internal/domain/user"
	"github.com/xenking/bookstore-checkout/internal/domain/validation"
	"github.com/xenking/bookstore-checkout/pkg/keylock"
)

const instrumentationName = "github.com/xenking/bookstore-checkout/internal/domain/order"

// Deps are the collaborators of the order Service. Tx and Locker are
// optional; without them checkout runs without a storage transaction and
// serializes users within the process only.
type Deps struct {
	Cart     CartResolver
	Lines    cart.Repository
	Orders   Repository
	Payments payment.Repository
	Tx       Transactor
	Locker   keylock.Locker
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the provider for checkout counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithClock overrides the order creation time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// SaveOption configures a single checkout.
type SaveOption func(*saveOptions)

type saveOptions struct {
	key string
}

// WithIdempotencyKey makes the checkout replayable: a repeated call with the
// same key returns the order created by the first call.
func WithIdempotencyKey(key string) SaveOption {
	return func(o *saveOptions) { o.key = key }
}

// Service turns a user's cart into an order.
type Service struct {
	cart     CartResolver
	lines    cart.Repository
	orders   Repository
	payments payment.Repository
	tx       Transactor
	locker   keylock.Locker

	tracer   trace.Tracer
	meter    metric.Meter
	created  metric.Int64Counter
	failures metric.Int64Counter

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	s := &Service{
		cart:     deps.Cart,
		lines:    deps.Lines,
		orders:   deps.Orders,
		payments: deps.Payments,
		tx:       deps.Tx,
		locker:   deps.Locker,
		tracer:   tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:    metricnoop.NewMeterProvider().Meter(instrumentationName),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = directTx{}
	}
	if s.locker == nil {
		s.locker = keylock.NewLocal(0)
	}

	var err error
	if s.created, err = s.meter.Int64Counter("checkout.orders",
		metric.WithDescription("Orders created by checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	if s.failures, err = s.meter.Int64Counter("checkout.failures",
		metric.WithDescription("Failed checkouts by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "create failures counter")
	}
	return s, nil
}

// Save checks out the user's cart: it prices every line, persists the order
// and empties the cart as one atomic step. Either the order exists and the
// cart is empty, or nothing changed.
func (s *Service) Save(ctx context.Context, u user.User, paymentTypeID string, opts ...SaveOption) (_ *Order, rerr error) {
	var so saveOptions
	for _, opt := range opts {
		opt(&so)
	}

	ctx, span := s.tracer.Start(ctx, "order.Save",
		trace.WithAttributes(attribute.String("user.id", u.ID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", failureReason(rerr)),
			))
		}
		span.End()
	}()

	unlock, err := s.locker.Lock(ctx, u.ID)
	if err != nil {
		if errors.Is(err, keylock.ErrTimeout) {
			return nil, ErrCheckoutConflict
		}
		return nil, errors.Wrap(err, "acquire checkout lock")
	}
	defer unlock()

	var (
		result   *Order
		replayed bool
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if so.key != "" {
			existing, err := s.orders.FindByCheckoutKey(ctx, u.ID, so.key)
			switch {
			case err == nil:
				result, replayed = existing, true
				return nil
			case !errors.Is(err, ErrOrderNotFound):
				return errors.Wrap(err, "find order by checkout key")
			}
		}

		lines, err := s.cart.Resolve(ctx, u.ID)
		if err != nil {
			return errors.Wrap(err, "resolve cart")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		o := s.build(u, paymentTypeID, so.key, pricing.Compute(pricingLines(lines), u.DiscountPercent))
		if err := validation.Struct(o); err != nil {
			return err
		}

		ok, err := s.payments.Exists(ctx, paymentTypeID)
		if err != nil {
			return errors.Wrap(err, "check payment type")
		}
		if !ok {
			return validation.NewError("paymentType", "exists")
		}

		if err := s.orders.Create(ctx, o); err != nil {
			var verr *validation.Error
			if errors.As(err, &verr) || errors.Is(err, ErrCheckoutConflict) {
				return err
			}
			return errors.Wrap(err, "create order")
		}

		deleted, err := s.lines.DeleteByUser(ctx, u.ID)
		if err != nil {
			return errors.Wrap(err, "clear cart")
		}
		if deleted != int64(len(lines)) {
			return ErrCheckoutConflict
		}

		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	if replayed {
		lg.Info("Checkout replayed",
			zap.String("order_id", result.ID),
			zap.String("user_id", u.ID),
		)
		return result, nil
	}

	s.created.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.id", result.ID))
	lg.Info("Order created",
		zap.String("order_id", result.ID),
		zap.String("user_id", u.ID),
		zap.Int("books", len(result.Details.Books)),
		zap.String("total_price", result.TotalPrice.StringFixed(2)),
		zap.String("total_discount", result.TotalDiscount.StringFixed(2)),
	)
	return result, nil
}

// Get returns one of the user's orders. Orders of other users are reported as
// ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *Service) build(u user.User, paymentTypeID, key string, priced pricing.Result) *Order {
	books := make([]BookSnapshot, len(priced.Lines))
	for i, l := range priced.Lines {
		books[i] = BookSnapshot{
			Title:    l.Title,
			Price:    l.Price,
			Discount: l.Discount,
			Count:    l.Count,
		}
	}
	return &Order{
		ID:            s.newID(),
		Status:        StatusInProgress,
		TotalPrice:    priced.TotalPrice,
		TotalDiscount: priced.TotalDiscount,
		UserID:        u.ID,
		PaymentTypeID: paymentTypeID,
		CheckoutKey:   key,
		Details: Details{
			User: UserSnapshot{
				Name:     u.Name,
				Email:    u.Email,
				Discount: u.DiscountPercent,
			},
			Books: books,
		},
		CreatedAt: s.now().UTC(),
	}
}

func pricingLines(lines []cart.ResolvedLine) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{
			Count: l.Count,
			Book: pricing.Book{
				Title:    l.Book.Title,
				Price:    l.Book.Price,
				Discount: l.Book.Discount,
			},
		}
	}
	return out
}

func failureReason(err error) string {
	var (
		verr *validation.Error
		bnf  *cart.BookNotFoundError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrCheckoutConflict):
		return "conflict"
	case errors.As(err, &verr), errors.As(err, &bnf):
		return "validation"
	default:
		return "internal"
	}
}

// directTx runs fn without a transaction.
type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
