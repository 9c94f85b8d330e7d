// Package handler exposes the checkout service over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/domain/user"
	"github.com/xenking/bookstore-checkout/pkg/health"
	"github.com/xenking/bookstore-checkout/pkg/httpmiddleware"
)

// OrderService is the checkout API used by the handlers.
type OrderService interface {
	Save(ctx context.Context, u user.User, paymentTypeID string, opts ...order.SaveOption) (*order.Order, error)
	Get(ctx context.Context, userID, orderID string) (*order.Order, error)
	List(ctx context.Context, userID string) ([]order.Order, error)
}

// CartService is the cart API used by the handlers.
type CartService interface {
	Add(ctx context.Context, userID, bookID string, count int) (*cart.Line, error)
	UpdateCount(ctx context.Context, userID, lineID string, count int) (*cart.Line, error)
	Remove(ctx context.Context, userID, lineID string) error
	List(ctx context.Context, userID string) ([]cart.ResolvedLine, error)
}

// Handler serves the order and cart endpoints for the authenticated user.
type Handler struct {
	orders OrderService
	carts  CartService
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders OrderService, carts CartService) *Handler {
	return &Handler{orders: orders, carts: carts}
}

// RouterConfig holds the collaborators of the router besides the Handler.
type RouterConfig struct {
	Security *SecurityHandler
	Health   *health.Health
	// Telemetry enables otelhttp instrumentation when set.
	Telemetry httpmiddleware.Telemetry
	// CheckoutLimiter limits POST /api/orders per user when set.
	CheckoutLimiter *httpmiddleware.Limiter
}

// Router builds the chi router: probes at the root and the authenticated
// API under /api.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	if cfg.Telemetry != nil {
		r.Use(httpmiddleware.Instrument("bookstore-api", cfg.Telemetry))
	}
	r.Use(httpmiddleware.LogRequests())

	if cfg.Health != nil {
		r.Get("/livez", cfg.Health.LiveEndpoint)
		r.Get("/readyz", cfg.Health.ReadyEndpoint)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Security.Middleware)

		r.Route("/orders", func(r chi.Router) {
			checkout := http.HandlerFunc(h.createOrder)
			if cfg.CheckoutLimiter != nil {
				r.With(cfg.CheckoutLimiter.Middleware()).Post("/", checkout)
			} else {
				r.Post("/", checkout)
			}
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.listCart)
			r.Post("/", h.addCartLine)
			r.Patch("/{id}", h.updateCartLine)
			r.Delete("/{id}", h.deleteCartLine)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
