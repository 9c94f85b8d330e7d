package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/bookstore-checkout/internal/domain/order"
)

// IdempotencyKeyHeader makes POST /api/orders replayable.
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	req, err := decodeCreateOrder(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var opts []order.SaveOption
	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		opts = append(opts, order.WithIdempotencyKey(key))
	}

	o, err := h.orders.Save(r.Context(), u, req.PaymentType, opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	EncodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	orders, err := h.orders.List(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrders(&e, orders)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	o, err := h.orders.Get(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	EncodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}
