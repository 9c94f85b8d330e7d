package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	lines, err := h.carts.List(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCart(&e, lines)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	req, err := decodeCartLine(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.carts.Add(r.Context(), u.ID, req.Book, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeLine(&e, l)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	req, err := decodeCartLine(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.carts.UpdateCount(r.Context(), u.ID, chi.URLParam(r, "id"), req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeLine(&e, l)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) deleteCartLine(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	if err := h.carts.Remove(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
