package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/domain/validation"
)

// writeMessage writes {"code","message"}.
func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeFields(w, code, msg, nil)
}

// writeFields writes {"code","message","fields"}; fields is omitted when empty.
func writeFields(w http.ResponseWriter, code int, msg string, fields map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	if len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("fields")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(fields[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()
	writeJSON(w, code, &e)
}

// writeError maps a domain error to its HTTP response. Unknown errors are
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *validation.Error
		dup  *cart.DuplicateLineError
		bnf  *cart.BookNotFoundError
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeFields(w, http.StatusUnprocessableEntity, "validation failed", verr.Fields)
	case errors.As(err, &bnf):
		writeFields(w, http.StatusUnprocessableEntity, bnf.Error(), map[string]string{"book": "exists"})
	case errors.As(err, &dup):
		fields := make(map[string]string, len(dup.Fields()))
		for _, f := range dup.Fields() {
			fields[f] = "unique"
		}
		writeFields(w, http.StatusConflict, dup.Error(), fields)
	case errors.Is(err, order.ErrCheckoutConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
