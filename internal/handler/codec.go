package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/domain/validation"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

// EncodeOrder writes the JSON form of o served by the API and written by the
// order export.
func EncodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("totalPrice")
	encodeDecimal(e, o.TotalPrice)
	e.FieldStart("totalDiscount")
	encodeDecimal(e, o.TotalDiscount)
	e.FieldStart("user")
	e.Str(o.UserID)
	e.FieldStart("paymentType")
	e.Str(o.PaymentTypeID)

	e.FieldStart("details")
	e.ObjStart()
	e.FieldStart("user")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Details.User.Name)
	e.FieldStart("email")
	e.Str(o.Details.User.Email)
	e.FieldStart("discount")
	encodeDecimal(e, o.Details.User.Discount)
	e.ObjEnd()
	e.FieldStart("books")
	e.ArrStart()
	for _, b := range o.Details.Books {
		e.ObjStart()
		e.FieldStart("title")
		e.Str(b.Title)
		e.FieldStart("price")
		encodeDecimal(e, b.Price)
		e.FieldStart("discount")
		encodeDecimal(e, b.Discount)
		e.FieldStart("count")
		e.Int(b.Count)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	if o.CheckoutKey != "" {
		e.FieldStart("checkoutKey")
		e.Str(o.CheckoutKey)
	}
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		EncodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}

func encodeLine(e *jx.Encoder, l *cart.Line) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(l.ID)
	e.FieldStart("book")
	e.Str(l.BookID)
	e.FieldStart("count")
	e.Int(l.Count)
	e.FieldStart("createdAt")
	encodeTime(e, l.CreatedAt)
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, lines []cart.ResolvedLine) {
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(l.ID)
		e.FieldStart("count")
		e.Int(l.Count)
		e.FieldStart("createdAt")
		encodeTime(e, l.CreatedAt)
		e.FieldStart("book")
		e.ObjStart()
		e.FieldStart("id")
		e.Str(l.Book.ID)
		e.FieldStart("title")
		e.Str(l.Book.Title)
		e.FieldStart("price")
		encodeDecimal(e, l.Book.Price)
		e.FieldStart("discount")
		encodeDecimal(e, l.Book.Discount)
		e.ObjEnd()
		e.ObjEnd()
	}
	e.ArrEnd()
}

// decodeObject reads a JSON object body and hands each field to fn. A body
// that is not a JSON object yields a validation error on "body"; a field
// whose value fn cannot decode yields a "type" error on that field.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return validation.NewError("body", "max")
		}
		return errors.Wrap(err, "read body")
	}

	var failed string
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return validation.NewError("body", "json")
	}
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if err := fn(d, key); err != nil {
			failed = key
			return err
		}
		return nil
	})
	if err != nil {
		if failed != "" {
			return validation.NewError(failed, "type")
		}
		return validation.NewError("body", "json")
	}
	return nil
}

type createOrderRequest struct {
	PaymentType string
}

func decodeCreateOrder(r *http.Request) (createOrderRequest, error) {
	var req createOrderRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "paymentType":
			v, err := d.Str()
			req.PaymentType = v
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

type cartLineRequest struct {
	Book  string
	Count int
}

func decodeCartLine(r *http.Request) (cartLineRequest, error) {
	var req cartLineRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "book":
			req.Book, err = d.Str()
		case "count":
			req.Count, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}
