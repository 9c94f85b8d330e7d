// Package validation runs field-level checks on domain records before they
// reach a store and reports failures keyed by JSON field name.
package validation

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Error is a field-scoped validation failure. Fields maps the JSON name of
// each offending field to the rule it violated.
type Error struct {
	Fields map[string]string
}

// NewError builds an Error from field/rule pairs.
func NewError(field, rule string, more ...string) *Error {
	e := &Error{Fields: map[string]string{field: rule}}
	for i := 0; i+1 < len(more); i += 2 {
		e.Fields[more[i]] = more[i+1]
	}
	return e
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("validation failed:")
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(e.Fields[name])
	}
	return b.String()
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		// Decimal fields are checked by their float value so numeric rules
		// like gte/lte apply to them.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}

// Struct validates v against its `validate` tags. It returns nil or *Error.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}

	out := &Error{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = fe.Tag()
	}
	return out
}

// fieldPath strips the root struct name from the namespace, so
// "Order.details.books[0].count" becomes "details.books[0].count".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
