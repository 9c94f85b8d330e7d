// Package pricing computes order totals from a cart snapshot.
//
// User and book discounts stack additively and the combined rate is capped at
// MaxDiscountPercent. Each line's contribution is rounded to cents before it
// is added to the totals, so totals of multi-line carts depend on per-line
// rounding rather than on rounding the final sum.
package pricing

import "github.com/shopspring/decimal"

// MaxDiscountPercent caps the combined user and book discount of a line.
var MaxDiscountPercent = decimal.NewFromInt(50)

var hundred = decimal.NewFromInt(100)

// Book is the catalog data pricing needs for a line.
type Book struct {
	Title    string
	Price    decimal.Decimal
	Discount decimal.Decimal
}

// Line is one cart entry to be priced.
type Line struct {
	Count int
	Book  Book
}

// Snapshot preserves the raw catalog values of a line at pricing time.
type Snapshot struct {
	Title    string
	Price    decimal.Decimal
	Discount decimal.Decimal
	Count    int
}

// Result holds the aggregate totals and one snapshot per input line.
type Result struct {
	TotalPrice    decimal.Decimal
	TotalDiscount decimal.Decimal
	Lines         []Snapshot
}

// Compute prices the cart for a user with the given discount percent.
// It never fails: inputs are assumed validated upstream (count >= 1,
// non-negative prices and discounts).
func Compute(lines []Line, userDiscountPercent decimal.Decimal) Result {
	res := Result{
		TotalPrice:    decimal.Zero,
		TotalDiscount: decimal.Zero,
		Lines:         make([]Snapshot, len(lines)),
	}

	for i, l := range lines {
		qty := decimal.NewFromInt(int64(l.Count))
		discount, net := LineAmounts(l.Book.Price, userDiscountPercent, l.Book.Discount)

		res.TotalPrice = res.TotalPrice.Add(net.Mul(qty).Round(2))
		res.TotalDiscount = res.TotalDiscount.Add(discount.Mul(qty).Round(2))

		res.Lines[i] = Snapshot{
			Title:    l.Book.Title,
			Price:    l.Book.Price,
			Discount: l.Book.Discount,
			Count:    l.Count,
		}
	}
	return res
}

// CombinedDiscount returns min(user + book, MaxDiscountPercent).
func CombinedDiscount(userPercent, bookPercent decimal.Decimal) decimal.Decimal {
	return decimal.Min(userPercent.Add(bookPercent), MaxDiscountPercent)
}

// LineAmounts returns the unrounded per-unit discount and net price of a book.
func LineAmounts(price, userPercent, bookPercent decimal.Decimal) (discount, net decimal.Decimal) {
	discount = price.Mul(CombinedDiscount(userPercent, bookPercent)).Div(hundred)
	return discount, price.Sub(discount)
}
