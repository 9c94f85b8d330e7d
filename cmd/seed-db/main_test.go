package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookstore-checkout/internal/domain/pricing"
)

func TestParseBooks(t *testing.T) {
	books, err := parseBooks([]byte(`[
		{"id":"dune","title":"Dune","price":100.00,"discount":40,"isbn":"ignored"},
		{"id":"solaris","title":"Solaris","price":15.5,"discount":0}
	]`))
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "dune", books[0].ID)
	assert.Equal(t, "100", books[0].Price.String())
	assert.Equal(t, "40", books[0].Discount.String())
	assert.Equal(t, "15.5", books[1].Price.String())
}

func TestParseBooks_Invalid(t *testing.T) {
	for _, data := range []string{
		`{}`,
		`[{"title":"No id"}]`,
		`[{"id":"x","title":"X","price":true}]`,
	} {
		_, err := parseBooks([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestSeedData(t *testing.T) {
	for _, u := range demoUsers {
		assert.True(t, u.DiscountPercent.LessThanOrEqual(pricing.MaxDiscountPercent), u.ID)
	}
	assert.NotEmpty(t, demoPaymentTypes)
}
