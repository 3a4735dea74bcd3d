package rest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
)

func TestCartLineFromWireUnitPrice(t *testing.T) {
	cases := []struct {
		name     string
		subtotal string
		qty      int
		unit     string
	}{
		{"even split", "200", 2, "100"},
		{"sub cent unit kept", "99.999", 3, "33.333"},
		{"uneven split rounded to cents", "100", 3, "33.33"},
		{"uneven split rounds half up", "10", 6, "1.67"},
		{"no quantity", "15.50", 0, "15.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := cartLineFromWire(storev1.CartLine{
				LineID:    "l-1",
				ProductID: "7",
				Quantity:  tc.qty,
				Subtotal:  decimal.RequireFromString(tc.subtotal),
			})
			want := decimal.RequireFromString(tc.unit)
			assert.True(t, l.UnitPrice.Equal(want), "got %s, want %s", l.UnitPrice, want)
		})
	}
}

func TestCartLineFromWireTotalStaysWithinACent(t *testing.T) {
	l := cartLineFromWire(storev1.CartLine{LineID: "l-1", ProductID: "7", Quantity: 3, Subtotal: decimal.NewFromInt(100)})

	drift := l.LineTotal().Sub(decimal.NewFromInt(100)).Abs()
	assert.True(t, drift.LessThanOrEqual(decimal.RequireFromString("0.01")), drift.String())
	assert.Equal(t, "99.99", l.LineTotal().StringFixed(2))
}
