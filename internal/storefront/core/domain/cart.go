package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TempLinePrefix marks line ids synthesized locally before the server
// has acknowledged the line.
const TempLinePrefix = "tmp-"

type CartLine struct {
	LineID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Optimistic reports whether the line still carries a client-generated id.
func (l CartLine) Optimistic() bool {
	return strings.HasPrefix(l.LineID, TempLinePrefix)
}

// Cart keeps insertion order and at most one line per product.
type Cart struct {
	UserID string
	Lines  []CartLine
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) IndexOf(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Line(productID string) (CartLine, bool) {
	if i := c.IndexOf(productID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// Details snapshots the cart as order lines.
func (c Cart) Details() []OrderDetail {
	out := make([]OrderDetail, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, NewOrderDetail(l.ProductID, l.Quantity, l.UnitPrice))
	}
	return out
}
