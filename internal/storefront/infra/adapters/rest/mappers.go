package rest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

// priceScale is the number of decimals prices are quoted in.
const priceScale = 2

// cartLineFromWire recovers the unit price from the wire line total. A total
// that does not split evenly is rounded to priceScale instead of carrying
// the division's full precision.
func cartLineFromWire(l storev1.CartLine) domain.CartLine {
	unit := l.Subtotal
	if l.Quantity > 0 {
		qty := decimal.NewFromInt(int64(l.Quantity))
		unit = l.Subtotal.Div(qty)
		if !unit.Mul(qty).Equal(l.Subtotal) {
			unit = l.Subtotal.DivRound(qty, priceScale)
		}
	}
	return domain.CartLine{
		LineID:    l.LineID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		UnitPrice: unit,
	}
}

func orderFromWire(o storev1.Order) (domain.Order, error) {
	status, err := domain.ParseOrderStatus(o.Status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return domain.Order{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    status,
		Total:     o.Total,
		Shipping:  o.Shipping,
		CreatedAt: o.CreatedAt,
	}, nil
}

func orderDetailFromWire(d storev1.OrderDetail) domain.OrderDetail {
	return domain.OrderDetail{
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		UnitPrice: d.UnitPrice,
		Subtotal:  d.Subtotal,
	}
}

func createOrderToWire(req domain.NewOrderRequest) storev1.CreateOrderRequest {
	items := make([]storev1.OrderDetail, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, storev1.OrderDetail{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return storev1.CreateOrderRequest{
		Total:    req.Total,
		UserID:   req.UserID,
		Status:   req.Status.String(),
		Shipping: req.Shipping,
		Items:    items,
	}
}
