package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPendiente OrderStatus = "PENDIENTE"
	StatusEnviado   OrderStatus = "ENVIADO"
	StatusEntregado OrderStatus = "ENTREGADO"
	StatusCancelado OrderStatus = "CANCELADO"
)

// AllStatuses lists the statuses in their display order.
var AllStatuses = []OrderStatus{StatusPendiente, StatusEnviado, StatusEntregado, StatusCancelado}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendiente, StatusEnviado, StatusEntregado, StatusCancelado:
		return true
	}
	return false
}

// ParseOrderStatus accepts any casing and surrounding whitespace.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

type Order struct {
	ID        string
	UserID    string
	Status    OrderStatus
	Total     decimal.Decimal
	Shipping  decimal.Decimal
	CreatedAt time.Time
}

// OrderDetail is an immutable line of an order. Unlike CartLine its
// Subtotal is always Quantity × UnitPrice.
type OrderDetail struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

func NewOrderDetail(productID string, quantity int, unitPrice decimal.Decimal) OrderDetail {
	return OrderDetail{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// NewOrderRequest is the payload that creates an order at checkout.
type NewOrderRequest struct {
	UserID   string
	Status   OrderStatus
	Total    decimal.Decimal
	Shipping decimal.Decimal
	Items    []OrderDetail
}
