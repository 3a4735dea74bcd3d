// Package storev1 is the wire contract of the remote store REST API,
// shared by the storefront client and the mock backend.
package storev1

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PathCart        = "/cart"
	PathCartDetails = "/cart/details"
	PathCartItems   = "/cart/items"
	PathOrders      = "/orders"
)

func CartItemPath(productID string) string { return PathCartItems + "/" + productID }

func OrderDetailsPath(orderID string) string { return PathOrders + "/" + orderID + "/details" }

func OrderStatusPath(orderID string) string { return PathOrders + "/" + orderID + "/status" }

// CartLine is one row of GET /cart/details. Subtotal is the line total.
type CartLine struct {
	LineID    string          `json:"line_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AddToCartRequest is the body of POST /cart/items. Subtotal is the
// per-unit price.
type AddToCartRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Shipping  decimal.Decimal `json:"shipping"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderDetail struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CreateOrderRequest struct {
	Total    decimal.Decimal `json:"total"`
	UserID   string          `json:"user_id"`
	Status   string          `json:"status"`
	Shipping decimal.Decimal `json:"shipping"`
	Items    []OrderDetail   `json:"items"`
}

// Error is the body of every non-2xx response. From and To are set on
// rejected status transitions.
type Error struct {
	Error string `json:"error"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}
