package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

// CartStore is the remote server of record for the authenticated user's cart.
// The caller's identity travels in ctx (see session.NewContext).
type CartStore interface {
	CartDetails(ctx context.Context) ([]domain.CartLine, error)
	AddToCart(ctx context.Context, productID string, quantity int, unitPrice decimal.Decimal) (domain.CartLine, error)
	SetQuantity(ctx context.Context, productID string, quantity int) (domain.CartLine, error)
	RemoveLine(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
}

type OrderStore interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	OrderDetails(ctx context.Context, orderID string) ([]domain.OrderDetail, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	CreateOrder(ctx context.Context, req domain.NewOrderRequest) (domain.Order, error)
}

// SessionSource yields the session an engine acts for. An unauthenticated
// session turns cart loads into a local reset.
type SessionSource interface {
	Current() session.Session
}
