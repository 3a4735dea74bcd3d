package rest

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/ports"
)

// Ensure Client implements the ports at compile time.
var (
	_ ports.CartStore  = (*Client)(nil)
	_ ports.OrderStore = (*Client)(nil)
)

func (c *Client) CartDetails(ctx context.Context) ([]domain.CartLine, error) {
	var wire []storev1.CartLine
	if err := c.do(ctx, "GET cart details", http.MethodGet, storev1.PathCartDetails, nil, &wire); err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(wire))
	for _, l := range wire {
		lines = append(lines, cartLineFromWire(l))
	}
	return lines, nil
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int, unitPrice decimal.Decimal) (domain.CartLine, error) {
	in := storev1.AddToCartRequest{ProductID: productID, Quantity: quantity, Subtotal: unitPrice}
	var out storev1.CartLine
	if err := c.do(ctx, "POST cart add", http.MethodPost, storev1.PathCartItems, in, &out); err != nil {
		return domain.CartLine{}, err
	}
	return cartLineFromWire(out), nil
}

func (c *Client) SetQuantity(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	var out storev1.CartLine
	in := storev1.SetQuantityRequest{Quantity: quantity}
	if err := c.do(ctx, "PATCH cart quantity", http.MethodPatch, storev1.CartItemPath(productID), in, &out); err != nil {
		return domain.CartLine{}, err
	}
	return cartLineFromWire(out), nil
}

func (c *Client) RemoveLine(ctx context.Context, productID string) error {
	return c.do(ctx, "DELETE cart line", http.MethodDelete, storev1.CartItemPath(productID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, "DELETE cart", http.MethodDelete, storev1.PathCart, nil, nil)
}
