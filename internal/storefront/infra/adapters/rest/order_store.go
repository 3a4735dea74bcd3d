package rest

import (
	"context"
	"net/http"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var wire []storev1.Order
	if err := c.do(ctx, "GET orders", http.MethodGet, storev1.PathOrders, nil, &wire); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(wire))
	for _, o := range wire {
		order, err := orderFromWire(o)
		if err != nil {
			return nil, &domain.RemoteError{Op: "GET orders", Err: err}
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (c *Client) OrderDetails(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	var wire []storev1.OrderDetail
	if err := c.do(ctx, "GET order details", http.MethodGet, storev1.OrderDetailsPath(orderID), nil, &wire); err != nil {
		return nil, err
	}
	details := make([]domain.OrderDetail, 0, len(wire))
	for _, d := range wire {
		details = append(details, orderDetailFromWire(d))
	}
	return details, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	var out storev1.Order
	in := storev1.UpdateStatusRequest{Status: status.String()}
	if err := c.do(ctx, "PATCH order status", http.MethodPatch, storev1.OrderStatusPath(orderID), in, &out); err != nil {
		return domain.Order{}, err
	}
	order, err := orderFromWire(out)
	if err != nil {
		return domain.Order{}, &domain.RemoteError{Op: "PATCH order status", Err: err}
	}
	return order, nil
}

func (c *Client) CreateOrder(ctx context.Context, req domain.NewOrderRequest) (domain.Order, error) {
	var out storev1.Order
	if err := c.do(ctx, "POST order", http.MethodPost, storev1.PathOrders, createOrderToWire(req), &out); err != nil {
		return domain.Order{}, err
	}
	order, err := orderFromWire(out)
	if err != nil {
		return domain.Order{}, &domain.RemoteError{Op: "POST order", Err: err}
	}
	return order, nil
}
