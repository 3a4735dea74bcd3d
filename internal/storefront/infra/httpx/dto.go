package httpx

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/cart"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/confirm"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

type AddItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CheckoutRequest struct {
	Shipping decimal.Decimal `json:"shipping"`
}

type StatusChangeRequest struct {
	Status string `json:"status"`
}

type CartLineResponse struct {
	LineID     string          `json:"line_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Optimistic bool            `json:"optimistic"`
}

type CartResponse struct {
	UserID    string             `json:"user_id"`
	State     string             `json:"state"`
	Lines     []CartLineResponse `json:"lines"`
	Total     decimal.Decimal    `json:"total"`
	ItemCount int                `json:"item_count"`
}

// AddItemResponse reports whether the add was taken. A dropped add is not
// an error.
type AddItemResponse struct {
	Accepted bool         `json:"accepted"`
	Cart     CartResponse `json:"cart"`
}

type ConfirmationResponse struct {
	ConfirmationID string `json:"confirmation_id"`
	Action         string `json:"action"`
	Subject        string `json:"subject,omitempty"`
}

type OrderResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Shipping  decimal.Decimal `json:"shipping"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderDetailResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type TransitionsResponse struct {
	OrderID string   `json:"order_id"`
	Current string   `json:"current"`
	Allowed []string `json:"allowed"`
}

type JournalEntryResponse struct {
	Operation  string          `json:"operation"`
	Status     string          `json:"status"`
	Step       string          `json:"step,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Errors     json.RawMessage `json:"errors"`
	TraceID    string          `json:"trace_id,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

func mapCart(c domain.Cart, state cart.State) CartResponse {
	lines := make([]CartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, CartLineResponse{
			LineID:     l.LineID,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			LineTotal:  l.LineTotal(),
			Optimistic: l.Optimistic(),
		})
	}
	return CartResponse{
		UserID:    c.UserID,
		State:     state.String(),
		Lines:     lines,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}

func mapConfirmation(p *confirm.Pending) ConfirmationResponse {
	return ConfirmationResponse{ConfirmationID: p.ID, Action: p.Action, Subject: p.Subject}
}

func mapOrder(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    o.Status.String(),
		Total:     o.Total,
		Shipping:  o.Shipping,
		CreatedAt: o.CreatedAt,
	}
}

func mapOrders(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrder(o)
	}
	return out
}

func mapDetails(details []domain.OrderDetail) []OrderDetailResponse {
	out := make([]OrderDetailResponse, len(details))
	for i, d := range details {
		out[i] = OrderDetailResponse{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
			Subtotal:  d.Subtotal,
		}
	}
	return out
}

func mapJournal(entries []journal.Entry) []JournalEntryResponse {
	out := make([]JournalEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = JournalEntryResponse{
			Operation:  e.Operation,
			Status:     string(e.Status),
			Step:       e.Step,
			Errors:     json.RawMessage(e.Errors),
			TraceID:    e.TraceID,
			RecordedAt: e.RecordedAt,
		}
		if e.Payload != "" {
			out[i].Payload = json.RawMessage(e.Payload)
		}
	}
	return out
}

func statusStrings(in []domain.OrderStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = s.String()
	}
	return out
}
