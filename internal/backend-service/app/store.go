// Package app holds the in-memory state of the mock remote store: one cart
// per user and a global order book.
package app

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

var ErrInvalidRequest = errors.New("invalid request")

type cartLine struct {
	lineID    string
	productID string
	quantity  int
	unitPrice decimal.Decimal
}

func (l cartLine) wire() storev1.CartLine {
	return storev1.CartLine{
		LineID:    l.lineID,
		ProductID: l.productID,
		Quantity:  l.quantity,
		Subtotal:  l.unitPrice.Mul(decimal.NewFromInt(int64(l.quantity))),
	}
}

type order struct {
	info  storev1.Order
	items []storev1.OrderDetail
}

type Store struct {
	mu     sync.RWMutex
	clock  clockwork.Clock
	carts  map[string][]cartLine
	orders map[string]*order
	// insertion order of orders
	seq    []string
	nextID int
}

func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:  clock,
		carts:  make(map[string][]cartLine),
		orders: make(map[string]*order),
	}
}

func (s *Store) CartDetails(userID string) []storev1.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := s.carts[userID]
	out := make([]storev1.CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.wire())
	}
	return out
}

// AddToCart merges into the existing line of the product, if any.
func (s *Store) AddToCart(userID, productID string, quantity int, unitPrice decimal.Decimal) (storev1.CartLine, error) {
	if productID == "" {
		return storev1.CartLine{}, fmt.Errorf("%w: product_id is required", ErrInvalidRequest)
	}
	if quantity < 1 {
		return storev1.CartLine{}, domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	for i := range lines {
		if lines[i].productID == productID {
			lines[i].quantity += quantity
			lines[i].unitPrice = unitPrice
			return lines[i].wire(), nil
		}
	}
	l := cartLine{lineID: uuid.NewString(), productID: productID, quantity: quantity, unitPrice: unitPrice}
	s.carts[userID] = append(lines, l)
	return l.wire(), nil
}

func (s *Store) SetQuantity(userID, productID string, quantity int) (storev1.CartLine, error) {
	if quantity < 1 {
		return storev1.CartLine{}, domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	for i := range lines {
		if lines[i].productID == productID {
			lines[i].quantity = quantity
			return lines[i].wire(), nil
		}
	}
	return storev1.CartLine{}, domain.ErrNotFound
}

func (s *Store) RemoveLine(userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	for i := range lines {
		if lines[i].productID == productID {
			s.carts[userID] = append(lines[:i:i], lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) ClearCart(userID string) {
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
}

func (s *Store) ListOrders() []storev1.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storev1.Order, 0, len(s.seq))
	for _, id := range s.seq {
		out = append(out, s.orders[id].info)
	}
	return out
}

func (s *Store) OrderDetails(orderID string) ([]storev1.OrderDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]storev1.OrderDetail, len(o.items))
	copy(out, o.items)
	return out, nil
}

// UpdateOrderStatus applies the same transition table as the storefront.
func (s *Store) UpdateOrderStatus(orderID string, status domain.OrderStatus) (storev1.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return storev1.Order{}, domain.ErrNotFound
	}
	if err := domain.ValidateTransition(domain.OrderStatus(o.info.Status), status); err != nil {
		return storev1.Order{}, err
	}
	o.info.Status = status.String()
	return o.info, nil
}

// CreateOrder stores a new order. Item subtotals are recomputed from the
// unit price and the total must match items plus shipping.
func (s *Store) CreateOrder(req storev1.CreateOrderRequest) (storev1.Order, error) {
	if req.UserID == "" || len(req.Items) == 0 {
		return storev1.Order{}, fmt.Errorf("%w: user_id and items are required", ErrInvalidRequest)
	}
	status := domain.StatusPendiente
	if req.Status != "" {
		parsed, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			return storev1.Order{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		status = parsed
	}

	items := make([]storev1.OrderDetail, 0, len(req.Items))
	sum := decimal.Zero
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			return storev1.Order{}, fmt.Errorf("%w: product_id, quantity and unit_price must be valid", ErrInvalidRequest)
		}
		d := domain.NewOrderDetail(it.ProductID, it.Quantity, it.UnitPrice)
		items = append(items, storev1.OrderDetail{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
			Subtotal:  d.Subtotal,
		})
		sum = sum.Add(d.Subtotal)
	}
	if expected := sum.Add(req.Shipping); !expected.Equal(req.Total) {
		return storev1.Order{}, fmt.Errorf("%w: total %s does not match items plus shipping %s",
			ErrInvalidRequest, req.Total, expected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := strconv.Itoa(s.nextID)
	o := &order{
		info: storev1.Order{
			ID:        id,
			UserID:    req.UserID,
			Status:    status.String(),
			Total:     req.Total,
			Shipping:  req.Shipping,
			CreatedAt: s.clock.Now().UTC().Truncate(time.Second),
		},
		items: items,
	}
	s.orders[id] = o
	s.seq = append(s.seq, id)
	return o.info, nil
}
