package app

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

func TestCartsAreScopedPerUser(t *testing.T) {
	s := NewStore(nil)

	_, err := s.AddToCart("alice", "5", 2, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = s.AddToCart("bob", "6", 1, decimal.NewFromInt(3))
	require.NoError(t, err)

	alice := s.CartDetails("alice")
	require.Len(t, alice, 1)
	assert.Equal(t, "5", alice[0].ProductID)
	assert.True(t, alice[0].Subtotal.Equal(decimal.NewFromInt(20)))

	s.ClearCart("alice")
	assert.Empty(t, s.CartDetails("alice"))
	assert.Len(t, s.CartDetails("bob"), 1)
}

func TestAddMergesAndValidates(t *testing.T) {
	s := NewStore(nil)

	first, err := s.AddToCart("alice", "5", 2, decimal.NewFromInt(10))
	require.NoError(t, err)
	second, err := s.AddToCart("alice", "5", 1, decimal.NewFromInt(10))
	require.NoError(t, err)

	assert.Equal(t, first.LineID, second.LineID)
	assert.Equal(t, 3, second.Quantity)

	_, err = s.AddToCart("alice", "5", 0, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = s.AddToCart("alice", "", 1, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = s.SetQuantity("alice", "5", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = s.SetQuantity("alice", "9", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveKeepsOrder(t *testing.T) {
	s := NewStore(nil)
	for _, p := range []string{"1", "2", "3"} {
		_, err := s.AddToCart("alice", p, 1, decimal.NewFromInt(1))
		require.NoError(t, err)
	}

	require.NoError(t, s.RemoveLine("alice", "2"))
	lines := s.CartDetails("alice")
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0].ProductID)
	assert.Equal(t, "3", lines[1].ProductID)

	assert.ErrorIs(t, s.RemoveLine("alice", "2"), domain.ErrNotFound)
}

func validOrder() storev1.CreateOrderRequest {
	return storev1.CreateOrderRequest{
		UserID:   "alice",
		Status:   "PENDIENTE",
		Total:    decimal.NewFromInt(25),
		Shipping: decimal.NewFromInt(5),
		Items: []storev1.OrderDetail{
			{ProductID: "5", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC))
	s := NewStore(clock)

	o, err := s.CreateOrder(validOrder())
	require.NoError(t, err)
	assert.Equal(t, "1", o.ID)
	assert.Equal(t, "PENDIENTE", o.Status)
	assert.True(t, clock.Now().Equal(o.CreatedAt))

	details, err := s.OrderDetails(o.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.True(t, details[0].Subtotal.Equal(decimal.NewFromInt(20)))

	bad := validOrder()
	bad.Total = decimal.NewFromInt(1)
	_, err = s.CreateOrder(bad)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bad = validOrder()
	bad.Items = nil
	_, err = s.CreateOrder(bad)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateStatusEnforcesTable(t *testing.T) {
	s := NewStore(nil)
	o, err := s.CreateOrder(validOrder())
	require.NoError(t, err)

	_, err = s.UpdateOrderStatus(o.ID, domain.StatusEntregado)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	updated, err := s.UpdateOrderStatus(o.ID, domain.StatusEnviado)
	require.NoError(t, err)
	assert.Equal(t, "ENVIADO", updated.Status)

	_, err = s.UpdateOrderStatus("missing", domain.StatusEnviado)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	orders := s.ListOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "ENVIADO", orders[0].Status)
}
