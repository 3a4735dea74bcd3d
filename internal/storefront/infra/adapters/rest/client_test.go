package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/backend-service/app"
	backendhttp "github.com/FranciscoTerron/ma-piscinas-sub000/internal/backend-service/httpx"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/cache"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors/constants"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

var shopper = session.Session{UserID: "u-1", Token: "tok-1"}

func newBackend(t *testing.T) (*Client, *app.Store) {
	t.Helper()
	store := app.NewStore(clockwork.NewFakeClock())
	router := backendhttp.NewRouter(backendhttp.NewHandler(store), cache.NewMemoryCache("test"))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), store
}

func authed() context.Context {
	return session.NewContext(context.Background(), shopper)
}

func TestCartRoundTrip(t *testing.T) {
	c, _ := newBackend(t)
	ctx := authed()

	line, err := c.AddToCart(ctx, "5", 2, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(100)), line.UnitPrice.String())
	assert.False(t, line.Optimistic())

	// duplicate adds merge server side
	_, err = c.AddToCart(ctx, "5", 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	lines, err := c.CartDetails(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.NewFromInt(100)), "unit price recovered from line total")
	assert.True(t, lines[0].LineTotal().Equal(decimal.NewFromInt(300)))

	_, err = c.SetQuantity(ctx, "5", 7)
	require.NoError(t, err)

	require.NoError(t, c.RemoveLine(ctx, "5"))
	lines, err = c.CartDetails(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = c.AddToCart(ctx, "6", 1, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NoError(t, c.ClearCart(ctx))
	lines, err = c.CartDetails(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestMissingSessionIsRemoteUnavailable(t *testing.T) {
	c, _ := newBackend(t)

	_, err := c.CartDetails(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestNotFound(t *testing.T) {
	c, _ := newBackend(t)

	err := c.RemoveLine(authed(), "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestOrdersRoundTrip(t *testing.T) {
	c, _ := newBackend(t)
	ctx := authed()

	created, err := c.CreateOrder(ctx, domain.NewOrderRequest{
		UserID:   "u-1",
		Status:   domain.StatusPendiente,
		Total:    decimal.NewFromInt(210),
		Shipping: decimal.NewFromInt(10),
		Items:    []domain.OrderDetail{domain.NewOrderDetail("5", 2, decimal.NewFromInt(100))},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StatusPendiente, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	orders, err := c.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	details, err := c.OrderDetails(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.True(t, details[0].Subtotal.Equal(decimal.NewFromInt(200)))

	updated, err := c.UpdateOrderStatus(ctx, created.ID, domain.StatusEnviado)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnviado, updated.Status)

	_, err = c.UpdateOrderStatus(ctx, created.ID, domain.StatusPendiente)
	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.StatusEnviado, ite.From)
	assert.Equal(t, domain.StatusPendiente, ite.To)
}

func TestServerErrorIsRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"db down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListOrders(authed())
	var re *domain.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestTransportErrorIsRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).CartDetails(authed())
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestHeadersAttached(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.ClearCart(authed()))
	_, _ = c.CartDetails(authed())

	require.Len(t, seen, 2)
	assert.Equal(t, "Bearer tok-1", seen[0].Get(constants.HeaderAuthorization))
	assert.Equal(t, "u-1", seen[0].Get(constants.HeaderXUserID))
	assert.NotEmpty(t, seen[0].Get(constants.HeaderXRequestId))
	assert.NotEmpty(t, seen[0].Get(constants.HeaderXIdempotencyKey))
	assert.Empty(t, seen[1].Get(constants.HeaderXIdempotencyKey), "reads carry no idempotency key")
}
