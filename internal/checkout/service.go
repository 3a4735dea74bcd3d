// Package checkout turns the current cart into an order.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/telemetry"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/ports"
)

var ErrEmptyCart = errors.New("checkout: cart is empty")

// CartView is the part of the cart engine checkout needs.
type CartView interface {
	Cart() domain.Cart
	Load(ctx context.Context) error
}

type Service struct {
	orders   ports.OrderStore
	carts    ports.CartStore
	sessions ports.SessionSource
	journal  journal.Repository
	clock    clockwork.Clock
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

// WithClock sets the clock journal entries are stamped with.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewService(orders ports.OrderStore, carts ports.CartStore, sessions ports.SessionSource, repo journal.Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		orders:   orders,
		carts:    carts,
		sessions: sessions,
		journal:  repo,
		clock:    clockwork.NewRealClock(),
		logger:   logger.With(slog.String("component", "checkout")),
		tracer:   telemetry.Tracer("storefront/checkout"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder empties the remote cart and creates a PENDIENTE order from its
// snapshot. If the order cannot be created the cart lines are restored. The
// engine is resynced afterwards in every case.
func (s *Service) PlaceOrder(ctx context.Context, cart CartView, shipping decimal.Decimal) (domain.Order, error) {
	sess := s.sessions.Current()
	if !sess.Authenticated() {
		return domain.Order{}, domain.ErrUnauthenticated
	}
	// order from server truth, not from optimistic lines
	if err := cart.Load(ctx); err != nil {
		return domain.Order{}, err
	}
	snapshot := cart.Cart()
	if len(snapshot.Lines) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}

	req := domain.NewOrderRequest{
		UserID:   sess.UserID,
		Status:   domain.StatusPendiente,
		Total:    snapshot.Total().Add(shipping),
		Shipping: shipping,
		Items:    snapshot.Details(),
	}

	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder", trace.WithAttributes(
		attribute.String("user.id", sess.UserID),
		attribute.Int("order.items", len(req.Items)),
		attribute.String("order.total", req.Total.String()),
	))
	defer span.End()

	clearStep := &ClearCartStep{store: s.carts, sess: sess, lines: snapshot.Lines}
	createStep := &CreateOrderStep{store: s.orders, sess: sess, request: req}

	payload, _ := json.Marshal(map[string]any{
		"total":    req.Total.String(),
		"shipping": req.Shipping.String(),
		"items":    len(req.Items),
	})
	orch := coordinator.NewOrchestrator(sess.UserID, "checkout", []coordinator.Step{clearStep, createStep}, s.journal,
		coordinator.WithLogger(s.logger), coordinator.WithClock(s.clock))
	err := orch.Start(ctx, string(payload))

	if lerr := cart.Load(context.WithoutCancel(ctx)); lerr != nil {
		s.logger.WarnContext(ctx, "cart resync after checkout failed", slog.Any("error", lerr))
	}
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", createStep.order.ID),
		slog.String("total", createStep.order.Total.String()),
	)
	return createStep.order, nil
}

// --- ClearCartStep ---

// ClearCartStep empties the remote cart. Its compensation puts the
// snapshot lines back, one add per line, each under its own idempotency
// scope.
type ClearCartStep struct {
	store ports.CartStore
	sess  session.Session
	lines []domain.CartLine
}

func (s *ClearCartStep) Name() string { return "clear_cart" }

func (s *ClearCartStep) Execute(ctx context.Context) error {
	ctx = interceptors.WithIdempotencyScope(session.NewContext(ctx, s.sess), s.Name())
	return domain.AsRemote("clear cart", s.store.ClearCart(ctx))
}

func (s *ClearCartStep) Compensate(ctx context.Context) error {
	ctx = session.NewContext(ctx, s.sess)
	var errs []error
	for _, l := range s.lines {
		lctx := interceptors.WithIdempotencyScope(ctx, "restore:"+l.ProductID)
		if _, err := s.store.AddToCart(lctx, l.ProductID, l.Quantity, l.UnitPrice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// --- CreateOrderStep ---

type CreateOrderStep struct {
	store   ports.OrderStore
	sess    session.Session
	request domain.NewOrderRequest
	order   domain.Order
}

func (s *CreateOrderStep) Name() string { return "create_order" }

func (s *CreateOrderStep) Execute(ctx context.Context) error {
	ctx = interceptors.WithIdempotencyScope(session.NewContext(ctx, s.sess), s.Name())
	o, err := s.store.CreateOrder(ctx, s.request)
	if err != nil {
		return domain.AsRemote("create order", err)
	}
	s.order = o
	return nil
}

// Compensate is empty as it's the last step.
func (s *CreateOrderStep) Compensate(context.Context) error { return nil }
