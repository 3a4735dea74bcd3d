// Package orderstatus gates administrative status changes on orders.
// Illegal transitions are rejected before any network call; legal ones are
// staged and only applied locally after the server acknowledges them.
package orderstatus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/confirm"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/telemetry"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/ports"
)

var ErrNothingStaged = errors.New("orderstatus: no transition staged")

// AllowedNextStates lists the statuses an order in current may move to,
// itself included.
func AllowedNextStates(current domain.OrderStatus) []domain.OrderStatus {
	return domain.AllowedNextStates(current)
}

func CanTransition(from, to domain.OrderStatus) bool {
	return domain.CanTransition(from, to)
}

// Transition is a validated, not yet applied, status change.
type Transition struct {
	OrderID string
	From    domain.OrderStatus
	To      domain.OrderStatus
}

type Option func(*Machine)

func WithJournal(r journal.Repository) Option {
	return func(m *Machine) { m.journal = r }
}

// WithClock sets the clock journal entries are stamped with.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

type Machine struct {
	store    ports.OrderStore
	sessions ports.SessionSource
	journal  journal.Repository
	clock    clockwork.Clock
	logger   *slog.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	orders  []domain.Order
	current *stagedTransition
}

// stagedTransition ties a transition to the Pending that may send it.
type stagedTransition struct {
	transition Transition
	pending    *confirm.Pending
	// applied is set by a successful confirm, before Confirm returns.
	applied domain.Order
}

func NewMachine(store ports.OrderStore, sessions ports.SessionSource, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		sessions: sessions,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		tracer:   telemetry.Tracer("storefront/orderstatus"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "orderstatus"))
	return m
}

// Load replaces the cached order list with the remote one.
func (m *Machine) Load(ctx context.Context) error {
	sess := m.sessions.Current()
	if !sess.Authenticated() {
		m.mu.Lock()
		m.orders = nil
		m.mu.Unlock()
		return domain.ErrUnauthenticated
	}

	ctx, span := m.tracer.Start(ctx, "orderstatus.Load")
	defer span.End()

	orders, err := m.store.ListOrders(session.NewContext(ctx, sess))
	if err != nil {
		err = domain.AsRemote("list orders", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	m.mu.Lock()
	m.orders = orders
	m.mu.Unlock()
	return nil
}

func (m *Machine) Orders() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

func (m *Machine) Order(id string) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.orders[i], true
	}
	return domain.Order{}, false
}

// Details fetches the immutable line items of an order.
func (m *Machine) Details(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	sess := m.sessions.Current()
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	ctx, span := m.tracer.Start(ctx, "orderstatus.Details", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	details, err := m.store.OrderDetails(session.NewContext(ctx, sess), orderID)
	if err != nil {
		return nil, domain.AsRemote("order details", err)
	}
	return details, nil
}

// Staged returns the transition waiting for confirmation, if any.
func (m *Machine) Staged() (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Transition{}, false
	}
	return m.current.transition, true
}

// RequestTransition validates target against current and stages it. An
// invalid pair returns *domain.InvalidTransitionError and changes nothing.
// A new request replaces and declines any staged one. The returned Pending
// only ever sends the transition it was created for.
func (m *Machine) RequestTransition(orderID string, current, target domain.OrderStatus) (*confirm.Pending, error) {
	if err := domain.ValidateTransition(current, target); err != nil {
		m.logger.Info("transition rejected",
			slog.String("order_id", orderID),
			slog.String("from", current.String()),
			slog.String("to", target.String()),
		)
		return nil, err
	}

	s := &stagedTransition{transition: Transition{OrderID: orderID, From: current, To: target}}
	s.pending = confirm.New("order.status", orderID,
		func(ctx context.Context) error { return m.apply(ctx, s) },
		func() { m.dropIfCurrent(s) },
	)

	m.mu.Lock()
	prev := m.current
	m.current = s
	m.mu.Unlock()

	if prev != nil {
		prev.pending.Decline()
	}
	return s.pending, nil
}

func (m *Machine) dropIfCurrent(s *stagedTransition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.current = nil
	}
}

// ConfirmTransition confirms the staged transition. Local state changes
// only after the server acknowledges it. The staged transition is consumed
// whatever the outcome.
func (m *Machine) ConfirmTransition(ctx context.Context) (domain.Order, error) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil {
		return domain.Order{}, ErrNothingStaged
	}

	if err := s.pending.Confirm(ctx); err != nil {
		if errors.Is(err, confirm.ErrDeclined) || errors.Is(err, confirm.ErrAlreadyResolved) {
			return domain.Order{}, ErrNothingStaged
		}
		return domain.Order{}, err
	}
	return s.applied, nil
}

// apply sends s if it is still the staged transition. A handle that was
// replaced or cancelled in the meantime never reaches the store.
func (m *Machine) apply(ctx context.Context, s *stagedTransition) error {
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return ErrNothingStaged
	}
	m.current = nil
	m.mu.Unlock()

	t := s.transition
	sess := m.sessions.Current()
	if !sess.Authenticated() {
		return domain.ErrUnauthenticated
	}

	ctx, span := m.tracer.Start(ctx, "orderstatus.ConfirmTransition", trace.WithAttributes(
		attribute.String("order.id", t.OrderID),
		attribute.String("order.status.from", t.From.String()),
		attribute.String("order.status.to", t.To.String()),
	))
	defer span.End()

	var updated domain.Order
	step := coordinator.NewStep("update_status", func(ctx context.Context) error {
		o, err := m.store.UpdateOrderStatus(session.NewContext(ctx, sess), t.OrderID, t.To)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return err
			}
			return domain.AsRemote("update order status", err)
		}
		updated = o
		return nil
	}, nil)

	payload, _ := json.Marshal(map[string]string{"from": t.From.String(), "to": t.To.String()})
	orch := coordinator.NewOrchestrator(t.OrderID, "order.status", []coordinator.Step{step}, m.journal,
		coordinator.WithLogger(m.logger), coordinator.WithClock(m.clock))
	if err := orch.Start(ctx, string(payload)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(t.OrderID); i >= 0 {
		m.orders[i].Status = t.To
		if updated.ID == "" {
			updated = m.orders[i]
		}
	}
	if updated.ID == "" {
		updated = domain.Order{ID: t.OrderID, Status: t.To}
	}
	updated.Status = t.To
	s.applied = updated
	return nil
}

// CancelTransition discards the staged transition and declines its
// Pending, so a handle held elsewhere can no longer fire.
func (m *Machine) CancelTransition() {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s != nil {
		s.pending.Decline()
	}
}

func (m *Machine) indexLocked(id string) int {
	for i, o := range m.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}
