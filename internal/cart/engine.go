// Package cart keeps a per-user cart usable at all times while the remote
// store stays the source of truth. Adds are applied optimistically and
// reconciled by a delayed resync; every other mutation goes to the store
// first and is followed by a resync. A periodic load corrects any drift.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
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

var (
	// ErrAddInFlight reports an add dropped by the single-flight gate.
	// Callers treat it as a silent no-op.
	ErrAddInFlight = errors.New("cart: add already in flight")
	ErrClosed      = errors.New("cart: engine closed")
)

type Engine struct {
	store    ports.CartStore
	sessions ports.SessionSource

	clock        clockwork.Clock
	resyncDelay  time.Duration
	pollInterval time.Duration
	perProduct   bool
	journal      journal.Repository
	logger       *slog.Logger
	tracer       trace.Tracer

	mu             sync.Mutex
	cart           domain.Cart
	loading        int
	adding         bool
	addingProducts map[string]struct{}
	closed         bool
	started        bool
	resync         clockwork.Timer

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

func NewEngine(store ports.CartStore, sessions ports.SessionSource, opts ...Option) *Engine {
	bgCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:          store,
		sessions:       sessions,
		clock:          clockwork.NewRealClock(),
		resyncDelay:    DefaultResyncDelay,
		pollInterval:   DefaultPollInterval,
		logger:         slog.Default(),
		tracer:         telemetry.Tracer("storefront/cart"),
		addingProducts: make(map[string]struct{}),
		bgCtx:          bgCtx,
		bgCancel:       cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "cart"))
	return e
}

// Start performs the initial load and begins background polling. The
// initial load error is returned, but polling starts regardless.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	if e.pollInterval > 0 {
		e.wg.Add(1)
		go e.poll()
	}
	e.mu.Unlock()

	return e.Load(ctx)
}

func (e *Engine) poll() {
	defer e.wg.Done()

	ticker := e.clock.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.bgCtx.Done():
			return
		case <-ticker.Chan():
			e.backgroundLoad("poll")
		}
	}
}

// Close stops polling and pending resyncs and waits for background work.
// Responses arriving afterwards are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.resync != nil {
		e.resync.Stop()
		e.resync = nil
	}
	e.mu.Unlock()

	e.bgCancel()
	e.wg.Wait()
}

// Load replaces the local cart with the authoritative one. Without an
// authenticated session the local cart is emptied and nothing is fetched.
func (e *Engine) Load(ctx context.Context) error {
	sess := e.sessions.Current()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !sess.Authenticated() {
		e.cart = domain.Cart{}
		e.mu.Unlock()
		return nil
	}
	e.loading++
	e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "cart.Load", trace.WithAttributes(attribute.String("user.id", sess.UserID)))
	defer span.End()

	lines, err := e.store.CartDetails(session.NewContext(ctx, sess))

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading--

	if e.closed {
		return ErrClosed
	}
	if err != nil {
		err = domain.AsRemote("load cart", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if cur := e.sessions.Current(); cur.UserID != sess.UserID {
		e.logger.DebugContext(ctx, "dropping cart of a previous session")
		return nil
	}

	fresh := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity > 0 {
			fresh = append(fresh, l)
		}
	}
	e.cart = domain.Cart{UserID: sess.UserID, Lines: fresh}
	span.SetAttributes(attribute.Int("cart.lines", len(fresh)))
	return nil
}

// AddItem applies the add locally, then sends it. On success a resync is
// scheduled after the resync delay; on failure the local cart is resynced
// at once and the error returned.
func (e *Engine) AddItem(ctx context.Context, productID string, quantity int, unitPrice decimal.Decimal) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	sess := e.sessions.Current()
	if !sess.Authenticated() {
		return domain.ErrUnauthenticated
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.acquireAddLocked(productID) {
		e.mu.Unlock()
		e.logger.DebugContext(ctx, "add dropped by in-flight gate", slog.String("product_id", productID))
		return ErrAddInFlight
	}
	e.mu.Unlock()
	defer e.releaseAdd(productID)

	ctx, span := e.tracer.Start(ctx, "cart.AddItem", trace.WithAttributes(
		attribute.String("user.id", sess.UserID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	steps := []coordinator.Step{
		&OptimisticAddStep{engine: e, userID: sess.UserID, productID: productID, quantity: quantity, unitPrice: unitPrice},
		&RemoteAddStep{engine: e, sess: sess, productID: productID, quantity: quantity, unitPrice: unitPrice},
	}
	payload := encodePayload(map[string]any{
		"product_id": productID,
		"quantity":   quantity,
		"unit_price": unitPrice.String(),
	})
	if err := e.orchestrator(sess.UserID, "cart.add", steps).Start(ctx, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	e.scheduleResync()
	return nil
}

// UpdateQuantity sets the quantity of a line. Zero never reaches the store:
// it yields a removal request that must be confirmed.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) (*confirm.Pending, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		return e.RequestRemove(productID), nil
	}

	sess := e.sessions.Current()
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	step := coordinator.NewStep("remote_set_quantity", func(ctx context.Context) error {
		_, err := e.store.SetQuantity(session.NewContext(ctx, sess), productID, quantity)
		return domain.AsRemote("set quantity", err)
	}, nil)

	payload := encodePayload(map[string]any{"product_id": productID, "quantity": quantity})
	return nil, e.mutate(ctx, sess, "cart.set_quantity", payload, step)
}

// Increment adds one unit to an existing line.
func (e *Engine) Increment(ctx context.Context, productID string) (*confirm.Pending, error) {
	line, ok := e.line(productID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.UpdateQuantity(ctx, productID, line.Quantity+1)
}

// Decrement removes one unit; on a single-unit line it yields the removal
// request instead.
func (e *Engine) Decrement(ctx context.Context, productID string) (*confirm.Pending, error) {
	line, ok := e.line(productID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.UpdateQuantity(ctx, productID, line.Quantity-1)
}

// RequestRemove stages the removal of a line. Nothing happens until the
// returned Pending is confirmed.
func (e *Engine) RequestRemove(productID string) *confirm.Pending {
	return confirm.New("cart.remove", productID, func(ctx context.Context) error {
		sess := e.sessions.Current()
		if !sess.Authenticated() {
			return domain.ErrUnauthenticated
		}
		step := coordinator.NewStep("remote_remove", func(ctx context.Context) error {
			return domain.AsRemote("remove line", e.store.RemoveLine(session.NewContext(ctx, sess), productID))
		}, nil)
		return e.mutate(ctx, sess, "cart.remove", encodePayload(map[string]any{"product_id": productID}), step)
	}, nil)
}

// RequestClear stages emptying the whole cart.
func (e *Engine) RequestClear() *confirm.Pending {
	return confirm.New("cart.clear", "", func(ctx context.Context) error {
		sess := e.sessions.Current()
		if !sess.Authenticated() {
			return domain.ErrUnauthenticated
		}
		step := coordinator.NewStep("remote_clear", func(ctx context.Context) error {
			return domain.AsRemote("clear cart", e.store.ClearCart(session.NewContext(ctx, sess)))
		}, nil)
		return e.mutate(ctx, sess, "cart.clear", "", step)
	}, nil)
}

// mutate runs a pessimistic mutation and resyncs afterwards, whatever the
// outcome. The mutation error wins over the resync error.
func (e *Engine) mutate(ctx context.Context, sess session.Session, op, payload string, steps ...coordinator.Step) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("user.id", sess.UserID)))
	defer span.End()

	err := e.orchestrator(sess.UserID, op, steps).Start(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if lerr := e.Load(context.WithoutCancel(ctx)); lerr != nil && !errors.Is(lerr, ErrClosed) {
		e.logger.WarnContext(ctx, "resync after mutation failed",
			slog.String("operation", op),
			slog.Any("error", lerr),
		)
		if err == nil {
			return lerr
		}
	}
	return err
}

func (e *Engine) orchestrator(subject, op string, steps []coordinator.Step) *coordinator.Orchestrator {
	return coordinator.NewOrchestrator(subject, op, steps, e.journal,
		coordinator.WithLogger(e.logger), coordinator.WithClock(e.clock))
}

// scheduleResync (re)arms the delayed load that replaces optimistic lines.
func (e *Engine) scheduleResync() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.resync != nil {
		e.resync.Stop()
	}
	e.resync = e.clock.AfterFunc(e.resyncDelay, func() {
		e.backgroundLoad("resync")
	})
}

// backgroundLoad runs a load on behalf of a timer. Failures are logged.
func (e *Engine) backgroundLoad(reason string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()
	defer e.wg.Done()

	if err := e.Load(e.bgCtx); err != nil && !errors.Is(err, ErrClosed) {
		e.logger.WarnContext(e.bgCtx, "background cart load failed",
			slog.String("reason", reason),
			slog.Any("error", err),
		)
	}
}

func (e *Engine) acquireAddLocked(productID string) bool {
	if e.perProduct {
		if _, busy := e.addingProducts[productID]; busy {
			return false
		}
		e.addingProducts[productID] = struct{}{}
		return true
	}
	if e.adding {
		return false
	}
	e.adding = true
	return true
}

func (e *Engine) releaseAdd(productID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.perProduct {
		delete(e.addingProducts, productID)
		return
	}
	e.adding = false
}

func (e *Engine) line(productID string) (domain.CartLine, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Line(productID)
}

// Lines returns a copy of the current lines in insertion order.
func (e *Engine) Lines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.CartLine, len(e.cart.Lines))
	copy(out, e.cart.Lines)
	return out
}

func (e *Engine) Cart() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	lines := make([]domain.CartLine, len(e.cart.Lines))
	copy(lines, e.cart.Lines)
	return domain.Cart{UserID: e.cart.UserID, Lines: lines}
}

// Total is recomputed from the lines on every call.
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Total()
}

func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.ItemCount()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func encodePayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
