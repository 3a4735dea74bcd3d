// Package app wires one cart engine, one order status machine and one
// confirmation registry per signed-in user.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/cart"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/checkout"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/confirm"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/orderstatus"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/ports"
)

// Workspace is everything the gateway keeps for one user.
type Workspace struct {
	Session       *session.Holder
	Cart          *cart.Engine
	Orders        *orderstatus.Machine
	Checkout      *checkout.Service
	Confirmations *confirm.Registry

	lastSeen time.Time
}

type Config struct {
	ResyncDelay     time.Duration
	PollInterval    time.Duration
	PerProductGate  bool
	ConfirmationTTL time.Duration
}

type Registry struct {
	carts   ports.CartStore
	orders  ports.OrderStore
	journal journal.Repository
	clock   clockwork.Clock
	logger  *slog.Logger
	cfg     Config

	mu         sync.Mutex
	workspaces map[string]*Workspace
	closed     bool
}

var (
	ErrShuttingDown    = errors.New("workspace registry is shutting down")
	ErrJournalDisabled = errors.New("mutation journal is not configured")
)

// NewRegistry builds a registry. repo may be nil.
func NewRegistry(carts ports.CartStore, orders ports.OrderStore, repo journal.Repository, clock clockwork.Clock, logger *slog.Logger, cfg Config) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		carts:      carts,
		orders:     orders,
		journal:    repo,
		clock:      clock,
		logger:     logger,
		cfg:        cfg,
		workspaces: make(map[string]*Workspace),
	}
}

// Open returns the workspace of sess.UserID, creating and mounting it on
// first use. A newer token for the same user replaces the stored one.
func (r *Registry) Open(ctx context.Context, sess session.Session) (*Workspace, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if ws, ok := r.workspaces[sess.UserID]; ok {
		ws.lastSeen = r.clock.Now()
		r.mu.Unlock()
		if ws.Session.Current() != sess {
			ws.Session.Login(sess)
		}
		return ws, nil
	}

	ws := r.newWorkspace(sess)
	r.workspaces[sess.UserID] = ws
	r.mu.Unlock()

	if err := ws.Cart.Start(ctx); err != nil {
		r.logger.WarnContext(ctx, "initial cart load failed",
			slog.String("user_id", sess.UserID),
			slog.Any("error", err),
		)
	}
	return ws, nil
}

func (r *Registry) newWorkspace(sess session.Session) *Workspace {
	holder := session.NewHolder(sess)
	logger := r.logger.With(slog.String("user_id", sess.UserID))

	opts := []cart.Option{
		cart.WithClock(r.clock),
		cart.WithLogger(logger),
		cart.WithPerProductGate(r.cfg.PerProductGate),
	}
	if r.cfg.ResyncDelay > 0 {
		opts = append(opts, cart.WithResyncDelay(r.cfg.ResyncDelay))
	}
	if r.cfg.PollInterval > 0 {
		opts = append(opts, cart.WithPollInterval(r.cfg.PollInterval))
	}
	if r.journal != nil {
		opts = append(opts, cart.WithJournal(r.journal))
	}

	machineOpts := []orderstatus.Option{orderstatus.WithLogger(logger), orderstatus.WithClock(r.clock)}
	if r.journal != nil {
		machineOpts = append(machineOpts, orderstatus.WithJournal(r.journal))
	}

	return &Workspace{
		Session:       holder,
		Cart:          cart.NewEngine(r.carts, holder, opts...),
		Orders:        orderstatus.NewMachine(r.orders, holder, machineOpts...),
		Checkout:      checkout.NewService(r.orders, r.carts, holder, r.journal, logger, checkout.WithClock(r.clock)),
		Confirmations: confirm.NewRegistry(r.clock, r.cfg.ConfirmationTTL),
		lastSeen:      r.clock.Now(),
	}
}

// Close unmounts the workspace of userID.
func (r *Registry) Close(userID string) {
	r.mu.Lock()
	ws, ok := r.workspaces[userID]
	delete(r.workspaces, userID)
	r.mu.Unlock()

	if ok {
		ws.shutdown()
	}
}

// Sweep closes workspaces unused for longer than maxIdle and returns how
// many were closed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := r.clock.Now()

	r.mu.Lock()
	var stale []*Workspace
	for id, ws := range r.workspaces {
		if now.Sub(ws.lastSeen) > maxIdle {
			stale = append(stale, ws)
			delete(r.workspaces, id)
		}
	}
	r.mu.Unlock()

	for _, ws := range stale {
		ws.shutdown()
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval on the registry clock until ctx is
// done.
func (r *Registry) RunSweeper(ctx context.Context, every, maxIdle time.Duration) {
	ticker := r.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := r.Sweep(maxIdle); n > 0 {
				r.logger.InfoContext(ctx, "closed idle workspaces", slog.Int("count", n))
			}
		}
	}
}

// History returns up to limit journal entries for subject, newest first.
// Subject is a user id for cart and checkout mutations or an order id for
// status changes.
func (r *Registry) History(ctx context.Context, subject string, limit int) ([]journal.Entry, error) {
	reader, ok := r.journal.(journal.Reader)
	if !ok {
		return nil, ErrJournalDisabled
	}
	return reader.List(ctx, subject, limit)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Shutdown closes every workspace and refuses new ones.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Workspace, 0, len(r.workspaces))
	for id, ws := range r.workspaces {
		all = append(all, ws)
		delete(r.workspaces, id)
	}
	r.mu.Unlock()

	for _, ws := range all {
		ws.shutdown()
	}
}

func (ws *Workspace) shutdown() {
	ws.Confirmations.DeclineAll()
	ws.Cart.Close()
	ws.Session.Logout()
}
