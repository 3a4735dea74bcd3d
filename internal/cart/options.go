package cart

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
)

const (
	DefaultResyncDelay  = time.Second
	DefaultPollInterval = 120 * time.Second
)

type Option func(*Engine)

func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithResyncDelay sets how long after a successful add the authoritative
// cart is fetched again.
func WithResyncDelay(d time.Duration) Option {
	return func(e *Engine) { e.resyncDelay = d }
}

// WithPollInterval sets the background refresh period. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

func WithJournal(r journal.Repository) Option {
	return func(e *Engine) { e.journal = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPerProductGate replaces the single global add gate with one gate per
// product, so adds of different products may overlap.
func WithPerProductGate(on bool) Option {
	return func(e *Engine) { e.perProduct = on }
}
