package confirm

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrUnknownConfirmation = errors.New("unknown or expired confirmation")

type registryEntry struct {
	pending *Pending
	expires time.Time
}

// Registry parks Pendings between the request that created them and the
// request that resolves them. Entries older than the TTL are declined and
// dropped.
type Registry struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	ttl     time.Duration
	entries map[string]registryEntry
}

func NewRegistry(clock clockwork.Clock, ttl time.Duration) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]registryEntry),
	}
}

func (r *Registry) Put(p *Pending) {
	r.mu.Lock()
	expired := r.sweepLocked()
	r.entries[p.ID] = registryEntry{pending: p, expires: r.clock.Now().Add(r.ttl)}
	r.mu.Unlock()

	for _, e := range expired {
		e.Decline()
	}
}

// Take removes and returns the Pending with the given id.
func (r *Registry) Take(id string) (*Pending, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return nil, ErrUnknownConfirmation
	}
	if r.ttl > 0 && !r.clock.Now().Before(e.expires) {
		e.pending.Decline()
		return nil, ErrUnknownConfirmation
	}
	return e.pending, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// DeclineAll empties the registry, declining everything still open.
func (r *Registry) DeclineAll() {
	r.mu.Lock()
	all := make([]*Pending, 0, len(r.entries))
	for id, e := range r.entries {
		all = append(all, e.pending)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, p := range all {
		p.Decline()
	}
}

func (r *Registry) sweepLocked() []*Pending {
	if r.ttl <= 0 {
		return nil
	}
	now := r.clock.Now()
	var expired []*Pending
	for id, e := range r.entries {
		if !now.Before(e.expires) {
			expired = append(expired, e.pending)
			delete(r.entries, id)
		}
	}
	return expired
}
