package cart

// State is the reconciliation state of the engine.
type State int

const (
	// Idle: local lines equal the last authoritative fetch.
	Idle State = iota
	// OptimisticPending: an add is in flight or an optimistic line awaits
	// its resync.
	OptimisticPending
	// Reconciling: a load is in flight.
	Reconciling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case OptimisticPending:
		return "optimistic_pending"
	case Reconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// stateLocked derives the state; e.mu must be held.
func (e *Engine) stateLocked() State {
	if e.loading > 0 {
		return Reconciling
	}
	if e.adding || len(e.addingProducts) > 0 {
		return OptimisticPending
	}
	for _, l := range e.cart.Lines {
		if l.Optimistic() {
			return OptimisticPending
		}
	}
	return Idle
}
