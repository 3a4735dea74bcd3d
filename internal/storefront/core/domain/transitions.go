package domain

// transitions lists, for each status, every status it may move to.
// Self-transitions are no-ops and always allowed; there is no path back.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPendiente: {StatusPendiente, StatusEnviado},
	StatusEnviado:   {StatusEnviado, StatusEntregado},
	StatusEntregado: {StatusEntregado},
	StatusCancelado: {StatusCancelado},
}

// AllowedNextStates returns a fresh slice; unknown statuses allow nothing.
func AllowedNextStates(current OrderStatus) []OrderStatus {
	next := transitions[current]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an *InvalidTransitionError naming the pair.
func ValidateTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

func (s OrderStatus) Terminal() bool {
	next := transitions[s]
	return len(next) == 1 && next[0] == s
}
