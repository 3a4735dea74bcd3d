// Package confirm implements the two-phase discipline for destructive or
// irreversible actions: an operation is first requested, producing a
// Pending, and only runs once the Pending is explicitly confirmed.
package confirm

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrDeclined is returned by Confirm on a declined request. It marks a
	// normal cancellation, not a failure.
	ErrDeclined        = errors.New("confirmation declined")
	ErrAlreadyResolved = errors.New("confirmation already resolved")
)

type resolution int

const (
	open resolution = iota
	confirmed
	declined
)

// Pending is a staged action waiting for a yes or no.
type Pending struct {
	ID      string
	Action  string
	Subject string

	mu        sync.Mutex
	state     resolution
	onConfirm func(ctx context.Context) error
	onDecline func()
}

// New stages an action. onDecline may be nil.
func New(action, subject string, onConfirm func(ctx context.Context) error, onDecline func()) *Pending {
	return &Pending{
		ID:        uuid.NewString(),
		Action:    action,
		Subject:   subject,
		onConfirm: onConfirm,
		onDecline: onDecline,
	}
}

// Confirm runs the staged action once. The request is consumed even when
// the action fails.
func (p *Pending) Confirm(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case declined:
		p.mu.Unlock()
		return ErrDeclined
	case confirmed:
		p.mu.Unlock()
		return ErrAlreadyResolved
	}
	p.state = confirmed
	p.mu.Unlock()

	return p.onConfirm(ctx)
}

// Decline discards the request. Declining a resolved request does nothing.
func (p *Pending) Decline() {
	p.mu.Lock()
	if p.state != open {
		p.mu.Unlock()
		return
	}
	p.state = declined
	p.mu.Unlock()

	if p.onDecline != nil {
		p.onDecline()
	}
}

func (p *Pending) Resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != open
}
