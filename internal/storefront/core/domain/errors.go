package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable covers any network or server failure of the remote store.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrUnauthenticated   = errors.New("no authenticated user")
)

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order status cannot change from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// RemoteError describes a failed call to the remote store.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	return []error{ErrRemoteUnavailable, e.Err}
}

// AsRemote wraps err so that errors.Is(err, ErrRemoteUnavailable) holds.
// Errors already classified are returned with op prefixed only.
func AsRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRemoteUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &RemoteError{Op: op, Err: err}
}
