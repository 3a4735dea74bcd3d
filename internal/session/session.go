// Package session carries the authenticated identity explicitly instead of
// reading it from ambient storage.
package session

import (
	"context"
	"sync"
)

type Session struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
	Admin  bool   `json:"admin,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.UserID != "" && s.Token != ""
}

// Fixed is a SessionSource that never changes.
type Fixed Session

func (f Fixed) Current() Session { return Session(f) }

// Holder is a mutable session shared by the components of one workspace.
type Holder struct {
	mu  sync.RWMutex
	cur Session
}

func NewHolder(s Session) *Holder {
	return &Holder{cur: s}
}

func (h *Holder) Current() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

func (h *Holder) Login(s Session) {
	h.mu.Lock()
	h.cur = s
	h.mu.Unlock()
}

func (h *Holder) Logout() {
	h.mu.Lock()
	h.cur = Session{}
	h.mu.Unlock()
}

type ctxKey struct{}

func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
