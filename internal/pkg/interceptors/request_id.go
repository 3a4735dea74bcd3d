package interceptors

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors/constants"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain wraps base with the given decorators; the first one runs outermost.
func Chain(base http.RoundTripper, decorators ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(decorators) - 1; i >= 0; i-- {
		base = decorators[i](base)
	}
	return base
}

// WithRequestID propagates the request id found in the context, or mints one.
func WithRequestID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		id := GetContextValue(r.Context(), constants.ContextKeyRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		r = r.Clone(r.Context())
		r.Header.Set(constants.HeaderXRequestId, id)
		return next.RoundTrip(r)
	})
}

// WithIdempotencyKey stamps mutating requests so the server can deduplicate
// retried submissions.
func WithIdempotencyKey(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			return next.RoundTrip(r)
		}
		key := GetContextValue(r.Context(), constants.ContextKeyIdempotencyKey)
		if key == "" {
			key = uuid.NewString()
		}
		r = r.Clone(r.Context())
		r.Header.Set(constants.HeaderXIdempotencyKey, key)
		return next.RoundTrip(r)
	})
}

func GetContextValue(ctx context.Context, key any) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyRequestID, id)
}

// WithIdempotencyScope narrows the idempotency key carried by ctx to a single
// backend call, so one client submission fanning out to several calls sends a
// distinct, stable key per call. Without a key in ctx it returns ctx as is.
func WithIdempotencyScope(ctx context.Context, scope string) context.Context {
	key := GetContextValue(ctx, constants.ContextKeyIdempotencyKey)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, constants.ContextKeyIdempotencyKey, key+":"+scope)
}
