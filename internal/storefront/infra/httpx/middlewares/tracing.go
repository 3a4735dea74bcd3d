package middlewares

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors/constants"
)

// AttachTracingMetadata copies the request id and idempotency key into the
// context so outgoing store calls carry the same values.
func AttachTracingMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		idempotencyKey := r.Header.Get(constants.HeaderXIdempotencyKey)

		ctx := r.Context()
		if requestID != "" {
			ctx = context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
			w.Header().Set(constants.HeaderXRequestId, requestID)
		}
		if idempotencyKey != "" {
			ctx = context.WithValue(ctx, constants.ContextKeyIdempotencyKey, idempotencyKey)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
