package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/cache"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors/constants"
)

type userKey struct{}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// RequireBearer rejects calls without a bearer credential and a user id.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get(constants.HeaderAuthorization), "Bearer ")
		user := r.Header.Get(constants.HeaderXUserID)
		if !ok || strings.TrimSpace(token) == "" || user == "" {
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type replay struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a mutating request whose
// idempotency key was already seen for the same user, method and path.
// Only 2xx responses are stored.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(constants.HeaderXIdempotencyKey)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			cacheKey := c.GenerateKey("idempotency", userID(r)+":"+r.Method+":"+r.URL.Path+":"+key)

			if raw, err := c.Get(r.Context(), cacheKey); err == nil && raw != "" {
				var prev replay
				if err := json.Unmarshal([]byte(raw), &prev); err == nil {
					slog.DebugContext(r.Context(), "replaying idempotent response", slog.String("key", key))
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("Idempotent-Replay", "true")
					w.WriteHeader(prev.Status)
					_, _ = w.Write(prev.Body)
					return
				}
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 300 {
				return
			}
			b, err := json.Marshal(replay{Status: rec.status, Body: rec.buf.Bytes()})
			if err != nil {
				return
			}
			if err := c.Set(context.WithoutCancel(r.Context()), cacheKey, b, ttl); err != nil {
				slog.WarnContext(r.Context(), "idempotency cache write failed", slog.Any("error", err))
			}
		})
	}
}
