package middlewares

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors/constants"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
)

// Authenticate resolves the bearer token through the session store and puts
// the session into the request context. Unknown tokens get a 401.
func Authenticate(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get(constants.HeaderAuthorization), "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			sess, err := store.Lookup(r.Context(), token)
			if err != nil {
				if !errors.Is(err, session.ErrUnknownToken) {
					slog.ErrorContext(r.Context(), "session lookup failed", slog.Any("error", err))
				}
				unauthorized(w, "invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

// RequireAdmin lets only admin sessions through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok || !sess.Admin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin_required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": msg})
}
