package interceptors

import (
	"net/http"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors/constants"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
)

// WithBearer attaches the credential of the session carried by the request
// context. Requests without a session go out unauthenticated and the
// backend answers 401.
func WithBearer(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		sess, ok := session.FromContext(r.Context())
		if !ok || !sess.Authenticated() {
			return next.RoundTrip(r)
		}
		r = r.Clone(r.Context())
		r.Header.Set(constants.HeaderAuthorization, "Bearer "+sess.Token)
		r.Header.Set(constants.HeaderXUserID, sess.UserID)
		return next.RoundTrip(r)
	})
}
