// Package identity carries the session identity contract between the
// embedding application's authentication layer and the moderation core. The
// application authenticates however it likes and attaches a Session to the
// request context; the core only ever reads it back out.
package identity

import (
	"context"
	"net/http"
)

// Session is the identity the authentication layer resolved for a request.
// RoleHint is whatever role the identity provider embedded in its token; it
// is a stale, optional hint and never authoritative. Roles are always
// re-resolved from the role store.
type Session struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	RoleHint string `json:"role,omitempty"`
}

type contextKey struct{}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session attached to the context, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, found := ctx.Value(contextKey{}).(Session)
	return s, found && s.ID != ""
}

// HeaderMiddleware reads the session from trusted proxy headers. It exists
// for development and for deployments where an auth proxy terminates the
// session upstream; it must never face untrusted clients directly.
func HeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-Veranda-User")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		session := Session{
			ID:       userID,
			Email:    r.Header.Get("X-Veranda-Email"),
			RoleHint: r.Header.Get("X-Veranda-Role"),
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}
