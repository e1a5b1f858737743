package server

import (
	"context"
	"net/http"

	"github.com/mfletch/go-auth-gateway/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the decoded session for downstream handlers
const ContextKeySession ContextKey = "session"

// SessionMiddleware decodes the session cookie and attaches the result to
// the request context. It never blocks a request: an absent, expired or
// tampered cookie simply leaves the request anonymous. Authorization
// decisions belong to downstream handlers, not here.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if session, ok := s.codec.Decode(cookie.Value); ok {
				ctx := context.WithValue(r.Context(), ContextKeySession, &session)
				r = r.WithContext(ctx)
			}
		}
		next(w, r)
	}
}

// SessionFromContext returns the session attached by SessionMiddleware.
// Downstream consumers must treat a false return as "anonymous" and never
// infer authentication from any other signal.
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	session, ok := ctx.Value(ContextKeySession).(*sessions.Session)
	return session, ok
}
