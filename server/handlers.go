package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// meResponse is the external view of the authenticated user. The subject
// identifier is deliberately excluded from this surface.
type meResponse struct {
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// MeHandler returns the identity attached to the request, or 401 when the
// request is anonymous.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(meResponse{
			Email:             session.UserInfo.Email,
			Name:              session.UserInfo.Name,
			PreferredUsername: session.UserInfo.PreferredUsername,
		})
	}
}

// LogoutHandler clears the session cookie and redirects to the root. Safe
// to call without a session: clearing an absent cookie is a no-op.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clearCookie(w, r, sessionCookieName)
		http.Redirect(w, r, RouteIndex, http.StatusFound)
	}
}

// IndexHandler renders a minimal home page. The real UI lives elsewhere;
// this keeps the redirect target of the auth flow serviceable.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeHTML)
		if session, ok := SessionFromContext(r.Context()); ok {
			fmt.Fprintf(w, "<html><body><h1>%s</h1><p>Signed in as %s</p><p><a href=%q>Logout</a></p></body></html>",
				html.EscapeString(s.config.AppName), html.EscapeString(session.UserInfo.Sub), RouteAuthLogout)
			return
		}
		fmt.Fprintf(w, "<html><body><h1>%s</h1><p><a href=%q>Login</a></p></body></html>",
			html.EscapeString(s.config.AppName), RouteAuthLogin)
	}
}

// LoginPageHandler renders the login landing page, surfacing any error the
// callback redirected here with.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeHTML)
		errMsg := ""
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			errMsg = fmt.Sprintf("<p>Login failed: %s</p>", html.EscapeString(errParam))
		}
		fmt.Fprintf(w, "<html><body><h1>Login</h1>%s<p><a href=%q>Sign in with your identity provider</a></p></body></html>",
			errMsg, RouteAuthLogin)
	}
}
