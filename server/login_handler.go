package server

import "net/http"

// LoginHandler starts a login attempt: it generates the csrf token and the
// nonce, stores both in short-lived cookies, and redirects the browser to
// the provider authorization URL. The cookies are written before the
// redirect so the callback can always find them.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := issueCSRFToken(w, r)

		nonce := generateRandomString(32)
		setLoginAttemptCookie(w, r, nonceCookieName, nonce)

		http.Redirect(w, r, s.oidc.AuthCodeURL(state, nonce), http.StatusFound)
	}
}
