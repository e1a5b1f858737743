package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
)

const (
	// sessionCookieName holds the encrypted session; the cookie is the
	// session's sole storage.
	sessionCookieName = "session"
	// csrfCookieName holds the per-login-attempt csrf token the callback
	// state parameter is checked against.
	csrfCookieName = "csrf_token"
	// nonceCookieName holds the per-login-attempt nonce the id_token
	// nonce claim is checked against.
	nonceCookieName = "oidc_nonce"

	// loginCookieMaxAge bounds the csrf and nonce cookies to a single
	// login attempt.
	loginCookieMaxAge = 300 // 5 minutes
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// setLoginAttemptCookie sets one of the short-lived cookies that carry a
// login attempt across the provider round-trip.
func setLoginAttemptCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   loginCookieMaxAge,
	})
}

// setSessionCookie writes the encrypted session, overwriting any prior one.
// Session-scoped: the browser drops it when the session ends.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie removes a cookie. Path must match the one the cookie was set
// with or browsers silently keep the original.
func clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
