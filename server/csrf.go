package server

import "net/http"

// issueCSRFToken generates the random token for one login attempt and
// stores it in the short-lived csrf cookie. 32 random bytes gives well over
// the 128 bits of entropy the token needs to be unguessable.
func issueCSRFToken(w http.ResponseWriter, r *http.Request) string {
	token := generateRandomString(32)
	setLoginAttemptCookie(w, r, csrfCookieName, token)
	return token
}

// verifyCSRF compares the state parameter returned by the provider against
// the value stored in the csrf cookie. The comparison is only ever made
// against the stored cookie value; a missing cookie or any mismatch rejects
// the whole login attempt.
func verifyCSRF(r *http.Request, state string) bool {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return cookie.Value == state
}
