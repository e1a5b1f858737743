package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	autherrors "github.com/mfletch/go-auth-gateway/internal/errors"
	"github.com/mfletch/go-auth-gateway/sessions"
)

// loginFailedRedirect is where the browser lands when the provider itself
// rejected the authorization attempt.
const loginFailedRedirect = RouteLoginPage + "?error=auth_failed"

// OAuthCallbackHandler completes a login attempt. Each gate is hard: no
// step runs past a failed prior step, and no cookie is written unless the
// whole back-channel sequence succeeded.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Gate 1: provider-reported error. No token exchange is attempted.
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			log.Warn().Str("error", errParam).Msg("provider rejected authorization")
			http.Redirect(w, r, loginFailedRedirect, http.StatusFound)
			return
		}

		// Gate 2: required parameters.
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		// Gate 3: the anti-CSRF check. Proves the browser completing the
		// callback is the one that initiated the login.
		if !verifyCSRF(r, state) {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		nonceCookie, err := r.Cookie(nonceCookieName)
		if err != nil || nonceCookie.Value == "" {
			http.Error(w, "Missing login attempt state", http.StatusBadRequest)
			return
		}

		// Gates 4-6: the back-channel sequence. Any failure is an upstream
		// error; nothing is persisted.
		session, err := s.completeLogin(r.Context(), code, nonceCookie.Value)
		if err != nil {
			log.Error().Err(err).Msg("login completion failed")
			http.Error(w, "Authentication failed", http.StatusInternalServerError)
			return
		}

		cookieValue, err := s.codec.Encode(session)
		if err != nil {
			log.Error().Err(err).Msg("session encoding failed")
			http.Error(w, "Authentication failed", http.StatusInternalServerError)
			return
		}

		// Gate 7: persist the session, then retire the single-use login
		// attempt cookies. Clearing only happens after the session cookie
		// is set, in the same response.
		s.setSessionCookie(w, r, cookieValue)
		clearCookie(w, r, csrfCookieName)
		clearCookie(w, r, nonceCookieName)

		http.Redirect(w, r, RouteIndex, http.StatusFound)
	}
}

// completeLogin runs the back-channel part of the callback: code exchange,
// id_token verification against the issued nonce, and the userinfo fetch.
// Returned errors wrap the autherrors sentinels; token material never
// appears in them.
func (s *Server) completeLogin(ctx context.Context, code, nonce string) (sessions.Session, error) {
	token, err := s.oidc.Exchange(ctx, code)
	if err != nil {
		return sessions.Session{}, autherrors.Wrapf(err, "exchange")
	}

	rawIDToken, err := s.oidc.VerifyIDToken(ctx, token, nonce)
	if err != nil {
		return sessions.Session{}, autherrors.Wrapf(err, "verify id_token")
	}

	userInfo, err := s.oidc.FetchUserInfo(ctx, token)
	if err != nil {
		return sessions.Session{}, autherrors.Wrapf(err, "userinfo")
	}

	return sessions.Session{
		AccessToken: token.AccessToken,
		IDToken:     rawIDToken,
		UserInfo:    userInfo,
	}, nil
}
