package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mfletch/go-auth-gateway/internal/config"
	"github.com/mfletch/go-auth-gateway/provider"
	"github.com/mfletch/go-auth-gateway/provider/providerfake"
	"github.com/mfletch/go-auth-gateway/server"
	"github.com/mfletch/go-auth-gateway/sessions"
)

const (
	testClientID     = "test-client-1"
	testClientSecret = "test-secret-1"
	testRedirectURL  = "http://localhost:8080/auth/callback"
)

type fixture struct {
	srv   *server.Server
	fake  *providerfake.FakeProvider
	codec *sessions.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake, err := providerfake.New()
	require.NoError(t, err)
	t.Cleanup(fake.Close)

	oidcClient, err := provider.New(context.Background(), provider.Config{
		IssuerURL:    fake.IssuerURL(),
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURL,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)

	codec, err := sessions.NewCodec(sessions.GenerateKey())
	require.NoError(t, err)

	cfg := config.Config{
		IssuerURL:    fake.IssuerURL(),
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURL,
		AppName:      "Auth Gateway",
		Env:          "TEST",
	}

	return &fixture{
		srv:   server.New(cfg, oidcClient, codec),
		fake:  fake,
		codec: codec,
	}
}

func (f *fixture) do(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// sessionCookie encodes a valid session under the fixture's key, the way a
// completed login would have.
func (f *fixture) sessionCookie(t *testing.T, s sessions.Session) *http.Cookie {
	t.Helper()
	value, err := f.codec.Encode(s)
	require.NoError(t, err)
	return &http.Cookie{Name: "session", Value: value}
}

func validSession() sessions.Session {
	return sessions.Session{
		AccessToken: "fake-access-token",
		IDToken:     "fake-id-token",
		UserInfo: sessions.UserInfo{
			Sub:               "user-1",
			Email:             "john.doe@example.com",
			Name:              "John Doe",
			PreferredUsername: "jdoe",
		},
	}
}

func TestLoginHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "/auth/login")
	require.Equal(t, http.StatusFound, rec.Code)

	csrfCookie := cookieByName(rec, "csrf_token")
	require.NotNil(t, csrfCookie)
	require.NotEmpty(t, csrfCookie.Value)
	require.True(t, csrfCookie.HttpOnly)
	require.Equal(t, "/", csrfCookie.Path)
	require.Equal(t, 300, csrfCookie.MaxAge)

	nonceCookie := cookieByName(rec, "oidc_nonce")
	require.NotNil(t, nonceCookie)
	require.NotEmpty(t, nonceCookie.Value)
	require.NotEqual(t, csrfCookie.Value, nonceCookie.Value)

	authURL, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	q := authURL.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, "openid profile email", q.Get("scope"))
	require.Equal(t, csrfCookie.Value, q.Get("state"))
	require.Equal(t, nonceCookie.Value, q.Get("nonce"))
}

func TestCallbackMissingParameters(t *testing.T) {
	f := newFixture(t)

	cases := map[string]string{
		"no params":  "/auth/callback",
		"no code":    "/auth/callback?state=x",
		"no state":   "/auth/callback?code=abc",
		"empty code": "/auth/callback?code=&state=x",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, target, &http.Cookie{Name: "csrf_token", Value: "x"})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Nil(t, cookieByName(rec, "session"))
		})
	}

	// No gate failure may reach the provider.
	require.Zero(t, f.fake.TokenHits())
}

func TestCallbackStateMismatch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "/auth/callback?code=abc&state=attacker-state",
		&http.Cookie{Name: "csrf_token", Value: "issued-state"},
		&http.Cookie{Name: "oidc_nonce", Value: "n"},
	)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, cookieByName(rec, "session"))
	require.Zero(t, f.fake.TokenHits())
}

func TestCallbackMissingCSRFCookie(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "/auth/callback?code=abc&state=issued-state")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, cookieByName(rec, "session"))
	require.Zero(t, f.fake.TokenHits())
}

func TestCallbackProviderError(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "/auth/callback?error=access_denied")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login?error=auth_failed", rec.Header().Get("Location"))

	// No cookies of any kind are written, and no exchange is attempted.
	require.Empty(t, rec.Result().Cookies())
	require.Zero(t, f.fake.TokenHits())
}

func TestCallbackExchangeFailureLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	f.fake.FailExchange = true

	rec := f.do(t, "/auth/callback?code=abc&state=issued-state",
		&http.Cookie{Name: "csrf_token", Value: "issued-state"},
		&http.Cookie{Name: "oidc_nonce", Value: "issued-nonce"},
	)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestCallbackUserInfoFailureLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	f.fake.Nonce = "issued-nonce"
	f.fake.FailUserInfo = true

	rec := f.do(t, "/auth/callback?code=abc&state=issued-state",
		&http.Cookie{Name: "csrf_token", Value: "issued-state"},
		&http.Cookie{Name: "oidc_nonce", Value: "issued-nonce"},
	)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestCallbackMissingIDToken(t *testing.T) {
	f := newFixture(t)
	f.fake.OmitIDToken = true

	rec := f.do(t, "/auth/callback?code=abc&state=issued-state",
		&http.Cookie{Name: "csrf_token", Value: "issued-state"},
		&http.Cookie{Name: "oidc_nonce", Value: "issued-nonce"},
	)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestCallbackNonceMismatch(t *testing.T) {
	f := newFixture(t)
	f.fake.Nonce = "issued-nonce"
	f.fake.WrongNonce = true

	rec := f.do(t, "/auth/callback?code=abc&state=issued-state",
		&http.Cookie{Name: "csrf_token", Value: "issued-state"},
		&http.Cookie{Name: "oidc_nonce", Value: "issued-nonce"},
	)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestEndToEndLoginFlow(t *testing.T) {
	f := newFixture(t)

	// Initiate login.
	loginRec := f.do(t, "/auth/login")
	require.Equal(t, http.StatusFound, loginRec.Code)

	csrfCookie := cookieByName(loginRec, "csrf_token")
	nonceCookie := cookieByName(loginRec, "oidc_nonce")
	require.NotNil(t, csrfCookie)
	require.NotNil(t, nonceCookie)

	authURL, err := url.Parse(loginRec.Header().Get("Location"))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.Equal(t, csrfCookie.Value, state)

	// Simulate the provider binding the nonce to the issued code.
	f.fake.Nonce = nonceCookie.Value

	// Provider redirects back with code "abc" and the matching state.
	callbackRec := f.do(t, "/auth/callback?code=abc&state="+url.QueryEscape(state),
		&http.Cookie{Name: csrfCookie.Name, Value: csrfCookie.Value},
		&http.Cookie{Name: nonceCookie.Name, Value: nonceCookie.Value},
	)
	require.Equal(t, http.StatusFound, callbackRec.Code)
	require.Equal(t, "/", callbackRec.Header().Get("Location"))

	sessionCookie := cookieByName(callbackRec, "session")
	require.NotNil(t, sessionCookie)
	require.NotEmpty(t, sessionCookie.Value)
	require.True(t, sessionCookie.HttpOnly)
	require.Equal(t, "/", sessionCookie.Path)

	// Single-use login attempt cookies are retired in the same response.
	clearedCSRF := cookieByName(callbackRec, "csrf_token")
	require.NotNil(t, clearedCSRF)
	require.Empty(t, clearedCSRF.Value)
	require.Negative(t, clearedCSRF.MaxAge)

	// The cookie decodes to the session derived from the provider claims.
	session, ok := f.codec.Decode(sessionCookie.Value)
	require.True(t, ok)
	require.Equal(t, "user-1", session.UserInfo.Sub)
	require.Equal(t, "fake-access-token", session.AccessToken)
	require.NotEmpty(t, session.IDToken)

	// /auth/me reflects the claims, without the subject.
	meRec := f.do(t, "/auth/me", &http.Cookie{Name: "session", Value: sessionCookie.Value})
	require.Equal(t, http.StatusOK, meRec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(meRec.Body.Bytes(), &body))
	require.Equal(t, "john.doe@example.com", body["email"])
	require.Equal(t, "John Doe", body["name"])
	require.Equal(t, "jdoe", body["preferred_username"])
	require.NotContains(t, body, "sub")
}

func TestMeUnauthenticated(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "/auth/me")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeWithTamperedCookie(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "/auth/me", &http.Cookie{Name: "session", Value: "garbage-cookie-value"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeOmitsAbsentClaims(t *testing.T) {
	f := newFixture(t)

	cookie := f.sessionCookie(t, sessions.Session{
		AccessToken: "at",
		IDToken:     "it",
		UserInfo:    sessions.UserInfo{Sub: "user-2"},
	})

	rec := f.do(t, "/auth/me", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body)
}

func TestLogoutIdempotent(t *testing.T) {
	f := newFixture(t)
	cookie := f.sessionCookie(t, validSession())

	for i := 0; i < 2; i++ {
		rec := f.do(t, "/auth/logout", cookie)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))

		cleared := cookieByName(rec, "session")
		require.NotNil(t, cleared)
		require.Empty(t, cleared.Value)
		require.Equal(t, "/", cleared.Path)
		require.Negative(t, cleared.MaxAge)

		// The browser drops the cookie after the first pass.
		cookie = &http.Cookie{Name: "session", Value: ""}
	}

	rec := f.do(t, "/auth/me")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIndexReflectsSessionState(t *testing.T) {
	f := newFixture(t)

	anonRec := f.do(t, "/")
	require.Equal(t, http.StatusOK, anonRec.Code)
	require.Contains(t, anonRec.Body.String(), "/auth/login")

	authRec := f.do(t, "/", f.sessionCookie(t, validSession()))
	require.Equal(t, http.StatusOK, authRec.Code)
	require.Contains(t, authRec.Body.String(), "user-1")
	require.Contains(t, authRec.Body.String(), "/auth/logout")
}

func TestLoginPageShowsError(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "/login?error=auth_failed")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "auth_failed")
}
