// Package provider wraps the OIDC issuer the gateway authenticates against.
// The issuer metadata is resolved once at startup; the resulting Client is
// immutable and shared read-only by all requests.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	autherrors "github.com/mfletch/go-auth-gateway/internal/errors"
	"github.com/mfletch/go-auth-gateway/sessions"
)

// Config identifies this relying party to the issuer.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Timeout bounds every outbound call to the provider (discovery, code
	// exchange, userinfo) so a slow issuer cannot occupy a request slot
	// indefinitely.
	Timeout time.Duration
}

// Client is the immutable descriptor built from the discovered issuer
// metadata plus our client credentials.
type Client struct {
	provider *oidc.Provider
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
	httpc    *http.Client
}

// New discovers the issuer configuration and builds the client. Discovery
// failure is fatal: without endpoint and key metadata no token validation
// is possible.
func New(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	httpc := &http.Client{Timeout: timeout}

	discoverCtx, cancel := context.WithTimeout(oidc.ClientContext(ctx, httpc), timeout)
	defer cancel()

	oidcProvider, err := oidc.NewProvider(discoverCtx, cfg.IssuerURL)
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrDiscovery, "issuer %q: %s", cfg.IssuerURL, err)
	}

	return &Client{
		provider: oidcProvider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		timeout:  timeout,
		httpc:    httpc,
	}, nil
}

// AuthCodeURL builds the provider authorization URL for one login attempt.
// No network call is made here; the browser performs the redirect.
func (c *Client) AuthCodeURL(state, nonce string) string {
	return c.oauth.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange trades the authorization code for tokens at the token endpoint.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := c.boundedContext(ctx)
	defer cancel()

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrUpstream, "code exchange: %s", err)
	}
	return token, nil
}

// VerifyIDToken checks the id_token signature against the issuer's signing
// keys and validates the nonce claim against the value issued at login.
func (c *Client) VerifyIDToken(ctx context.Context, token *oauth2.Token, nonce string) (string, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", autherrors.ErrNoIDToken
	}

	ctx, cancel := c.boundedContext(ctx)
	defer cancel()

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", autherrors.Wrapf(autherrors.ErrUpstream, "id_token verification: %s", err)
	}
	if idToken.Nonce != nonce {
		return "", autherrors.ErrNonceMismatch
	}
	return rawIDToken, nil
}

// FetchUserInfo requests the userinfo claims with the freshly obtained
// access token and maps them to a UserInfo. The subject is mandatory; the
// remaining claims pass through when present.
func (c *Client) FetchUserInfo(ctx context.Context, token *oauth2.Token) (sessions.UserInfo, error) {
	ctx, cancel := c.boundedContext(ctx)
	defer cancel()

	userInfo, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return sessions.UserInfo{}, autherrors.Wrapf(autherrors.ErrUpstream, "userinfo request: %s", err)
	}

	var claims struct {
		Sub               string `json:"sub"`
		Email             string `json:"email"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return sessions.UserInfo{}, autherrors.Wrapf(autherrors.ErrUpstream, "userinfo claims: %s", err)
	}
	if claims.Sub == "" {
		return sessions.UserInfo{}, autherrors.ErrMissingSubject
	}

	return sessions.UserInfo{
		Sub:               claims.Sub,
		Email:             claims.Email,
		Name:              claims.Name,
		PreferredUsername: claims.PreferredUsername,
	}, nil
}

func (c *Client) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(oidc.ClientContext(ctx, c.httpc), c.timeout)
}
