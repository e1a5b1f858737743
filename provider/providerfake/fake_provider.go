// Package providerfake runs an in-process OIDC identity provider for tests.
// It serves the discovery document, a JWKS endpoint, the token endpoint
// (minting real RS256 id_tokens) and the userinfo endpoint, so the full
// authorization-code flow can be exercised without a live issuer.
package providerfake

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	keyID       = "fake-key-1"
	accessToken = "fake-access-token"
)

// Claims are the identity claims the fake provider asserts, both inside the
// id_token and from the userinfo endpoint.
type Claims struct {
	Sub               string
	Email             string
	Name              string
	PreferredUsername string
}

// FakeProvider is a minimal OIDC issuer backed by httptest.
type FakeProvider struct {
	server     *httptest.Server
	privateKey *rsa.PrivateKey

	// Claims returned on a successful flow. Mutate before driving requests.
	Claims Claims

	// Failure toggles for upstream-error scenarios.
	FailExchange bool
	FailUserInfo bool
	OmitIDToken  bool

	// Nonce is embedded in minted id_tokens. A real issuer receives the
	// nonce on the authorization request and binds it to the code; this
	// fake never sees that request, so tests set it from the value the
	// gateway issued.
	Nonce string

	// WrongNonce makes the minted id_token carry a nonce that cannot match
	// the one the gateway issued.
	WrongNonce bool

	tokenHits    atomic.Int64
	userInfoHits atomic.Int64
}

// New starts the fake provider. Callers must Close it.
func New() (*FakeProvider, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}

	f := &FakeProvider{
		privateKey: privateKey,
		Claims: Claims{
			Sub:               "user-1",
			Email:             "john.doe@example.com",
			Name:              "John Doe",
			PreferredUsername: "jdoe",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", f.discoveryHandler)
	mux.HandleFunc("GET /jwks", f.jwksHandler)
	mux.HandleFunc("POST /token", f.tokenHandler)
	mux.HandleFunc("GET /userinfo", f.userInfoHandler)
	f.server = httptest.NewServer(mux)

	return f, nil
}

// Close shuts the fake issuer down.
func (f *FakeProvider) Close() {
	f.server.Close()
}

// IssuerURL returns the issuer this fake answers for.
func (f *FakeProvider) IssuerURL() string {
	return f.server.URL
}

// TokenHits reports how many code exchanges reached the token endpoint.
func (f *FakeProvider) TokenHits() int64 {
	return f.tokenHits.Load()
}

// UserInfoHits reports how many requests reached the userinfo endpoint.
func (f *FakeProvider) UserInfoHits() int64 {
	return f.userInfoHits.Load()
}

func (f *FakeProvider) discoveryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"issuer":                                f.server.URL,
		"authorization_endpoint":                f.server.URL + "/authorize",
		"token_endpoint":                        f.server.URL + "/token",
		"userinfo_endpoint":                     f.server.URL + "/userinfo",
		"jwks_uri":                              f.server.URL + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (f *FakeProvider) jwksHandler(w http.ResponseWriter, r *http.Request) {
	pub := &f.privateKey.PublicKey
	writeJSON(w, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"use": "sig",
			"kid": keyID,
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *FakeProvider) tokenHandler(w http.ResponseWriter, r *http.Request) {
	f.tokenHits.Add(1)

	if f.FailExchange {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}
	if r.FormValue("code") == "" {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		return
	}

	clientID := r.FormValue("client_id")
	if id, _, ok := r.BasicAuth(); ok {
		clientID = id
	}

	nonce := f.Nonce
	if f.WrongNonce {
		nonce = "not-the-issued-nonce"
	}

	resp := map[string]any{
		"access_token": accessToken,
		"token_type":   "bearer",
		"expires_in":   900,
	}
	if !f.OmitIDToken {
		idToken, err := f.mintIDToken(clientID, nonce)
		if err != nil {
			http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
			return
		}
		resp["id_token"] = idToken
	}
	writeJSON(w, resp)
}

func (f *FakeProvider) userInfoHandler(w http.ResponseWriter, r *http.Request) {
	f.userInfoHits.Add(1)

	if f.FailUserInfo {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.EqualFold(authHeader, "Bearer "+accessToken) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
		return
	}

	claims := map[string]any{"sub": f.Claims.Sub}
	if f.Claims.Email != "" {
		claims["email"] = f.Claims.Email
	}
	if f.Claims.Name != "" {
		claims["name"] = f.Claims.Name
	}
	if f.Claims.PreferredUsername != "" {
		claims["preferred_username"] = f.Claims.PreferredUsername
	}
	writeJSON(w, claims)
}

// mintIDToken signs an RS256 id_token carrying the configured claims. The
// nonce is echoed back from the token request the way a real issuer echoes
// the value bound at the authorization endpoint.
func (f *FakeProvider) mintIDToken(clientID, nonce string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": f.server.URL,
		"sub": f.Claims.Sub,
		"aud": clientID,
		"iat": now.Unix(),
		"exp": now.Add(15 * time.Minute).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(f.privateKey)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
