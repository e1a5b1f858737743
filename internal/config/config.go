package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	autherrors "github.com/mfletch/go-auth-gateway/internal/errors"
)

// Config holds the process configuration. It is populated once at startup
// and shared read-only by every request-handling goroutine.
type Config struct {
	IssuerURL    string `env:"OIDC_ISSUER_URL"`
	ClientID     string `env:"OIDC_CLIENT_ID"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string `env:"OIDC_REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`

	// CookieSecretKey is the base64 encoded 32-byte key used for the
	// authenticated encryption of the session cookie. When empty a random
	// key is generated at startup: fine for development, but every restart
	// invalidates all existing sessions.
	CookieSecretKey string `env:"COOKIE_SECRET_KEY"`

	Port            string        `env:"PORT" envDefault:"8080"`
	Env             string        `env:"ENV" envDefault:"DEV"`
	AppName         string        `env:"APP_NAME" envDefault:"Auth Gateway"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`
}

// New parses the configuration from environment variables and validates it.
func New() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, autherrors.Wrapf(autherrors.ErrInvalidConfig, "parse env: %s", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks that all required values are present. Discovery cannot
// work without them, so a failure here is fatal.
func (c Config) Validate() error {
	var missing []string
	if c.IssuerURL == "" {
		missing = append(missing, "OIDC_ISSUER_URL")
	}
	if c.ClientID == "" {
		missing = append(missing, "OIDC_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "OIDC_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return autherrors.Wrapf(autherrors.ErrInvalidConfig, "missing %s", strings.Join(missing, ", "))
	}
	if c.UpstreamTimeout <= 0 {
		return autherrors.Wrapf(autherrors.ErrInvalidConfig, "UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	port := c.Port
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

// IsDev reports whether the process runs in a development environment.
func (c Config) IsDev() bool {
	return strings.EqualFold(c.Env, "DEV")
}
