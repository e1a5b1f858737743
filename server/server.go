package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mfletch/go-auth-gateway/internal/config"
	"github.com/mfletch/go-auth-gateway/provider"
	"github.com/mfletch/go-auth-gateway/sessions"
)

// Server wires the OIDC relying-party flow onto an http.ServeMux. All
// fields are read-only after New returns; every request runs in its own
// goroutine with no shared mutable state - session state lives entirely in
// the client's cookie jar.
type Server struct {
	mux    *http.ServeMux
	routes []string
	config config.Config
	oidc   *provider.Client
	codec  *sessions.Codec
}

func New(cfg config.Config, oidcClient *provider.Client, codec *sessions.Codec) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		oidc:   oidcClient,
		codec:  codec,
	}
	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if !s.config.IsDev() {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route registered")
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
