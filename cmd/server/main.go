package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mfletch/go-auth-gateway/internal/config"
	"github.com/mfletch/go-auth-gateway/provider"
	"github.com/mfletch/go-auth-gateway/server"
	"github.com/mfletch/go-auth-gateway/sessions"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	// .env is a development convenience; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	setupLogging(cfg)
	displayAppname(cfg.AppName)

	key, err := cookieKey(cfg)
	if err != nil {
		return fmt.Errorf("cookie key: %w", err)
	}
	codec, err := sessions.NewCodec(key)
	if err != nil {
		return fmt.Errorf("sessions.NewCodec: %w", err)
	}

	// Discovery runs once; a failure here means token validation is
	// impossible, so the process does not start.
	oidcClient, err := provider.New(context.Background(), provider.Config{
		IssuerURL:    cfg.IssuerURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Timeout:      cfg.UpstreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("provider.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.New(cfg, oidcClient, codec),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

// cookieKey loads the configured session key, or generates an ephemeral one
// for development. A generated key invalidates all prior sessions at every
// restart, so production deployments must set COOKIE_SECRET_KEY.
func cookieKey(cfg config.Config) (sessions.Key, error) {
	if cfg.CookieSecretKey != "" {
		return sessions.LoadKey(cfg.CookieSecretKey)
	}
	log.Warn().Msg("COOKIE_SECRET_KEY not set, using an ephemeral key; existing sessions will not survive a restart")
	return sessions.GenerateKey(), nil
}

func setupLogging(cfg config.Config) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.IsDev() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
