// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tomtom215/confluence/docs" // swagger spec registration
	"github.com/tomtom215/confluence/internal/api"
	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/identity"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/notify"
	"github.com/tomtom215/confluence/internal/supervisor"
	"github.com/tomtom215/confluence/internal/supervisor/services"
	"github.com/tomtom215/confluence/internal/upstream"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
		Service:   "confluence",
		Version:   version,
	})

	logging.Info().Str("version", version).Str("config", cfg.String()).Msg("Starting Confluence composite service")
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows every origin; set CORS_ORIGINS in production")
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Confluence stopped with error")
	}
	logging.Info().Msg("Confluence stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := upstream.NewClients(cfg.Services, cfg.Auth.IdentityHeader, InitServiceTokens(cfg.ServiceAuth))
	if err != nil {
		return fmt.Errorf("upstream clients: %w", err)
	}

	authenticator, err := InitAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		return fmt.Errorf("email templates: %w", err)
	}
	consumers := notify.NewConsumers(clients.Users, notify.NewMailer(cfg.SMTP), renderer)

	messaging, err := InitMessaging(cfg, consumers)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		messaging.Close(closeCtx)
	}()

	handler := api.NewHandler(api.HandlerConfig{
		Clients:  clients,
		Resolver: identity.NewResolver(clients.Users, messaging.Notifier()),
		Notifier: messaging.Notifier(),
		Health:   messaging.Health(),
		Version:  version,
	})
	router := api.NewRouter(
		handler,
		auth.NewMiddleware(authenticator).Authenticate,
		api.NewChiMiddleware(api.NewChiMiddlewareConfig(cfg.Security, cfg.Auth.IdentityHeader)),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	messaging.Register(tree, cfg)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
