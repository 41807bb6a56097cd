// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/eventprocessor"
	"github.com/tomtom215/confluence/internal/notify"
	"github.com/tomtom215/confluence/internal/supervisor"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: time.Second},
		Messaging: config.MessagingConfig{
			Transport:      eventprocessor.TransportMemory,
			Topics:         config.TopicsConfig{UserCreated: "user-created", EventCreated: "event-created"},
			Subscriptions:  config.SubscriptionsConfig{UserWelcome: "user-welcome-sub", EventNotification: "event-notification-sub"},
			PublishTimeout: time.Second,
		},
	}
}

// ========================================
// Messaging
// ========================================

func TestInitMessaging_Memory(t *testing.T) {
	cfg := memoryConfig()
	m, err := InitMessaging(cfg, notify.NewConsumers(nil, notify.LogMailer{}, nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close(context.Background()) })

	if m.broker != nil {
		t.Error("embedded broker started for memory transport")
	}
	if len(m.listeners) != 2 {
		t.Fatalf("listeners = %d", len(m.listeners))
	}
	if m.listeners[0].Topic != "user-created" || m.listeners[1].Subscription != "event-notification-sub" {
		t.Errorf("listeners = %+v", m.listeners)
	}
	if m.Notifier() == nil {
		t.Fatal("notifier is nil")
	}
	if h := m.Health().CheckAll(context.Background()); !h.Healthy {
		t.Errorf("health = %+v", h)
	}

	tree, err := supervisor.NewSupervisorTree(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})), supervisor.TreeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	m.Register(tree, cfg)
}

func TestInitMessaging_NoConsumers(t *testing.T) {
	m, err := InitMessaging(memoryConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close(context.Background())
	if len(m.listeners) != 0 {
		t.Errorf("listeners = %d", len(m.listeners))
	}
}

func TestInitMessaging_UnknownTransport(t *testing.T) {
	cfg := memoryConfig()
	cfg.Messaging.Transport = "carrier-pigeon"
	if _, err := InitMessaging(cfg, nil); err == nil {
		t.Error("expected error")
	}
}

func TestEmbeddedServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.NATSConfig
		wantHost string
		wantPort int
		wantDir  string
	}{
		{"defaults", config.NATSConfig{}, "127.0.0.1", 4222, "/data/nats"},
		{"from url", config.NATSConfig{URL: "nats://0.0.0.0:4333", StoreDir: "/tmp/js"}, "0.0.0.0", 4333, "/tmp/js"},
		{"url without port", config.NATSConfig{URL: "nats://broker"}, "broker", 4222, "/data/nats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := embeddedServerConfig(tt.cfg)
			if sc.Host != tt.wantHost || sc.Port != tt.wantPort || sc.StoreDir != tt.wantDir {
				t.Errorf("got %s:%d %s", sc.Host, sc.Port, sc.StoreDir)
			}
		})
	}
}

// ========================================
// Authentication
// ========================================

func TestInitAuthenticator(t *testing.T) {
	base := config.AuthConfig{
		ProjectID:      "demo",
		IssuerBase:     "https://securetoken.google.com/",
		JWKSURL:        "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com",
		IdentityHeader: "x-firebase-uid",
	}
	tests := []struct {
		mode string
		want string
	}{
		{"firebase", auth.MethodFirebase},
		{"forwarded", auth.MethodForwarded},
		{"multi", "multi"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := base
			cfg.Mode = tt.mode
			a, err := InitAuthenticator(cfg)
			if err != nil {
				t.Fatal(err)
			}
			if a.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", a.Name(), tt.want)
			}
		})
	}
}

func TestInitServiceTokens(t *testing.T) {
	if p := InitServiceTokens(config.ServiceAuthConfig{Source: "none", TokenTTL: time.Minute}); p != nil {
		t.Error("provider returned for source none")
	}

	p := InitServiceTokens(config.ServiceAuthConfig{
		Source:       "shared_secret",
		SharedSecret: "0123456789abcdef0123456789abcdef",
		Issuer:       "confluence",
		TokenTTL:     time.Minute,
	})
	if p == nil {
		t.Fatal("no provider for shared_secret")
	}
	tok, err := p.Token(context.Background(), "https://users.example.com")
	if err != nil || tok == "" {
		t.Errorf("token = %q err = %v", tok, err)
	}
}
