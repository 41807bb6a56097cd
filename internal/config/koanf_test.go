// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns the documented defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Services.UsersURL != "http://localhost:8001" {
		t.Errorf("Services.UsersURL = %q", cfg.Services.UsersURL)
	}
	if cfg.Services.EventsURL != "http://localhost:8002" {
		t.Errorf("Services.EventsURL = %q", cfg.Services.EventsURL)
	}
	if cfg.Services.FeedURL != "http://localhost:8003" {
		t.Errorf("Services.FeedURL = %q", cfg.Services.FeedURL)
	}
	if cfg.Services.ReadTimeout != 10*time.Second || cfg.Services.WriteTimeout != 30*time.Second {
		t.Errorf("upstream timeouts = %v/%v, want 10s/30s", cfg.Services.ReadTimeout, cfg.Services.WriteTimeout)
	}
	if cfg.Messaging.Topics.UserCreated != "user-created" || cfg.Messaging.Topics.EventCreated != "event-created" {
		t.Errorf("topics = %+v", cfg.Messaging.Topics)
	}
	if cfg.Messaging.Subscriptions.UserWelcome != "user-welcome-sub" ||
		cfg.Messaging.Subscriptions.EventNotification != "event-notification-sub" {
		t.Errorf("subscriptions = %+v", cfg.Messaging.Subscriptions)
	}
	if cfg.SMTP.Host != "smtp.gmail.com" || cfg.SMTP.Port != 587 {
		t.Errorf("smtp = %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}
	if cfg.ServiceAuth.TokenTTL != 5*time.Minute {
		t.Errorf("ServiceAuth.TokenTTL = %v, want 5m", cfg.ServiceAuth.TokenTTL)
	}
	if cfg.Auth.IdentityHeader != "x-firebase-uid" {
		t.Errorf("Auth.IdentityHeader = %q", cfg.Auth.IdentityHeader)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"USERS_SERVICE_URL", "services.users_url"},
		{"EVENTS_SERVICE_URL", "services.events_url"},
		{"FEED_SERVICE_URL", "services.feed_url"},
		{"GCP_PROJECT_ID", "auth.project_id"},
		{"FIREBASE_PROJECT_ID", "auth.project_id"},
		{"PUBSUB_EVENT_CREATED_TOPIC", "messaging.topics.event_created"},
		{"PUBSUB_USER_WELCOME_SUB", "messaging.subscriptions.user_welcome"},
		{"SMTP_PASS", "smtp.password"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
		{"RANDOM_UNRELATED", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(tmpDir, "missing.yaml"))
	if got := findConfigFile(); got == filepath.Join(tmpDir, "missing.yaml") {
		t.Error("findConfigFile() returned a path that does not exist")
	}
}

// TestLoadWithKoanfEnvVars tests that environment variables override defaults
func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("GCP_PROJECT_ID", "demo-project")
	t.Setenv("USERS_SERVICE_URL", "https://users.example.run.app")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NATS_ACK_WAIT", "45s")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Auth.ProjectID != "demo-project" {
		t.Errorf("Auth.ProjectID = %q", cfg.Auth.ProjectID)
	}
	if cfg.Auth.Issuer() != "https://securetoken.google.com/demo-project" {
		t.Errorf("Auth.Issuer() = %q", cfg.Auth.Issuer())
	}
	if cfg.Services.UsersURL != "https://users.example.run.app" {
		t.Errorf("Services.UsersURL = %q", cfg.Services.UsersURL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Messaging.NATS.AckWait != 45*time.Second {
		t.Errorf("NATS.AckWait = %v, want 45s", cfg.Messaging.NATS.AckWait)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Services.EventsURL != "http://localhost:8002" {
		t.Errorf("Services.EventsURL = %q, want default", cfg.Services.EventsURL)
	}
}

// TestLoadWithKoanfConfigFile tests loading configuration from a YAML file
func TestLoadWithKoanfConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
server:
  port: 8100
auth:
  mode: forwarded
messaging:
  transport: memory
smtp:
  user: mailer@example.com
  password: app-password
`
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 8100 {
		t.Errorf("Server.Port = %d, want 8100", cfg.Server.Port)
	}
	if cfg.Auth.Mode != "forwarded" {
		t.Errorf("Auth.Mode = %q", cfg.Auth.Mode)
	}
	if cfg.Messaging.Transport != "memory" {
		t.Errorf("Messaging.Transport = %q", cfg.Messaging.Transport)
	}
	if !cfg.SMTP.Enabled() || cfg.SMTP.Sender() != "mailer@example.com" {
		t.Errorf("SMTP enabled=%t sender=%q", cfg.SMTP.Enabled(), cfg.SMTP.Sender())
	}
}

// TestLoadWithKoanfEnvOverridesFile tests precedence ENV > file
func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8100\nauth:\n  mode: forwarded\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "8200")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 8200 {
		t.Errorf("Server.Port = %d, want 8200 from env", cfg.Server.Port)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "firebase mode without project",
			env:     map[string]string{},
			wantErr: "FIREBASE_PROJECT_ID",
		},
		{
			name:    "unknown auth mode",
			env:     map[string]string{"AUTH_MODE": "basic"},
			wantErr: "oneof",
		},
		{
			name:    "bad upstream url",
			env:     map[string]string{"AUTH_MODE": "forwarded", "FEED_SERVICE_URL": "ftp://feed"},
			wantErr: "FEED_SERVICE_URL",
		},
		{
			name:    "short shared secret",
			env:     map[string]string{"AUTH_MODE": "forwarded", "SERVICE_AUTH_SOURCE": "shared_secret", "SERVICE_AUTH_SHARED_SECRET": "short"},
			wantErr: "SERVICE_AUTH_SHARED_SECRET",
		},
		{
			name:    "wildcard cors in production",
			env:     map[string]string{"AUTH_MODE": "forwarded", "ENVIRONMENT": "production"},
			wantErr: "CORS_ORIGINS",
		},
		{
			name:    "same topics",
			env:     map[string]string{"AUTH_MODE": "forwarded", "PUBSUB_USER_CREATED_TOPIC": "x", "PUBSUB_EVENT_CREATED_TOPIC": "x"},
			wantErr: "must differ",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"AUTH_MODE": "forwarded", "LOG_LEVEL": "loud"},
			wantErr: "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfigAddr(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8000}
	if got := s.Addr(); got != "0.0.0.0:8000" {
		t.Errorf("Addr() = %q", got)
	}
}
