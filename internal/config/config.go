// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package config loads and validates Confluence configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment Variables: explicit mapping in envTransformFunc
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Services    ServicesConfig    `koanf:"services"`
	Auth        AuthConfig        `koanf:"auth"`
	ServiceAuth ServiceAuthConfig `koanf:"service_auth"`
	Messaging   MessagingConfig   `koanf:"messaging"`
	SMTP        SMTPConfig        `koanf:"smtp"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// Environment is development or production. Production tightens CORS checks.
	Environment string `koanf:"environment"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ServicesConfig locates the three atomic services.
type ServicesConfig struct {
	UsersURL  string `koanf:"users_url" validate:"required"`
	EventsURL string `koanf:"events_url" validate:"required"`
	FeedURL   string `koanf:"feed_url" validate:"required"`

	// ReadTimeout bounds GET/HEAD calls, WriteTimeout bounds everything else.
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the per-service circuit breaker.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval is the closed-state window after which counts reset.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `koanf:"timeout"`

	// FailureRatio trips the breaker once MinRequests have been observed.
	FailureRatio float64 `koanf:"failure_ratio" validate:"gte=0,lte=1"`
	MinRequests  uint32  `koanf:"min_requests"`
}

// AuthConfig configures caller authentication.
type AuthConfig struct {
	// Mode is firebase (verify bearer ID tokens), forwarded (trust the
	// identity header set by a fronting gateway) or multi (both, by priority).
	Mode string `koanf:"mode" validate:"oneof=firebase forwarded multi"`

	// ProjectID is the Firebase project; it fixes both issuer and audience.
	ProjectID string `koanf:"project_id"`

	// JWKSURL serves the signing keys for Firebase ID tokens.
	JWKSURL string `koanf:"jwks_url"`

	// IssuerBase is prefixed to ProjectID to form the expected issuer.
	IssuerBase string `koanf:"issuer_base"`

	// IdentityHeader carries the caller's uid in forwarded mode and on every upstream call.
	IdentityHeader string `koanf:"identity_header" validate:"required"`

	// UserInfoHeader optionally carries base64url JSON claims in forwarded mode.
	UserInfoHeader string `koanf:"userinfo_header"`
}

// Issuer returns the expected token issuer for the configured project.
func (a AuthConfig) Issuer() string {
	return a.IssuerBase + a.ProjectID
}

// ServiceAuthConfig controls service-to-service identity tokens on upstream calls.
type ServiceAuthConfig struct {
	// Source is none, metadata or shared_secret.
	Source string `koanf:"source" validate:"oneof=none metadata shared_secret"`

	MetadataURL  string        `koanf:"metadata_url"`
	SharedSecret string        `koanf:"shared_secret"`
	Issuer       string        `koanf:"issuer"`
	TokenTTL     time.Duration `koanf:"token_ttl" validate:"gt=0"`
}

// MessagingConfig selects and configures the pub/sub transport.
type MessagingConfig struct {
	// Transport is nats, amqp or memory.
	Transport string `koanf:"transport" validate:"oneof=nats amqp memory"`

	Topics        TopicsConfig        `koanf:"topics"`
	Subscriptions SubscriptionsConfig `koanf:"subscriptions"`
	NATS          NATSConfig          `koanf:"nats"`
	AMQP          AMQPConfig          `koanf:"amqp"`

	// PublishTimeout bounds one publish attempt.
	PublishTimeout time.Duration `koanf:"publish_timeout" validate:"gt=0"`
}

// TopicsConfig names the topics domain events are published to.
type TopicsConfig struct {
	UserCreated  string `koanf:"user_created" validate:"required"`
	EventCreated string `koanf:"event_created" validate:"required"`
}

// SubscriptionsConfig names the durable subscriptions consumed by this process.
type SubscriptionsConfig struct {
	UserWelcome       string `koanf:"user_welcome" validate:"required"`
	EventNotification string `koanf:"event_notification" validate:"required"`
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL string `koanf:"url"`

	// Embedded runs an in-process nats-server with JetStream.
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`

	// StreamName holds both domain-event topics.
	StreamName string        `koanf:"stream_name"`
	MaxAge     time.Duration `koanf:"max_age"`

	// MaxDeliver caps redeliveries before JetStream stops retrying a message.
	MaxDeliver       int           `koanf:"max_deliver" validate:"min=1"`
	AckWait          time.Duration `koanf:"ack_wait" validate:"gt=0"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
}

// AMQPConfig configures the RabbitMQ transport.
type AMQPConfig struct {
	URL      string `koanf:"url"`
	Exchange string `koanf:"exchange"`
	Prefetch int    `koanf:"prefetch"`
}

// SMTPConfig configures outbound mail. An empty User disables SMTP and
// notifications are written to the log instead.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// From defaults to User when empty.
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	UseTLS   bool   `koanf:"use_tls"`

	// RatePerSecond limits outbound messages; Burst allows short spikes.
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gte=0"`
	Burst         int           `koanf:"burst" validate:"min=1"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Enabled reports whether SMTP credentials are present.
func (s SMTPConfig) Enabled() bool {
	return s.User != "" && s.Password != ""
}

// Sender returns the envelope sender address.
func (s SMTPConfig) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.User
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// String summarises the configuration without secrets for the startup log.
func (c *Config) String() string {
	return fmt.Sprintf("addr=%s users=%s events=%s feed=%s auth=%s transport=%s smtp=%t",
		c.Server.Addr(), c.Services.UsersURL, c.Services.EventsURL, c.Services.FeedURL,
		c.Auth.Mode, c.Messaging.Transport, c.SMTP.Enabled())
}
