// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/confluence/internal/validation"
)

// Validate checks struct-tag constraints first, then the cross-field rules
// that tags cannot express.
func (c *Config) Validate() error {
	if err := validation.GetValidator().Struct(c); err != nil {
		return translateTagErrors(err)
	}

	checks := []func() error{
		c.validateServices,
		c.validateAuth,
		c.validateServiceAuth,
		c.validateMessaging,
		c.validateSMTP,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func translateTagErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.StructNamespace(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", fe.StructNamespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (c *Config) validateServices() error {
	for name, raw := range map[string]string{
		"USERS_SERVICE_URL":  c.Services.UsersURL,
		"EVENTS_SERVICE_URL": c.Services.EventsURL,
		"FEED_SERVICE_URL":   c.Services.FeedURL,
	} {
		if err := validateHTTPURL(raw, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.Mode == "forwarded" {
		return nil
	}
	if c.Auth.ProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID (or GCP_PROJECT_ID) is required when AUTH_MODE=%s", c.Auth.Mode)
	}
	if err := validateHTTPURL(c.Auth.JWKSURL, "FIREBASE_JWKS_URL"); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServiceAuth() error {
	switch c.ServiceAuth.Source {
	case "metadata":
		if err := validateHTTPURL(c.ServiceAuth.MetadataURL, "SERVICE_AUTH_METADATA_URL"); err != nil {
			return err
		}
	case "shared_secret":
		if len(c.ServiceAuth.SharedSecret) < 32 {
			return fmt.Errorf("SERVICE_AUTH_SHARED_SECRET must be at least 32 characters when SERVICE_AUTH_SOURCE=shared_secret")
		}
	}
	return nil
}

func (c *Config) validateMessaging() error {
	if c.Messaging.Topics.UserCreated == c.Messaging.Topics.EventCreated {
		return fmt.Errorf("PUBSUB_USER_CREATED_TOPIC and PUBSUB_EVENT_CREATED_TOPIC must differ")
	}
	if c.Messaging.Subscriptions.UserWelcome == c.Messaging.Subscriptions.EventNotification {
		return fmt.Errorf("PUBSUB_USER_WELCOME_SUB and PUBSUB_EVENT_NOTIFICATION_SUB must differ")
	}

	switch c.Messaging.Transport {
	case "nats":
		if err := validateNATSURL(c.Messaging.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
		if c.Messaging.NATS.Embedded && c.Messaging.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
	case "amqp":
		u, err := url.Parse(c.Messaging.AMQP.URL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") || u.Host == "" {
			return fmt.Errorf("AMQP_URL must be an amqp:// or amqps:// URL with a host")
		}
		if c.Messaging.AMQP.Exchange == "" {
			return fmt.Errorf("AMQP_EXCHANGE is required when MESSAGING_TRANSPORT=amqp")
		}
	}
	return nil
}

func (c *Config) validateSMTP() error {
	if !c.SMTP.Enabled() {
		return nil
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is required when SMTP_USER and SMTP_PASS are set")
	}
	if !strings.Contains(c.SMTP.Sender(), "@") {
		return fmt.Errorf("SMTP_FROM (or SMTP_USER) must be an email address")
	}
	return nil
}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateSecurity() error {
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed when ENVIRONMENT=production; " +
			"set specific origins, e.g. CORS_ORIGINS=https://app.example.com")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard origin list outside production.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// IsProduction returns true when ENVIRONMENT is production or prod.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL accepts http/https URLs with a host. Paths are allowed so
// services can be mounted under a prefix.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}
