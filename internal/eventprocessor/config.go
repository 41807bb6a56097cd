// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package eventprocessor

import (
	"time"

	"github.com/tomtom215/confluence/internal/config"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats",
		JetStreamMaxMem:   256 << 20,
		JetStreamMaxStore: 1 << 30,
	}
}

// PublisherConfig holds NATS publisher configuration.
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// DefaultPublisherConfig returns defaults for a NATS publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:             url,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 << 20,
	}
}

// SubscriberConfig holds NATS subscriber configuration for one subscription.
type SubscriberConfig struct {
	URL string
	// Subscription names both the durable consumer and the queue group, so
	// every replica of this service shares one delivery of each message.
	Subscription     string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
	// StreamName binds the consumer to the pre-created stream.
	StreamName string
}

// NewSubscriberConfig derives a subscriber configuration from settings.
func NewSubscriberConfig(cfg config.NATSConfig, url, subscription string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		Subscription:     subscription,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWait,
		MaxDeliver:       cfg.MaxDeliver,
		MaxAckPending:    256,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       cfg.StreamName,
	}
}

// StreamConfig defines the domain event stream.
type StreamConfig struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
	MaxBytes int64
	MaxMsgs  int64
	Replicas int
}

// NewStreamConfig derives the stream configuration holding every topic.
func NewStreamConfig(cfg config.NATSConfig, topics config.TopicsConfig) StreamConfig {
	return StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{topics.UserCreated, topics.EventCreated},
		MaxAge:   cfg.MaxAge,
		MaxBytes: 1 << 30,
		MaxMsgs:  -1,
		Replicas: 1,
	}
}

// CircuitBreakerConfig holds publisher circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Consecutive failures before opening
}

// DefaultCircuitBreakerConfig returns publisher breaker defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
