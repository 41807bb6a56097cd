// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage runs nats-server with JetStream enabled via -js.
	DefaultNATSImage = "nats:2.12-alpine"

	// DefaultRabbitMQImage is the RabbitMQ broker image.
	DefaultRabbitMQImage = "rabbitmq:4-alpine"
)

// NATSContainer is a running NATS server with JetStream.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// BrokerOption configures a broker container.
type BrokerOption func(*brokerConfig)

type brokerConfig struct {
	image        string
	startTimeout time.Duration
}

// WithImage overrides the broker image.
func WithImage(image string) BrokerOption {
	return func(c *brokerConfig) {
		c.image = image
	}
}

// WithStartTimeout sets how long to wait for the broker to accept connections.
func WithStartTimeout(timeout time.Duration) BrokerOption {
	return func(c *brokerConfig) {
		c.startTimeout = timeout
	}
}

func newBrokerConfig(image string, opts []BrokerOption) *brokerConfig {
	cfg := &brokerConfig{image: image, startTimeout: 60 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// NewNATSContainer starts a NATS server with JetStream.
func NewNATSContainer(ctx context.Context, opts ...BrokerOption) (*NATSContainer, error) {
	cfg := newBrokerConfig(DefaultNATSImage, opts)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"-js", "-m", "8222"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/healthz?js-enabled-only=true").WithPort("8222/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, host, err := startContainer(ctx, req)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "4222/tcp")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}
	return &NATSContainer{Container: container, URL: fmt.Sprintf("nats://%s:%s", host, port.Port())}, nil
}

// RabbitMQContainer is a running RabbitMQ broker.
type RabbitMQContainer struct {
	testcontainers.Container
	URL string
}

// NewRabbitMQContainer starts RabbitMQ with the default guest account.
func NewRabbitMQContainer(ctx context.Context, opts ...BrokerOption) (*RabbitMQContainer, error) {
	cfg := newBrokerConfig(DefaultRabbitMQImage, opts)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5672/tcp"),
			wait.ForLog("Server startup complete"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, host, err := startContainer(ctx, req)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5672/tcp")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}
	return &RabbitMQContainer{Container: container, URL: fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())}, nil
}
