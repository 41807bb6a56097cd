// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/logging"
)

// Transport names.
const (
	TransportNATS   = "nats"
	TransportAMQP   = "amqp"
	TransportMemory = "memory"
)

// Transport creates publishers and subscribers on one broker.
type Transport interface {
	Name() string

	// NewPublisher returns a publisher for every domain-event topic.
	NewPublisher(ctx context.Context) (message.Publisher, error)

	// NewSubscriber returns a subscriber for the named durable subscription.
	// Replicas sharing the name share one delivery of each message.
	NewSubscriber(ctx context.Context, subscription string) (message.Subscriber, error)

	HealthCheckable

	Close() error
}

// NewTransport builds the transport selected by cfg.Transport. natsURL, when
// not empty, overrides cfg.NATS.URL (used with the embedded server).
func NewTransport(cfg config.MessagingConfig, natsURL string) (Transport, error) {
	logger := logging.NewWatermillLogger()

	switch cfg.Transport {
	case TransportNATS, "":
		if natsURL == "" {
			natsURL = cfg.NATS.URL
		}
		return NewNATSTransport(cfg, natsURL, logger), nil
	case TransportAMQP:
		return NewAMQPTransport(cfg.AMQP, logger), nil
	case TransportMemory:
		return NewMemoryTransport(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}

// MemoryTransport is a single-process transport on Watermill's gochannel,
// meant for development and tests. Nothing is retained: a message published
// while no subscriber is attached to its topic is dropped. Nacked messages
// are redelivered immediately.
type MemoryTransport struct {
	pubsub *gochannel.GoChannel
}

// NewMemoryTransport creates an in-process transport.
func NewMemoryTransport(logger watermill.LoggerAdapter) *MemoryTransport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &MemoryTransport{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, logger),
	}
}

// Name implements Transport.
func (t *MemoryTransport) Name() string { return TransportMemory }

// NewPublisher implements Transport. Closing the returned publisher leaves
// the shared channel open; Close on the transport shuts it down.
func (t *MemoryTransport) NewPublisher(context.Context) (message.Publisher, error) {
	return sharedPublisher{t.pubsub}, nil
}

// NewSubscriber implements Transport. gochannel has no consumer groups;
// each subscription consumes its own topic so the name is informational.
func (t *MemoryTransport) NewSubscriber(context.Context, string) (message.Subscriber, error) {
	return sharedSubscriber{t.pubsub}, nil
}

// HealthCheck implements HealthCheckable.
func (t *MemoryTransport) HealthCheck(context.Context) ComponentHealth {
	return ComponentHealth{
		Healthy:   true,
		Name:      TransportMemory,
		Message:   "in-process channel",
		LastCheck: time.Now(),
	}
}

// Close implements Transport.
func (t *MemoryTransport) Close() error {
	return t.pubsub.Close()
}

type sharedPublisher struct {
	pub message.Publisher
}

func (p sharedPublisher) Publish(topic string, msgs ...*message.Message) error {
	return p.pub.Publish(topic, msgs...)
}

func (sharedPublisher) Close() error { return nil }

type sharedSubscriber struct {
	sub message.Subscriber
}

func (s sharedSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.sub.Subscribe(ctx, topic)
}

func (sharedSubscriber) Close() error { return nil }
