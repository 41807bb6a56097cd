// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/eventprocessor"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/notify"
	"github.com/tomtom215/confluence/internal/supervisor"
	"github.com/tomtom215/confluence/internal/supervisor/services"
)

// MessagingComponents holds the messaging side of the process: the
// optional embedded broker, the transport, the lazily created publisher and
// the notification listeners.
type MessagingComponents struct {
	broker    *eventprocessor.EmbeddedServer
	transport eventprocessor.Transport
	publisher *notify.LazyPublisher
	notifier  *notify.Notifier
	listeners []services.ListenerSpec
	health    *eventprocessor.HealthChecker
}

// InitMessaging builds the messaging components. Nothing here connects to
// a remote broker: publishers connect on first publish and subscribers when
// their listener service starts.
func InitMessaging(cfg *config.Config, consumers *notify.Consumers) (*MessagingComponents, error) {
	m := &MessagingComponents{
		health: eventprocessor.NewHealthChecker(eventprocessor.DefaultHealthTimeout),
	}

	natsURL := ""
	if cfg.Messaging.Transport == eventprocessor.TransportNATS && cfg.Messaging.NATS.Embedded {
		broker, err := eventprocessor.NewEmbeddedServer(embeddedServerConfig(cfg.Messaging.NATS))
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		m.broker = broker
		natsURL = broker.ClientURL()
		m.health.RegisterComponent("nats-server", broker)
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	transport, err := eventprocessor.NewTransport(cfg.Messaging, natsURL)
	if err != nil {
		m.Close(context.Background())
		return nil, err
	}
	m.transport = transport
	m.health.RegisterComponent("transport", transport)

	m.publisher = notify.NewLazyPublisher(func(ctx context.Context) (*eventprocessor.Publisher, error) {
		raw, err := transport.NewPublisher(ctx)
		if err != nil {
			return nil, err
		}
		pub, err := eventprocessor.NewPublisher(raw)
		if err != nil {
			return nil, err
		}
		pub.SetCircuitBreaker(eventprocessor.NewCircuitBreaker(eventprocessor.DefaultCircuitBreakerConfig("event-publisher")))
		return pub, nil
	})
	m.notifier = notify.NewNotifier(m.publisher, cfg.Messaging.Topics, cfg.Messaging.PublishTimeout)

	if consumers != nil {
		m.listeners = []services.ListenerSpec{
			{
				Subscription: cfg.Messaging.Subscriptions.UserWelcome,
				Topic:        cfg.Messaging.Topics.UserCreated,
				Handler:      consumers.HandleUserCreated,
			},
			{
				Subscription: cfg.Messaging.Subscriptions.EventNotification,
				Topic:        cfg.Messaging.Topics.EventCreated,
				Handler:      consumers.HandleEventCreated,
			},
		}
	}

	logging.Info().
		Str("transport", transport.Name()).
		Int("listeners", len(m.listeners)).
		Msg("Messaging initialized")
	return m, nil
}

// embeddedServerConfig takes host and port from the configured NATS URL
// when it has them.
func embeddedServerConfig(cfg config.NATSConfig) eventprocessor.ServerConfig {
	sc := eventprocessor.DefaultServerConfig()
	if cfg.StoreDir != "" {
		sc.StoreDir = cfg.StoreDir
	}
	if u, err := url.Parse(cfg.URL); err == nil && u.Host != "" {
		if host := u.Hostname(); host != "" {
			sc.Host = host
		}
		if port, err := strconv.Atoi(u.Port()); err == nil {
			sc.Port = port
		}
	}
	return sc
}

// Notifier returns the domain event notifier used by request handlers.
func (m *MessagingComponents) Notifier() *notify.Notifier {
	return m.notifier
}

// Health returns the readiness checker.
func (m *MessagingComponents) Health() *eventprocessor.HealthChecker {
	return m.health
}

// Register adds the broker and listener services to the messaging layer.
func (m *MessagingComponents) Register(tree *supervisor.SupervisorTree, cfg *config.Config) {
	if m.broker != nil {
		tree.AddMessagingService(services.NewBrokerService(m.broker, cfg.Server.ShutdownTimeout))
	}
	for _, spec := range m.listeners {
		tree.AddMessagingService(services.NewListenerService(m.transport, spec))
	}
}

// Close releases the publisher, the transport and the embedded broker, in
// that order. It is safe on partially built components.
func (m *MessagingComponents) Close(ctx context.Context) {
	if m == nil {
		return
	}
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing event publisher")
		}
	}
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing messaging transport")
		}
	}
	if m.broker != nil && m.broker.IsRunning() {
		if err := m.broker.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Error shutting down embedded NATS server")
		}
	}
}
