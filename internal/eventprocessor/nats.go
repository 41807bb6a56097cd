// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/confluence/internal/config"
)

// NATSTransport publishes and consumes through NATS JetStream. The
// connection used for stream management is opened on first use; the
// Watermill publishers and subscribers hold their own connections.
type NATSTransport struct {
	cfg    config.MessagingConfig
	url    string
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	conn   *natsgo.Conn
	stream *StreamInitializer
	ready  bool
}

// NewNATSTransport creates a JetStream transport connecting to url.
func NewNATSTransport(cfg config.MessagingConfig, url string, logger watermill.LoggerAdapter) *NATSTransport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &NATSTransport{cfg: cfg, url: url, logger: logger}
}

// Name implements Transport.
func (t *NATSTransport) Name() string { return TransportNATS }

// ensureStream connects and creates the stream once. A failure is retried
// on the next call.
func (t *NATSTransport) ensureStream(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ready {
		return nil
	}

	if t.conn == nil {
		nc, err := natsgo.Connect(t.url, t.connectionOptions("confluence-admin")...)
		if err != nil {
			return fmt.Errorf("connect to NATS at %s: %w", t.url, err)
		}
		t.conn = nc
	}

	if t.stream == nil {
		js, err := jetstream.New(t.conn)
		if err != nil {
			return fmt.Errorf("create JetStream context: %w", err)
		}
		si, err := NewStreamInitializer(jetStreamManager{js: js}, NewStreamConfig(t.cfg.NATS, t.cfg.Topics))
		if err != nil {
			return err
		}
		t.stream = si
	}

	if err := t.stream.EnsureStream(ctx); err != nil {
		return err
	}
	t.ready = true
	return nil
}

func (t *NATSTransport) connectionOptions(name string) []natsgo.Option {
	logger := t.logger
	return []natsgo.Option{
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"connection": name})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"connection": name,
				"url":        nc.ConnectedUrl(),
			})
		}),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{"connection": name}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	}
}

// NewPublisher implements Transport.
func (t *NATSTransport) NewPublisher(ctx context.Context) (message.Publisher, error) {
	if err := t.ensureStream(ctx); err != nil {
		return nil, err
	}

	pc := DefaultPublisherConfig(t.url)
	opts := append(t.connectionOptions("confluence-publisher"),
		natsgo.ReconnectBufSize(pc.ReconnectBuffer),
	)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         pc.URL,
		NatsOptions: opts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    false,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, t.logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return pub, nil
}

// NewSubscriber implements Transport. The subscription name is used as both
// the durable consumer prefix and the queue group.
func (t *NATSTransport) NewSubscriber(ctx context.Context, subscription string) (message.Subscriber, error) {
	if subscription == "" {
		return nil, fmt.Errorf("%w: subscription name required", ErrInvalidConfig)
	}
	if err := t.ensureStream(ctx); err != nil {
		return nil, err
	}

	sc := NewSubscriberConfig(t.cfg.NATS, t.url, subscription)
	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(sc.MaxDeliver),
		natsgo.MaxAckPending(sc.MaxAckPending),
		natsgo.AckWait(sc.AckWaitTimeout),
		natsgo.DeliverNew(),
		natsgo.BindStream(sc.StreamName),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              sc.URL,
		QueueGroupPrefix: sc.Subscription,
		SubscribersCount: sc.SubscribersCount,
		AckWaitTimeout:   sc.AckWaitTimeout,
		CloseTimeout:     sc.CloseTimeout,
		NatsOptions:      t.connectionOptions("confluence-" + subscription),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    sc.Subscription,
		},
	}, t.logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber %s: %w", subscription, err)
	}
	return sub, nil
}

// HealthCheck implements HealthCheckable.
func (t *NATSTransport) HealthCheck(ctx context.Context) ComponentHealth {
	t.mu.Lock()
	conn, stream := t.conn, t.stream
	t.mu.Unlock()

	h := ComponentHealth{LastCheck: time.Now(), Details: map[string]any{"url": t.url}}

	if conn == nil || stream == nil {
		h.Degraded = true
		h.Healthy = true
		h.Message = "not connected yet"
		return h
	}
	if !conn.IsConnected() {
		h.Error = fmt.Sprintf("connection status %s", conn.Status())
		return h
	}

	info, err := stream.StreamInfo(ctx)
	if err != nil {
		h.Error = err.Error()
		return h
	}

	h.Healthy = true
	h.Details["stream"] = info.Config.Name
	h.Details["messages"] = info.State.Msgs
	h.Details["consumers"] = info.State.Consumers
	return h
}

// Close closes the management connection.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.stream = nil
	t.ready = false
	return nil
}
