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
	"github.com/ThreeDotsLabs/watermill/message"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tomtom215/confluence/internal/config"
)

const defaultAMQPPrefetch = 10

// AMQPTransport publishes to a RabbitMQ topic exchange. Each subscription is
// a durable queue bound to its topic as routing key; competing consumers on
// one queue share the load.
type AMQPTransport struct {
	cfg    config.AMQPConfig
	logger watermill.LoggerAdapter

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewAMQPTransport creates a RabbitMQ transport. The connection is opened on
// first use and reopened if the broker closes it.
func NewAMQPTransport(cfg config.AMQPConfig, logger watermill.LoggerAdapter) *AMQPTransport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultAMQPPrefetch
	}
	return &AMQPTransport{cfg: cfg, logger: logger}
}

// Name implements Transport.
func (t *AMQPTransport) Name() string { return TransportAMQP }

// channel returns a new channel on the shared connection, with the exchange
// declared.
func (t *AMQPTransport) channel() (*amqp.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || t.conn.IsClosed() {
		conn, err := amqp.Dial(t.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("dial AMQP: %w", err)
		}
		t.conn = conn
		t.logger.Info("AMQP connected", watermill.LogFields{"exchange": t.cfg.Exchange})
	}

	ch, err := t.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(t.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", t.cfg.Exchange, err)
	}
	return ch, nil
}

// NewPublisher implements Transport.
func (t *AMQPTransport) NewPublisher(context.Context) (message.Publisher, error) {
	ch, err := t.channel()
	if err != nil {
		return nil, err
	}
	_ = ch.Close()
	return &amqpPublisher{transport: t}, nil
}

// NewSubscriber implements Transport.
func (t *AMQPTransport) NewSubscriber(_ context.Context, subscription string) (message.Subscriber, error) {
	if subscription == "" {
		return nil, fmt.Errorf("%w: subscription name required", ErrInvalidConfig)
	}
	return &amqpSubscriber{transport: t, queue: subscription}, nil
}

// HealthCheck implements HealthCheckable.
func (t *AMQPTransport) HealthCheck(context.Context) ComponentHealth {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	h := ComponentHealth{LastCheck: time.Now(), Details: map[string]any{"exchange": t.cfg.Exchange}}
	switch {
	case conn == nil:
		h.Healthy = true
		h.Degraded = true
		h.Message = "not connected yet"
	case conn.IsClosed():
		h.Error = "AMQP connection closed"
	default:
		h.Healthy = true
	}
	return h
}

// Close closes the shared connection.
func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.conn.IsClosed() {
		return nil
	}
	return t.conn.Close()
}

type amqpPublisher struct {
	transport *AMQPTransport
}

// Publish sends each message with the topic as routing key. A channel is
// opened per call; amqp091 channels are not safe for concurrent publishers.
func (p *amqpPublisher) Publish(topic string, msgs ...*message.Message) error {
	ch, err := p.transport.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	for _, msg := range msgs {
		headers := amqp.Table{}
		for k, v := range msg.Metadata {
			headers[k] = v
		}
		err := ch.PublishWithContext(msg.Context(), p.transport.cfg.Exchange, topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.UUID,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         msg.Payload,
		})
		if err != nil {
			return fmt.Errorf("publish %s to %s: %w", msg.UUID, topic, err)
		}
	}
	return nil
}

func (p *amqpPublisher) Close() error { return nil }

type amqpSubscriber struct {
	transport *AMQPTransport
	queue     string

	mu       sync.Mutex
	channels []*amqp.Channel
}

// Subscribe declares the subscription queue, binds it to topic and streams
// deliveries. Each delivery is acked or requeued once the Watermill message
// is acked or nacked.
func (s *amqpSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := s.transport.channel()
	if err != nil {
		return nil, err
	}

	setup := func() (<-chan amqp.Delivery, error) {
		if err := ch.Qos(s.transport.cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set QoS: %w", err)
		}
		q, err := ch.QueueDeclare(s.queue, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", s.queue, err)
		}
		if err := ch.QueueBind(q.Name, topic, s.transport.cfg.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("bind queue %s to %s: %w", s.queue, topic, err)
		}
		return ch.Consume(q.Name, "", false, false, false, false, nil)
	}

	deliveries, err := setup()
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.mu.Unlock()

	out := make(chan *message.Message)
	go s.consume(ctx, ch, deliveries, out)
	return out, nil
}

func (s *amqpSubscriber) consume(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery, out chan<- *message.Message) {
	defer close(out)
	defer func() { _ = ch.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if !s.deliver(ctx, d, out) {
				return
			}
		}
	}
}

// deliver hands one delivery to the consumer and settles it. It returns
// false when ctx ended first; the delivery is then requeued.
func (s *amqpSubscriber) deliver(ctx context.Context, d amqp.Delivery, out chan<- *message.Message) bool {
	id := d.MessageId
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, d.Body)
	for k, v := range d.Headers {
		if sv, ok := v.(string); ok {
			msg.Metadata.Set(k, sv)
		} else {
			msg.Metadata.Set(k, fmt.Sprint(v))
		}
	}
	msg.SetContext(ctx)

	select {
	case out <- msg:
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return false
	}

	select {
	case <-msg.Acked():
		if err := d.Ack(false); err != nil {
			s.transport.logger.Error("AMQP ack failed", err, watermill.LogFields{"queue": s.queue})
		}
		return true
	case <-msg.Nacked():
		if err := d.Nack(false, true); err != nil {
			s.transport.logger.Error("AMQP nack failed", err, watermill.LogFields{"queue": s.queue})
		}
		return true
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return false
	}
}

// Close closes every channel opened by Subscribe.
func (s *amqpSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.channels {
		_ = ch.Close()
	}
	s.channels = nil
	return nil
}
