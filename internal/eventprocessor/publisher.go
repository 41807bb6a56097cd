// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/metrics"
)

// Publisher wraps a transport publisher with a circuit breaker, a context
// aware Publish and publish metrics.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[struct{}]
	mu             sync.RWMutex
	closed         bool
}

// NewPublisher wraps pub. A nil pub is rejected.
func NewPublisher(pub message.Publisher) (*Publisher, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: publisher cannot be nil", ErrInvalidConfig)
	}
	return &Publisher{publisher: pub}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[struct{}]) {
	p.circuitBreaker = cb
}

// Publish sends msg to topic. Watermill publishers are synchronous and take
// no context, so the publish runs in a goroutine and ctx bounds the wait.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	msg.SetContext(ctx)

	publish := func() (struct{}, error) {
		done := make(chan error, 1)
		go func() { done <- p.publisher.Publish(topic, msg) }()
		select {
		case err := <-done:
			return struct{}{}, err
		case <-ctx.Done():
			return struct{}{}, fmt.Errorf("publish to %s: %w", topic, ctx.Err())
		}
	}

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(publish)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordCircuitBreakerRequest(p.circuitBreaker.Name(), "rejected")
		}
	} else {
		_, err = publish()
	}

	metrics.RecordPublish(topic, err)
	if err != nil {
		logging.Debug().Err(err).Str("topic", topic).Str("message_uuid", msg.UUID).Msg("Publish failed")
	}
	return err
}

// Close shuts down the underlying publisher. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}

// WatermillPublisher returns the underlying Watermill publisher.
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.publisher
}
