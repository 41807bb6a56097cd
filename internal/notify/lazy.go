// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/confluence/internal/eventprocessor"
	"github.com/tomtom215/confluence/internal/metrics"
)

// PublisherFactory creates the shared publisher.
type PublisherFactory func(ctx context.Context) (*eventprocessor.Publisher, error)

// LazyPublisher creates its publisher on first use so a broker outage at
// startup does not block the HTTP service. A failed creation is retried on
// the next Publish.
type LazyPublisher struct {
	factory PublisherFactory

	mu  sync.RWMutex
	pub *eventprocessor.Publisher
}

// NewLazyPublisher creates a LazyPublisher.
func NewLazyPublisher(factory PublisherFactory) *LazyPublisher {
	return &LazyPublisher{factory: factory}
}

func (l *LazyPublisher) get(ctx context.Context) (*eventprocessor.Publisher, error) {
	l.mu.RLock()
	pub := l.pub
	l.mu.RUnlock()
	if pub != nil {
		return pub, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pub != nil {
		return l.pub, nil
	}

	pub, err := l.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize publisher: %w", err)
	}
	l.pub = pub
	return pub, nil
}

// Publish implements Publisher.
func (l *LazyPublisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	pub, err := l.get(ctx)
	if err != nil {
		metrics.RecordPublish(topic, err)
		return err
	}
	return pub.Publish(ctx, topic, msg)
}

// Initialized reports whether the publisher has been created.
func (l *LazyPublisher) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pub != nil
}

// Close closes the publisher if it was created.
func (l *LazyPublisher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pub == nil {
		return nil
	}
	err := l.pub.Close()
	l.pub = nil
	return err
}
