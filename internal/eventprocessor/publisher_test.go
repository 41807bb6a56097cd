// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"
)

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	delay  time.Duration
	topics []string
	closed int
}

func (f *fakePublisher) Publish(topic string, _ ...*message.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func newMsg() *message.Message {
	return message.NewMessage(watermill.NewUUID(), []byte(`{}`))
}

func TestPublisher_Publish(t *testing.T) {
	fake := &fakePublisher{}
	p, err := NewPublisher(fake)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Publish(context.Background(), "user-created", newMsg()); err != nil {
		t.Fatalf("Publish() = %v", err)
	}
	if len(fake.topics) != 1 || fake.topics[0] != "user-created" {
		t.Errorf("topics = %v", fake.topics)
	}
}

func TestPublisher_NilRejected(t *testing.T) {
	if _, err := NewPublisher(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewPublisher(nil) = %v, want ErrInvalidConfig", err)
	}
}

func TestPublisher_ContextBoundsWait(t *testing.T) {
	p, _ := NewPublisher(&fakePublisher{delay: 500 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, "event-created", newMsg())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 300*time.Millisecond {
		t.Errorf("Publish waited %v", time.Since(start))
	}
}

func TestPublisher_CircuitBreakerOpens(t *testing.T) {
	fake := &fakePublisher{err: errors.New("no responders")}
	p, _ := NewPublisher(fake)
	cfg := DefaultCircuitBreakerConfig("publisher-test")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute
	cb := NewCircuitBreaker(cfg)
	p.SetCircuitBreaker(cb)

	for range 2 {
		_ = p.Publish(context.Background(), "user-created", newMsg())
	}
	if CircuitBreakerState(cb) != gobreaker.StateOpen.String() {
		t.Fatalf("state = %s, want open", CircuitBreakerState(cb))
	}

	err := p.Publish(context.Background(), "user-created", newMsg())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Publish() with open breaker = %v", err)
	}
	if len(fake.topics) != 2 {
		t.Errorf("underlying publishes = %d, want 2", len(fake.topics))
	}
}

func TestPublisher_Close(t *testing.T) {
	fake := &fakePublisher{}
	p, _ := NewPublisher(fake)

	_ = p.Close()
	_ = p.Close()
	if fake.closed != 1 {
		t.Errorf("underlying Close calls = %d, want 1", fake.closed)
	}
	if err := p.Publish(context.Background(), "t", newMsg()); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish after Close = %v", err)
	}
}
