// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/confluence/internal/eventprocessor"
)

type nopPublisher struct{}

func (nopPublisher) Publish(string, ...*message.Message) error { return nil }
func (nopPublisher) Close() error                              { return nil }

func TestLazyPublisher_RetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazyPublisher(func(context.Context) (*eventprocessor.Publisher, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("nats: no servers available for connection")
		}
		return eventprocessor.NewPublisher(nopPublisher{})
	})

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{}`))
	if err := lazy.Publish(context.Background(), "user-created", msg); err == nil {
		t.Fatal("first Publish succeeded despite init failure")
	}
	if lazy.Initialized() {
		t.Fatal("initialized after failure")
	}
	if err := lazy.Publish(context.Background(), "user-created", msg); err != nil {
		t.Fatalf("second Publish = %v", err)
	}
	if !lazy.Initialized() || calls.Load() != 2 {
		t.Errorf("initialized=%t calls=%d", lazy.Initialized(), calls.Load())
	}
}

func TestLazyPublisher_ConcurrentInitOnce(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazyPublisher(func(context.Context) (*eventprocessor.Publisher, error) {
		calls.Add(1)
		return eventprocessor.NewPublisher(nopPublisher{})
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lazy.Publish(context.Background(), "t", message.NewMessage(watermill.NewUUID(), nil))
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("factory calls = %d, want 1", calls.Load())
	}
	if err := lazy.Close(); err != nil {
		t.Fatal(err)
	}
	if lazy.Initialized() {
		t.Error("still initialized after Close")
	}
}
