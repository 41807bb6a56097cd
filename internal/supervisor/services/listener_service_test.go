// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/confluence/internal/eventprocessor"
)

// ========================================
// ListenerService
// ========================================

func TestListenerService_DeliversMessages(t *testing.T) {
	transport := eventprocessor.NewMemoryTransport(nil)
	t.Cleanup(func() { _ = transport.Close() })

	var mu sync.Mutex
	var got []string
	svc := NewListenerService(transport, ListenerSpec{
		Subscription: "user-welcome-sub",
		Topic:        "user-created",
		Handler: func(_ context.Context, msg *message.Message) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(msg.Payload))
			return nil
		},
	})
	if svc.String() != "listener:user-welcome-sub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	pub, err := transport.NewPublisher(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// The memory transport keeps nothing for absent subscribers, so publish
	// until the listener has subscribed and received one.
	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("message not delivered")
		}
		if err := pub.Publish("user-created", message.NewMessage(watermill.NewUUID(), []byte(`{"user_id":1}`))); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	if got[0] != `{"user_id":1}` {
		t.Errorf("payload = %s", got[0])
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

type failingFactory struct{ calls atomic.Int32 }

func (f *failingFactory) NewSubscriber(context.Context, string) (message.Subscriber, error) {
	f.calls.Add(1)
	return nil, errors.New("connection refused")
}

func TestListenerService_SubscriberFailureIsRestartable(t *testing.T) {
	factory := &failingFactory{}
	svc := NewListenerService(factory, ListenerSpec{Subscription: "s", Topic: "t"})

	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("expected error on second start")
	}
	if factory.calls.Load() != 2 {
		t.Errorf("subscriber created %d times, want one per start", factory.calls.Load())
	}
}

// ========================================
// BrokerService
// ========================================

type fakeBroker struct {
	running   atomic.Bool
	shutdowns atomic.Int32
}

func (b *fakeBroker) IsRunning() bool { return b.running.Load() }

func (b *fakeBroker) Shutdown(context.Context) error {
	b.shutdowns.Add(1)
	b.running.Store(false)
	return nil
}

func TestBrokerService_ShutsDownOnCancel(t *testing.T) {
	broker := &fakeBroker{}
	broker.running.Store(true)
	svc := NewBrokerService(broker, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if broker.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d", broker.shutdowns.Load())
	}
}

func TestBrokerService_StoppedBrokerIsNotRestarted(t *testing.T) {
	svc := NewBrokerService(&fakeBroker{}, time.Second)
	if err := svc.Serve(context.Background()); !errors.Is(err, ErrBrokerStopped) {
		t.Errorf("err = %v", err)
	}
}
