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
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/metrics"
)

// HandlerFunc processes one message. Returning nil acks it, ErrSkipMessage
// acks it without further processing, any other error nacks it.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// MessageHandler consumes one subscription and dispatches to a HandlerFunc.
type MessageHandler struct {
	subscriber   message.Subscriber
	subscription string
	topic        string
	handler      HandlerFunc

	running     chan struct{}
	runningOnce sync.Once
}

// NewMessageHandler creates a handler for the named subscription on topic.
func NewMessageHandler(sub message.Subscriber, subscription, topic string) *MessageHandler {
	return &MessageHandler{
		subscriber:   sub,
		subscription: subscription,
		topic:        topic,
		running:      make(chan struct{}),
	}
}

// Running is closed once Run has subscribed. Transports without retention
// (the memory transport) only deliver messages published after this point.
func (h *MessageHandler) Running() <-chan struct{} {
	return h.running
}

// Handle sets the message processing function.
func (h *MessageHandler) Handle(fn HandlerFunc) *MessageHandler {
	h.handler = fn
	return h
}

// Subscription returns the subscription name.
func (h *MessageHandler) Subscription() string {
	return h.subscription
}

// Run processes messages until ctx is canceled. A closed message channel
// while ctx is live returns ErrSubscriptionClosed so a supervisor restarts it.
func (h *MessageHandler) Run(ctx context.Context) error {
	messages, err := h.subscriber.Subscribe(ctx, h.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", h.subscription, h.topic, err)
	}

	h.runningOnce.Do(func() { close(h.running) })
	logging.Info().Str("subscription", h.subscription).Str("topic", h.topic).Msg("Listening for messages")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%s: %w", h.subscription, ErrSubscriptionClosed)
			}
			h.processMessage(ctx, msg)
		}
	}
}

func (h *MessageHandler) processMessage(ctx context.Context, msg *message.Message) {
	start := time.Now()

	if h.handler == nil {
		msg.Ack()
		metrics.RecordConsume(h.subscription, "ack", time.Since(start))
		return
	}

	err := h.invoke(ctx, msg)
	switch {
	case err == nil:
		msg.Ack()
		metrics.RecordConsume(h.subscription, "ack", time.Since(start))
	case errors.Is(err, ErrSkipMessage):
		msg.Ack()
		metrics.RecordConsume(h.subscription, "skip", time.Since(start))
		logging.Info().Str("subscription", h.subscription).Str("message_uuid", msg.UUID).
			Str("reason", err.Error()).Msg("Message acknowledged without processing")
	default:
		msg.Nack()
		metrics.RecordConsume(h.subscription, "nack", time.Since(start))
		logging.Error().Err(err).Str("subscription", h.subscription).Str("message_uuid", msg.UUID).
			Msg("Message processing failed, will be redelivered")
	}
}

// invoke runs the handler, converting a panic into a nack.
func (h *MessageHandler) invoke(ctx context.Context, msg *message.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.handler(ctx, msg)
}
