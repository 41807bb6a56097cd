// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package notify turns domain events into email notifications.
//
// The publish side (Notifier) is fire-and-forget: it is called after an
// upstream create succeeded and never reports failure to its caller. The
// consume side (Consumers) looks up recipients, renders type-specific
// templates and hands them to a Mailer; any unexpected failure is returned
// so the message is redelivered.
package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/logging"
)

// DefaultPublishTimeout bounds one publish when no timeout is configured.
const DefaultPublishTimeout = 10 * time.Second

// Publisher publishes one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// Notifier publishes domain events for newly created resources.
type Notifier struct {
	publisher Publisher
	topics    config.TopicsConfig
	timeout   time.Duration
}

// NewNotifier creates a Notifier publishing through pub.
func NewNotifier(pub Publisher, topics config.TopicsConfig, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Notifier{publisher: pub, topics: topics, timeout: timeout}
}

// UserCreated publishes user.created. Failures are logged, not returned.
func (n *Notifier) UserCreated(ctx context.Context, user UserCreated) {
	n.publish(ctx, n.topics.UserCreated, EventTypeUserCreated, user.UserID, nil, user)
}

// EventCreated publishes event.created for creatorID. event is the Events
// service's create response and is carried as the payload unchanged, so
// fields this gateway does not model still reach consumers. Failures are
// logged, not returned.
func (n *Notifier) EventCreated(ctx context.Context, creatorID, eventID int64, event json.RawMessage) {
	n.publish(ctx, n.topics.EventCreated, EventTypeEventCreated, creatorID, &eventID, event)
}

func (n *Notifier) publish(ctx context.Context, topic, eventType string, userID int64, eventID *int64, payload any) {
	logger := logging.Ctx(ctx)

	env, err := NewEnvelope(eventType, userID, eventID, payload)
	if err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to build domain event")
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to serialize domain event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("event_type", eventType)
	msg.Metadata.Set("user_id", strconv.FormatInt(userID, 10))
	if rid := logging.RequestIDFromContext(ctx); rid != "" {
		msg.Metadata.Set("request_id", rid)
	}

	// The inbound request may finish before the broker answers.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.publisher.Publish(pubCtx, topic, msg); err != nil {
		logger.Warn().Err(err).
			Str("topic", topic).
			Str("event_type", eventType).
			Int64("user_id", userID).
			Msg("Domain event not published")
		return
	}

	logger.Info().
		Str("topic", topic).
		Str("event_type", eventType).
		Str("message_uuid", msg.UUID).
		Int64("user_id", userID).
		Msg("Domain event published")
}
