// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package notify

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/confluence/internal/eventprocessor"
	"github.com/tomtom215/confluence/internal/logging"
	"github.com/tomtom215/confluence/internal/metrics"
	"github.com/tomtom215/confluence/internal/models"
	"github.com/tomtom215/confluence/internal/upstream"
)

// UserLookup fetches a user by internal id.
type UserLookup interface {
	User(ctx context.Context, identity string, userID int64) (*models.User, error)
}

// Consumers handles user.created and event.created deliveries. Handlers
// return nil when the email was sent, a wrapped eventprocessor.ErrSkipMessage
// when there is nothing to send, and any other error to have the message
// redelivered.
type Consumers struct {
	users    UserLookup
	mailer   Mailer
	renderer *Renderer
}

// NewConsumers creates the notification consumers.
func NewConsumers(users UserLookup, mailer Mailer, renderer *Renderer) *Consumers {
	return &Consumers{users: users, mailer: mailer, renderer: renderer}
}

// HandleUserCreated sends the welcome email.
func (c *Consumers) HandleUserCreated(ctx context.Context, msg *message.Message) error {
	env, err := DecodeEnvelope(msg.Payload)
	if err != nil {
		return err
	}
	if !env.Matches(EventTypeUserCreated) {
		return skip("unexpected event type %q", env.EventType)
	}

	user, err := env.UserCreated()
	if err != nil {
		return err
	}
	if user.Email == "" {
		return skip("user %d has no email", user.UserID)
	}

	mail, err := c.renderer.Welcome(user.Email, user.FirstName)
	if err != nil {
		return err
	}
	return c.send(ctx, mail, user.UserID)
}

// HandleEventCreated sends the event confirmation to the event's creator.
// The creator is looked up with the system identity; the original caller's
// credentials are not part of the message.
func (c *Consumers) HandleEventCreated(ctx context.Context, msg *message.Message) error {
	env, err := DecodeEnvelope(msg.Payload)
	if err != nil {
		return err
	}
	if !env.Matches(EventTypeEventCreated) {
		return skip("unexpected event type %q", env.EventType)
	}
	if env.UserID == 0 {
		return skip("no user_id in message")
	}

	event, err := env.Event()
	if err != nil {
		return err
	}

	user, err := c.users.User(ctx, upstream.SystemIdentity, env.UserID)
	if upstream.IsNotFound(err) {
		return skip("user %d not found", env.UserID)
	}
	if err != nil {
		return fmt.Errorf("look up user %d: %w", env.UserID, err)
	}
	if user.Email == "" {
		return skip("user %d has no email", env.UserID)
	}

	mail, err := c.renderer.EventCreated(user.Email, user.FirstName, event)
	if err != nil {
		return err
	}
	return c.send(ctx, mail, env.UserID)
}

func (c *Consumers) send(ctx context.Context, mail *Message, userID int64) error {
	err := c.mailer.Send(ctx, mail)
	metrics.RecordEmail(mail.Kind, err)
	if err != nil {
		return fmt.Errorf("send %s email: %w", mail.Kind, err)
	}
	logging.Ctx(ctx).Info().
		Str("kind", mail.Kind).
		Int64("user_id", userID).
		Str("to", logging.MaskEmail(mail.To)).
		Msg("Notification email sent")
	return nil
}

func skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", eventprocessor.ErrSkipMessage, fmt.Sprintf(format, args...))
}
