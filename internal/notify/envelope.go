// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package notify

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/models"
)

// Domain event types.
const (
	EventTypeUserCreated  = "user.created"
	EventTypeEventCreated = "event.created"
)

// ErrMalformedEnvelope is returned when a message body is not a usable envelope.
var ErrMalformedEnvelope = errors.New("malformed event envelope")

// legacyTimestampLayout is the naive ISO timestamp used by the atomic services.
const legacyTimestampLayout = "2006-01-02T15:04:05.999999"

// Envelope is the message body for every domain event.
type Envelope struct {
	EventType string          `json:"event_type"`
	UserID    int64           `json:"user_id"`
	EventID   *int64          `json:"event_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// UserCreated is the payload of a user.created event.
type UserCreated struct {
	UserID      int64  `json:"user_id"`
	FirebaseUID string `json:"firebase_uid"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	Role        string `json:"role"`
}

// NewUserCreated builds the payload for a provisioned user.
func NewUserCreated(u *models.User) UserCreated {
	role := u.Role
	if role == "" {
		role = "user"
	}
	return UserCreated{
		UserID:      u.UserID,
		FirebaseUID: u.FirebaseUID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		Role:        role,
	}
}

// NewEnvelope serializes payload into an envelope stamped with the current time.
func NewEnvelope(eventType string, userID int64, eventID *int64, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		EventType: eventType,
		UserID:    userID,
		EventID:   eventID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// wireEnvelope accepts both the current shape and the flat shape published
// by the atomic services (event_data instead of payload, user fields at the
// top level).
type wireEnvelope struct {
	EventType string          `json:"event_type"`
	UserID    int64           `json:"user_id"`
	EventID   *int64          `json:"event_id"`
	Payload   json.RawMessage `json:"payload"`
	EventData json.RawMessage `json:"event_data"`
	Timestamp string          `json:"timestamp"`

	FirebaseUID string `json:"firebase_uid"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	Role        string `json:"role"`
}

// DecodeEnvelope parses a message body in either envelope shape. The body
// must be a JSON object carrying an event_type.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedEnvelope)
	}
	var w wireEnvelope
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if w.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEnvelope)
	}

	env := &Envelope{
		EventType: w.EventType,
		UserID:    w.UserID,
		EventID:   w.EventID,
		Payload:   w.Payload,
		Timestamp: parseTimestamp(w.Timestamp),
	}

	if isEmptyJSON(env.Payload) {
		env.Payload = w.EventData
	}
	if isEmptyJSON(env.Payload) && w.Email != "" {
		raw, err := json.Marshal(UserCreated{
			UserID:      w.UserID,
			FirebaseUID: w.FirebaseUID,
			Email:       w.Email,
			FirstName:   w.FirstName,
			Role:        w.Role,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
		}
		env.Payload = raw
	}

	return env, nil
}

// UserCreated decodes the payload of a user.created event. An envelope with
// no payload yields a zero value with only UserID set.
func (e *Envelope) UserCreated() (UserCreated, error) {
	uc := UserCreated{UserID: e.UserID}
	if isEmptyJSON(e.Payload) {
		return uc, nil
	}
	if err := json.Unmarshal(e.Payload, &uc); err != nil {
		return uc, fmt.Errorf("%w: user payload: %w", ErrMalformedEnvelope, err)
	}
	if uc.UserID == 0 {
		uc.UserID = e.UserID
	}
	return uc, nil
}

// Event decodes the payload of an event.created event.
func (e *Envelope) Event() (models.Event, error) {
	var ev models.Event
	if isEmptyJSON(e.Payload) {
		return ev, nil
	}
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return ev, fmt.Errorf("%w: event payload: %w", ErrMalformedEnvelope, err)
	}
	if ev.EventID == 0 && e.EventID != nil {
		ev.EventID = *e.EventID
	}
	return ev, nil
}

// Matches reports whether the envelope may be handled as eventType.
func (e *Envelope) Matches(eventType string) bool {
	return e.EventType == eventType
}

func isEmptyJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(legacyTimestampLayout, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
