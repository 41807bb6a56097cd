// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/models"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventTypeUserCreated, 42, nil, UserCreated{UserID: 42, Email: "a@b.com", FirstName: "Ann", Role: "user"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if got.EventType != EventTypeUserCreated || got.UserID != 42 {
		t.Errorf("envelope = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not decoded")
	}
	uc, err := got.UserCreated()
	if err != nil {
		t.Fatal(err)
	}
	if uc.Email != "a@b.com" || uc.FirstName != "Ann" {
		t.Errorf("payload = %+v", uc)
	}
}

func TestDecodeEnvelope_LegacyEventShape(t *testing.T) {
	body := `{"event_type":"event.created","event_id":7,"user_id":9,
		"event_data":{"title":"Launch","location":"Hall A","start_time":"2026-05-01T10:00:00","created_by":9},
		"timestamp":"2026-04-01T12:30:00.123456"}`

	env, err := DecodeEnvelope([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if env.UserID != 9 || env.EventID == nil || *env.EventID != 7 {
		t.Errorf("ids = %d / %v", env.UserID, env.EventID)
	}
	want := time.Date(2026, 4, 1, 12, 30, 0, 123456000, time.UTC)
	if !env.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", env.Timestamp, want)
	}

	ev, err := env.Event()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Title != "Launch" || ev.LocationOr("TBD") != "Hall A" {
		t.Errorf("event = %+v", ev)
	}
	if ev.EventID != 7 {
		t.Errorf("EventID = %d, want 7 from envelope", ev.EventID)
	}
}

func TestDecodeEnvelope_LegacyUserShape(t *testing.T) {
	body := `{"event_type":"user.created","user_id":42,"firebase_uid":"uid-1","email":"a@b.com","first_name":"Ann","role":"user","timestamp":"2026-04-01T12:30:00"}`

	env, err := DecodeEnvelope([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	uc, err := env.UserCreated()
	if err != nil {
		t.Fatal(err)
	}
	want := UserCreated{UserID: 42, FirebaseUID: "uid-1", Email: "a@b.com", FirstName: "Ann", Role: "user"}
	if uc != want {
		t.Errorf("payload = %+v, want %+v", uc, want)
	}
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"user_id":"abc"}`, `[1,2]`, `null`, `{}`, `[]`, ``, `  `, `{"user_id":3}`} {
		if _, err := DecodeEnvelope([]byte(body)); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("DecodeEnvelope(%q) = %v, want ErrMalformedEnvelope", body, err)
		}
	}

	env := &Envelope{Payload: json.RawMessage(`"a string"`)}
	if _, err := env.Event(); !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("Event() with string payload = %v", err)
	}
}

func TestEnvelope_Matches(t *testing.T) {
	tests := []struct {
		eventType string
		want      bool
	}{
		{"", false},
		{EventTypeEventCreated, true},
		{"event.updated", false},
	}
	for _, tt := range tests {
		env := &Envelope{EventType: tt.eventType}
		if got := env.Matches(EventTypeEventCreated); got != tt.want {
			t.Errorf("Matches(%q) = %t, want %t", tt.eventType, got, tt.want)
		}
	}
}

func TestNewUserCreated_DefaultRole(t *testing.T) {
	uc := NewUserCreated(&models.User{UserID: 5, Email: "e@x.com", FirstName: "Eve", FirebaseUID: "u5"})
	if uc.Role != "user" || uc.UserID != 5 || uc.FirebaseUID != "u5" {
		t.Errorf("UserCreated = %+v", uc)
	}
}
