// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package notify

import (
	"strings"
	"testing"

	"github.com/tomtom215/confluence/internal/models"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestRenderer_Welcome(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.Welcome("a@b.com", "Ann")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != "Welcome to Our Platform!" || msg.To != "a@b.com" || msg.Kind != KindWelcome {
		t.Errorf("message = %+v", msg)
	}
	if !strings.HasPrefix(msg.Text, "Hi Ann,") {
		t.Errorf("text = %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, "<p>Hi Ann,</p>") {
		t.Errorf("html = %q", msg.HTML)
	}

	msg, _ = r.Welcome("a@b.com", "")
	if !strings.HasPrefix(msg.Text, "Hi User,") {
		t.Errorf("default first name: %q", msg.Text)
	}
}

func TestRenderer_EventCreated(t *testing.T) {
	r := newTestRenderer(t)

	hall := "Hall A"
	msg, err := r.EventCreated("c@d.com", "Cara", models.Event{
		Title:       "Tom's Launch",
		Location:    &hall,
		StartTime:   "2026-05-01T10:00:00",
		EndTime:     "2026-05-01T12:00:00",
		Description: `Bring <b>snacks</b><script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatal(err)
	}

	if msg.Subject != "Event Created: Tom's Launch" {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{
		`Your event "Tom's Launch" has been successfully created!`,
		"- Location: Hall A",
		"- Start: 2026-05-01T10:00:00",
		"Bring snacks",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("text missing %q:\n%s", want, msg.Text)
		}
	}
	if strings.Contains(msg.Text, "<b>") || strings.Contains(msg.HTML, "<script>") {
		t.Error("markup not sanitized")
	}
	if !strings.Contains(msg.HTML, "<b>snacks</b>") {
		t.Errorf("allowed markup dropped from html: %s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "Tom&#39;s Launch") {
		t.Errorf("title not escaped once in html: %s", msg.HTML)
	}
}

func TestRenderer_EventCreatedDefaults(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.EventCreated("c@d.com", "", models.Event{})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != "Event Created: New Event" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "- Location: TBD") || !strings.HasPrefix(msg.Text, "Hi User,") {
		t.Errorf("text = %s", msg.Text)
	}
	if !strings.HasSuffix(msg.Text, "Thank you for using our platform!") {
		t.Errorf("text ending = %q", msg.Text)
	}
}
