// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/tomtom215/confluence/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template defaults.
const (
	DefaultFirstName  = "User"
	DefaultEventTitle = "New Event"
	DefaultLocation   = "TBD"

	WelcomeSubject = "Welcome to Our Platform!"
)

// Mail kinds, used as metric labels.
const (
	KindWelcome      = "welcome"
	KindEventCreated = "event_created"
)

// Renderer renders notification emails. Event text supplied by users is
// stripped of markup for the text part and sanitized for the HTML part.
type Renderer struct {
	text   *texttemplate.Template
	html   *htmltemplate.Template
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	textTmpl, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	htmlTmpl, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	return &Renderer{
		text:   textTmpl,
		html:   htmlTmpl,
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}, nil
}

type welcomeData struct {
	FirstName string
}

type eventData struct {
	FirstName       string
	Title           string
	Location        string
	Start           string
	End             string
	Description     string
	DescriptionHTML htmltemplate.HTML
}

// Welcome renders the welcome email for a new user.
func (r *Renderer) Welcome(to, firstName string) (*Message, error) {
	data := welcomeData{FirstName: r.plain(firstName, DefaultFirstName)}
	return r.render(KindWelcome, to, WelcomeSubject, "welcome", data)
}

// EventCreated renders the confirmation sent to an event's creator.
func (r *Renderer) EventCreated(to, firstName string, event models.Event) (*Message, error) {
	data := eventData{
		FirstName: r.plain(firstName, DefaultFirstName),
		Title:     r.plain(event.Title, DefaultEventTitle),
		Location:  r.plain(event.LocationOr(""), DefaultLocation),
		Start:     r.plain(event.StartTime, ""),
		End:       r.plain(event.EndTime, ""),
	}
	if desc := strings.TrimSpace(event.Description); desc != "" {
		data.Description = r.plain(desc, "")
		data.DescriptionHTML = htmltemplate.HTML(r.ugc.Sanitize(desc)) //nolint:gosec // sanitized by bluemonday
	}
	return r.render(KindEventCreated, to, "Event Created: "+data.Title, "event_created", data)
}

func (r *Renderer) render(kind, to, subject, name string, data any) (*Message, error) {
	var textBuf, htmlBuf bytes.Buffer
	if err := r.text.ExecuteTemplate(&textBuf, name+".txt.tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := r.html.ExecuteTemplate(&htmlBuf, name+".html.tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", name, err)
	}
	return &Message{
		Kind:    kind,
		To:      to,
		Subject: subject,
		Text:    strings.TrimSpace(textBuf.String()),
		HTML:    htmlBuf.String(),
	}, nil
}

// plain strips markup from user-supplied text, falling back when nothing
// remains. The strict policy entity-encodes its output; that is undone here
// and the HTML templates escape again.
func (r *Renderer) plain(s, fallback string) string {
	s = strings.TrimSpace(html.UnescapeString(r.strict.Sanitize(s)))
	if s == "" {
		return fallback
	}
	return s
}
