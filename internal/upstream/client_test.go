// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/models"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{Name: "users", BaseURL: srv.URL, ReadTimeout: 2 * time.Second, WriteTimeout: 2 * time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// ========================================
// Request construction
// ========================================

func TestClient_ForwardsIdentityNotAuthorization(t *testing.T) {
	var gotUID, gotAuth, gotCT, gotBody, gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = r.Header.Get("x-firebase-uid")
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"event_id":7}`))
	}))

	resp, err := c.Do(context.Background(), &Request{
		Method:   http.MethodPost,
		Path:     "/events/",
		Query:    map[string][]string{"created_by": {"4"}},
		Body:     map[string]any{"title": "Meetup"},
		Identity: "uid-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if gotUID != "uid-1" || gotAuth != "" {
		t.Errorf("uid = %q auth = %q", gotUID, gotAuth)
	}
	if gotCT != "application/json" || gotBody != `{"title":"Meetup"}` || gotQuery != "created_by=4" {
		t.Errorf("ct=%q body=%q query=%q", gotCT, gotBody, gotQuery)
	}
}

func TestClient_RawBodyVerbatim(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		_, _ = w.Write([]byte(`{}`))
	}))
	raw := json.RawMessage(`{"title":"x","unknown_field":[1,2]}`)
	if _, err := c.Do(context.Background(), &Request{Method: http.MethodPut, Path: "/posts/1", Body: raw}); err != nil {
		t.Fatal(err)
	}
	if got != string(raw) {
		t.Errorf("body = %s", got)
	}
}

type staticTokens struct{ calls atomic.Int32 }

func (s *staticTokens) Token(_ context.Context, audience string) (string, error) {
	s.calls.Add(1)
	return "svc-token-for-" + audience, nil
}

func TestClient_IdentityTokenOnlyForRemoteHosts(t *testing.T) {
	tokens := &staticTokens{}
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}), func(cfg *Config) { cfg.Tokens = tokens })

	// httptest listens on 127.0.0.1, which never gets a service token.
	if _, err := c.Do(context.Background(), &Request{Path: "/users/me"}); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" || tokens.calls.Load() != 0 {
		t.Errorf("loopback call sent Authorization %q", gotAuth)
	}

	remote, err := NewClient(Config{Name: "events", BaseURL: "https://events-xyz.a.run.app", Tokens: tokens})
	if err != nil {
		t.Fatal(err)
	}
	if remote.tokens == nil {
		t.Error("run.app client has no token provider")
	}
}

// ========================================
// Response handling
// ========================================

func TestClient_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantRaw    bool
	}{
		{"string detail", 404, `{"detail":"Event not found"}`, "Event not found", false},
		{"structured detail", 422, `{"detail":[{"loc":["body","title"],"msg":"field required"}]}`, `[{"loc":["body","title"],"msg":"field required"}]`, true},
		{"no body", 404, ``, "404 Not Found", false},
		{"html body", 502, `<html>bad gateway</html>`, "502 Bad Gateway", false},
		{"null detail", 500, `{"detail":null}`, "500 Internal Server Error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := c.Do(context.Background(), &Request{Path: "/events/1"})
			var ue *Error
			if !errors.As(err, &ue) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if ue.StatusCode != tt.status || ue.Detail != tt.wantDetail {
				t.Errorf("got %d %q, want %d %q", ue.StatusCode, ue.Detail, tt.status, tt.wantDetail)
			}
			if (len(ue.RawDetail) > 0) != tt.wantRaw {
				t.Errorf("RawDetail = %s", ue.RawDetail)
			}
			if StatusOf(err) != tt.status {
				t.Errorf("StatusOf = %d", StatusOf(err))
			}
		})
	}
}

func TestClient_ConditionalGet(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(`{"event_id":1}`))
	}))

	first, err := c.Do(context.Background(), &Request{Path: "/events/1"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ETag != `"v1"` || first.NotModified() {
		t.Errorf("first = %+v", first)
	}

	second, err := c.Do(context.Background(), &Request{Path: "/events/1", IfNoneMatch: `"v1"`})
	if err != nil {
		t.Fatal(err)
	}
	if !second.NotModified() || len(second.Body) != 0 || second.ETag != `"v1"` {
		t.Errorf("second = %+v", second)
	}
}

func TestClient_LocationSurfaced(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/events/tasks/abc")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"task_id":"abc","status":"pending"}`))
	}))
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/events/async", Body: map[string]string{}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Location != "/events/tasks/abc" {
		t.Errorf("location = %q", resp.Location)
	}
	var task models.EventTask
	if err := resp.Decode(&task); err != nil || task.TaskID != "abc" {
		t.Errorf("task = %+v err = %v", task, err)
	}
}

// ========================================
// Transport failures
// ========================================

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	start := time.Now()
	_, err := c.Do(context.Background(), &Request{Path: "/events/", Timeout: 50 * time.Millisecond})
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("err = %v, want ErrUpstreamTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Config{Name: "feed", BaseURL: base})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Do(context.Background(), &Request{Path: "/posts/"}); !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func TestClient_ResponseSizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", 63, false},
		{"at limit", 64, false},
		{"one byte over", 65, true},
		{"far over", 4096, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `"` + strings.Repeat("a", tt.size-2) + `"`
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(payload))
			}), func(cfg *Config) { cfg.MaxBodyBytes = 64 })

			resp, err := c.Do(context.Background(), &Request{Path: "/events/"})
			if tt.wantErr {
				if !errors.Is(err, ErrResponseTooLarge) {
					t.Fatalf("err = %v, want ErrResponseTooLarge", err)
				}
				if resp != nil {
					t.Errorf("resp = %+v, want nil", resp)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Body) != tt.size {
				t.Errorf("body len = %d, want %d", len(resp.Body), tt.size)
			}
		})
	}
}

func TestClient_DetachedFromCallerCancellation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte(`{"user_id":1}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	if _, err := c.Do(ctx, &Request{Path: "/users/1"}); err != nil {
		t.Errorf("cancelled caller aborted upstream call: %v", err)
	}
}

// ========================================
// Circuit breaker
// ========================================

func TestClient_BreakerOpensOn5xxNot4xx(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
	}), func(cfg *Config) {
		cfg.Breaker = config.BreakerConfig{
			Enabled: true, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute,
			FailureRatio: 0.5, MinRequests: 3,
		}
	})

	for i := 0; i < 5; i++ {
		_, _ = c.Do(context.Background(), &Request{Path: "/users/1"})
	}
	if _, err := c.Do(context.Background(), &Request{Path: "/users/1"}); errors.Is(err, ErrUnreachable) {
		t.Fatal("breaker opened on client errors")
	}

	status.Store(http.StatusInternalServerError)
	for i := 0; i < 10; i++ {
		_, _ = c.Do(context.Background(), &Request{Path: "/users/1"})
	}
	before := hits.Load()
	_, err := c.Do(context.Background(), &Request{Path: "/users/1"})
	if !errors.Is(err, ErrUnreachable) || !strings.Contains(err.Error(), "circuit open") {
		t.Errorf("err = %v, want open circuit", err)
	}
	if hits.Load() != before {
		t.Error("open breaker still reached the service")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "http://x"}); err == nil {
		t.Error("expected error without name")
	}
	if _, err := NewClient(Config{Name: "users", BaseURL: "localhost:8001"}); err == nil {
		t.Error("expected error for url without scheme")
	}
}
