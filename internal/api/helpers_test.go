// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confluence/internal/auth"
	"github.com/tomtom215/confluence/internal/config"
	"github.com/tomtom215/confluence/internal/identity"
	"github.com/tomtom215/confluence/internal/notify"
	"github.com/tomtom215/confluence/internal/upstream"
)

// fakeService is an httptest upstream whose routes count their calls.
type fakeService struct {
	mux   *http.ServeMux
	srv   *httptest.Server
	calls sync.Map // pattern -> *atomic.Int64
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) handle(pattern string, h http.HandlerFunc) {
	counter := &atomic.Int64{}
	f.calls.Store(pattern, counter)
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		counter.Add(1)
		h(w, r)
	})
}

func (f *fakeService) count(pattern string) int64 {
	v, ok := f.calls.Load(pattern)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// publishedEvent is one captured event.created call.
type publishedEvent struct {
	CreatorID int64
	EventID   int64
	Payload   json.RawMessage
}

// recordingNotifier captures published domain events.
type recordingNotifier struct {
	mu     sync.Mutex
	users  []notify.UserCreated
	events []publishedEvent
}

func (n *recordingNotifier) UserCreated(_ context.Context, u notify.UserCreated) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, u)
}

func (n *recordingNotifier) EventCreated(_ context.Context, creatorID, eventID int64, event json.RawMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{CreatorID: creatorID, EventID: eventID, Payload: event})
}

func (n *recordingNotifier) snapshot() ([]notify.UserCreated, []publishedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.UserCreated(nil), n.users...), append([]publishedEvent(nil), n.events...)
}

// testEnv is a router backed by three fake services.
type testEnv struct {
	users, events, feed *fakeService
	notifier            *recordingNotifier
	caller              *auth.CallerIdentity
	handler             http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*config.ServicesConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		users:    newFakeService(t),
		events:   newFakeService(t),
		feed:     newFakeService(t),
		notifier: &recordingNotifier{},
		caller:   &auth.CallerIdentity{SubjectID: "uid-1", Email: "c@d.com", DisplayName: "Cara D", Method: auth.MethodForwarded},
	}

	svc := config.ServicesConfig{
		UsersURL:     env.users.srv.URL,
		EventsURL:    env.events.srv.URL,
		FeedURL:      env.feed.srv.URL,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	for _, m := range mutate {
		m(&svc)
	}
	clients, err := upstream.NewClients(svc, "x-firebase-uid", nil)
	if err != nil {
		t.Fatalf("NewClients: %v", err)
	}

	h := NewHandler(HandlerConfig{
		Clients:  clients,
		Resolver: identity.NewResolver(clients.Users, env.notifier),
		Notifier: env.notifier,
		Version:  "test",
	})

	authenticate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if env.caller == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), env.caller)))
		})
	}
	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
		CORSExposedHeaders: []string{"ETag", "Location"},
		RateLimitDisabled:  true,
	})
	env.handler = NewRouter(h, authenticate, mw).Setup()
	return env
}

func (env *testEnv) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func detailString(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Detail string `json:"detail"`
	}
	decodeBody(t, rec, &resp)
	return resp.Detail
}
