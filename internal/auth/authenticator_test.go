// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// stubAuthenticator returns a fixed result and counts calls.
type stubAuthenticator struct {
	name     string
	priority int
	id       *CallerIdentity
	err      error
	calls    int
}

func (s *stubAuthenticator) Authenticate(_ context.Context, _ *http.Request) (*CallerIdentity, error) {
	s.calls++
	return s.id, s.err
}
func (s *stubAuthenticator) Name() string  { return s.name }
func (s *stubAuthenticator) Priority() int { return s.priority }

// ========================================
// Chain
// ========================================

func TestChain_OrderAndFallthrough(t *testing.T) {
	late := &stubAuthenticator{name: "late", priority: 20, id: &CallerIdentity{SubjectID: "b"}}
	early := &stubAuthenticator{name: "early", priority: 10, err: ErrNoCredentials}

	c := NewChain(late, early)
	got := c.Authenticators()
	if got[0].Name() != "early" || got[1].Name() != "late" {
		t.Fatalf("order = %s,%s", got[0].Name(), got[1].Name())
	}

	id, err := c.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.SubjectID != "b" || early.calls != 1 || late.calls != 1 {
		t.Errorf("id=%v early=%d late=%d", id, early.calls, late.calls)
	}
}

func TestChain_RejectedCredentialsStop(t *testing.T) {
	first := &stubAuthenticator{name: "first", priority: 1, err: ErrExpiredCredentials}
	second := &stubAuthenticator{name: "second", priority: 2, id: &CallerIdentity{SubjectID: "x"}}

	_, err := NewChain(first, second).Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if !errors.Is(err, ErrExpiredCredentials) {
		t.Errorf("err = %v", err)
	}
	if second.calls != 0 {
		t.Error("chain continued after rejected credentials")
	}
}

func TestChain_KeepsMostSpecificError(t *testing.T) {
	down := &stubAuthenticator{name: "down", priority: 1, err: ErrAuthenticatorUnavailable}
	empty := &stubAuthenticator{name: "empty", priority: 2, err: ErrNoCredentials}

	_, err := NewChain(down, empty).Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if !errors.Is(err, ErrAuthenticatorUnavailable) {
		t.Errorf("err = %v, want ErrAuthenticatorUnavailable", err)
	}
}

func TestChain_Empty(t *testing.T) {
	c := NewChain()
	if _, err := c.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", http.NoBody)); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v", err)
	}
	c.Add(&stubAuthenticator{name: "a", id: &CallerIdentity{SubjectID: "a"}})
	if len(c.Authenticators()) != 1 {
		t.Error("Add did not register")
	}
}

// ========================================
// ForwardedAuthenticator
// ========================================

func encodeUserInfo(t *testing.T, claims map[string]any) string {
	t.Helper()
	b, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestForwardedAuthenticator(t *testing.T) {
	a := NewForwardedAuthenticator("x-firebase-uid", "X-Apigateway-Api-Userinfo")

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("uid only", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.Header.Set("x-firebase-uid", "uid-9")
		id, err := a.Authenticate(context.Background(), r)
		if err != nil {
			t.Fatal(err)
		}
		if id.SubjectID != "uid-9" || id.Method != MethodForwarded || id.Email != "" {
			t.Errorf("id = %+v", id)
		}
	})

	t.Run("with userinfo", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.Header.Set("x-firebase-uid", "uid-9")
		r.Header.Set("X-Apigateway-Api-Userinfo", encodeUserInfo(t, map[string]any{
			"user_id": "uid-9", "email": "ann@example.com", "name": "Ann Lee", "picture": "https://p",
		}))
		id, err := a.Authenticate(context.Background(), r)
		if err != nil {
			t.Fatal(err)
		}
		if id.Email != "ann@example.com" || id.DisplayName != "Ann Lee" || id.AvatarURL != "https://p" {
			t.Errorf("id = %+v", id)
		}
		if id.RawClaims["user_id"] != "uid-9" {
			t.Errorf("raw claims = %v", id.RawClaims)
		}
	})

	t.Run("subject mismatch", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.Header.Set("x-firebase-uid", "uid-9")
		r.Header.Set("X-Apigateway-Api-Userinfo", encodeUserInfo(t, map[string]any{"sub": "someone-else"}))
		if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("undecodable userinfo", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.Header.Set("x-firebase-uid", "uid-9")
		r.Header.Set("X-Apigateway-Api-Userinfo", "%%%")
		if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, ErrMalformedCredentials) {
			t.Errorf("err = %v", err)
		}
	})
}

// ========================================
// Middleware
// ========================================

func TestMiddleware_StoresIdentity(t *testing.T) {
	stub := &stubAuthenticator{name: "stub", id: &CallerIdentity{SubjectID: "uid-1", Method: MethodFirebase}}
	var seen *CallerIdentity
	h := NewMiddleware(stub).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", http.NoBody))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen == nil || seen.SubjectID != "uid-1" {
		t.Errorf("identity in context = %+v", seen)
	}
}

func TestMiddleware_ErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantDetail string
	}{
		{ErrNoCredentials, http.StatusUnauthorized, "Authorization header missing"},
		{ErrMalformedCredentials, http.StatusUnauthorized, "Invalid authorization header format. Expected: Bearer <token>"},
		{ErrExpiredCredentials, http.StatusUnauthorized, "Firebase token expired"},
		{ErrInvalidCredentials, http.StatusUnauthorized, "Invalid Firebase token"},
		{errors.New("anything else"), http.StatusUnauthorized, "Invalid Firebase token"},
		{ErrAuthenticatorUnavailable, http.StatusServiceUnavailable, "Authentication service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			called := false
			h := NewMiddleware(&stubAuthenticator{name: "stub", err: tt.err}).Authenticate(
				http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", http.NoBody))

			if called {
				t.Error("next handler ran for rejected request")
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body %q: %v", rec.Body.String(), err)
			}
			if body["detail"] != tt.wantDetail {
				t.Errorf("detail = %q, want %q", body["detail"], tt.wantDetail)
			}
			if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
				t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if IdentityFromContext(context.Background()) != nil {
		t.Error("expected nil identity")
	}
}
