// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package validation

import (
	"testing"
)

// ===================================================================================================
// Singleton Validator Tests
// ===================================================================================================

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

// ===================================================================================================
// ValidateStruct Tests
// ===================================================================================================

type pageParams struct {
	UserID int64  `path:"user_id" validate:"min=1"`
	Skip   int    `query:"skip" validate:"min=0"`
	Limit  int    `query:"limit" validate:"min=1,max=100"`
	Email  string `json:"email" validate:"omitempty,email"`
	Mode   string `json:"mode" validate:"omitempty,oneof=firebase forwarded"`
}

func TestValidateStruct_Valid(t *testing.T) {
	if err := ValidateStruct(&pageParams{UserID: 1, Skip: 0, Limit: 100, Email: "a@b.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   pageParams
		loc     string
		field   string
		message string
	}{
		{"limit too large", pageParams{UserID: 1, Limit: 101}, "query", "limit", "limit must be at most 100"},
		{"limit zero", pageParams{UserID: 1, Limit: 0}, "query", "limit", "limit must be at least 1"},
		{"negative skip", pageParams{UserID: 1, Skip: -1, Limit: 10}, "query", "skip", "skip must be at least 0"},
		{"path id", pageParams{UserID: 0, Limit: 10}, "path", "user_id", "user_id must be at least 1"},
		{"bad email", pageParams{UserID: 1, Limit: 10, Email: "nope"}, "body", "email", "email must be a valid email address"},
		{"oneof", pageParams{UserID: 1, Limit: 10, Mode: "x"}, "body", "mode", "mode must be one of: firebase forwarded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), err)
			}
			if errs[0].Location != tt.loc || errs[0].Field != tt.field {
				t.Errorf("got %s.%s, want %s.%s", errs[0].Location, errs[0].Field, tt.loc, tt.field)
			}
			if errs[0].Message != tt.message {
				t.Errorf("message = %q, want %q", errs[0].Message, tt.message)
			}
		})
	}
}

func TestRequestValidationError_Detail(t *testing.T) {
	err := ValidateStruct(&pageParams{UserID: 1, Limit: 500})
	if err == nil {
		t.Fatal("expected validation error")
	}

	detail := err.Detail()
	if len(detail) != 1 {
		t.Fatalf("expected 1 detail item, got %d", len(detail))
	}
	if detail[0].Loc[0] != "query" || detail[0].Loc[1] != "limit" {
		t.Errorf("loc = %v", detail[0].Loc)
	}
	if detail[0].Type != "value_error.max" {
		t.Errorf("type = %q", detail[0].Type)
	}
}

func TestRequestValidationError_MultipleJoined(t *testing.T) {
	err := ValidateStruct(&pageParams{UserID: 0, Limit: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(err.Errors()))
	}
	want := "user_id must be at least 1; limit must be at least 1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
