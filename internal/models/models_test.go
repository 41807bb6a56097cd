// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestNewUserSync(t *testing.T) {
	tests := []struct {
		name                   string
		email, display, avatar string
		wantFirst, wantLast    string
		wantUsername           string
		wantPicture            bool
	}{
		{"two part name", "c@d.com", "Cara D", "", "Cara", "D", "c", false},
		{"three part name", "ann.lee@example.com", "Ann  Marie  Lee", "https://img/x.png", "Ann", "Marie Lee", "ann.lee", true},
		{"single name", "bo@example.com", "Bo", "", "Bo", "", "bo", false},
		{"no display name", "dana@example.com", "", "", "dana", "", "dana", false},
		{"blank display name", "eve@example.com", "   ", "", "eve", "", "eve", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewUserSync(tt.email, tt.display, tt.avatar)
			if got.FirstName != tt.wantFirst || got.LastName != tt.wantLast {
				t.Errorf("name = %q/%q, want %q/%q", got.FirstName, got.LastName, tt.wantFirst, tt.wantLast)
			}
			if got.Username != tt.wantUsername {
				t.Errorf("username = %q, want %q", got.Username, tt.wantUsername)
			}
			if got.Email != tt.email {
				t.Errorf("email = %q", got.Email)
			}
			if (got.ProfilePicture != nil) != tt.wantPicture {
				t.Errorf("profile picture set = %t, want %t", got.ProfilePicture != nil, tt.wantPicture)
			}
		})
	}
}

func TestUserSync_NullPictureSerialized(t *testing.T) {
	b, err := json.Marshal(NewUserSync("c@d.com", "Cara D", ""))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"first_name":"Cara","last_name":"D","username":"c","email":"c@d.com","profile_picture":null}`
	if string(b) != want {
		t.Errorf("got %s\nwant %s", b, want)
	}
}

func TestEvent_LocationOr(t *testing.T) {
	var e Event
	if got := e.LocationOr("TBD"); got != "TBD" {
		t.Errorf("nil location = %q", got)
	}
	empty := ""
	e.Location = &empty
	if got := e.LocationOr("TBD"); got != "TBD" {
		t.Errorf("empty location = %q", got)
	}
	hall := "Hall A"
	e.Location = &hall
	if got := e.LocationOr("TBD"); got != "Hall A" {
		t.Errorf("location = %q", got)
	}
}

func TestRawItemsKeepsUnknownFields(t *testing.T) {
	var page RawItems
	if err := json.Unmarshal([]byte(`{"items":[{"post_id":1,"likes":3}],"total":1}`), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || string(page.Items[0]) != `{"post_id":1,"likes":3}` {
		t.Errorf("items = %s", page.Items)
	}
}
