package store

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUserIDTrimsAndValidates(t *testing.T) {
	id, err := NewUserID("  u1  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "u1" {
		t.Fatalf("expected trimmed id, got %q", id.String())
	}

	if _, err := NewUserID("   "); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
	if _, err := NewUserID(strings.Repeat("x", maxIdentifierLength+1)); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID for oversized id, got %v", err)
	}
}

func TestParseChannelCID(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		expectError  bool
		expectedType string
		expectedID   string
	}{
		{name: "valid", raw: "messaging:general", expectedType: "messaging", expectedID: "general"},
		{name: "id contains colon", raw: "team:alpha:beta", expectedType: "team", expectedID: "alpha:beta"},
		{name: "empty", raw: "", expectError: true},
		{name: "missing separator", raw: "general", expectError: true},
		{name: "empty type", raw: ":general", expectError: true},
		{name: "empty id", raw: "messaging:", expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cid, err := ParseChannelCID(tc.raw)
			if tc.expectError {
				if !errors.Is(err, ErrInvalidChannelCID) {
					t.Fatalf("expected ErrInvalidChannelCID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cid.Type() != tc.expectedType {
				t.Fatalf("expected type %q, got %q", tc.expectedType, cid.Type())
			}
			if cid.ID() != tc.expectedID {
				t.Fatalf("expected id %q, got %q", tc.expectedID, cid.ID())
			}
		})
	}
}

func TestNewMemberIDIsStable(t *testing.T) {
	cid, err := ParseChannelCID("messaging:general")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userID, err := NewUserID("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := NewMemberID(cid, userID)
	second := NewMemberID(cid, userID)
	if first != second {
		t.Fatalf("member identity is not stable: %q vs %q", first, second)
	}
	if first.String() != "messaging:general:u1" {
		t.Fatalf("expected channel-first concatenation, got %q", first.String())
	}
}
