package store

import (
	"errors"
	"testing"
)

func TestCheckID(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		unsafe bool
	}{
		{"Plain", "system", false},
		{"Mixed", "UX1234AB", false},
		{"Digits", "12345", false},
		{"Empty", "", true},
		{"DotDot", "../etc/passwd", true},
		{"Slash", "a/b", true},
		{"Backslash", `a\b`, true},
		{"Space", "a b", true},
		{"Dash", "user-1", true},
		{"Unicode", "usér", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckID(tt.id)
			if tt.unsafe && !errors.Is(err, ErrUnsafeID) {
				t.Errorf("CheckID(%q) = %v, want ErrUnsafeID", tt.id, err)
			}
			if !tt.unsafe && err != nil {
				t.Errorf("CheckID(%q) = %v, want nil", tt.id, err)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	src := Object{
		"name": "alice",
		"controllers": map[string]any{
			"U1": "owner",
		},
		"tags": []any{"a", "b"},
	}

	dst := Clone(src)
	dst["name"] = "bob"
	dst["controllers"].(map[string]any)["U1"] = "viewer"
	dst["tags"].([]any)[0] = "z"

	if src["name"] != "alice" {
		t.Error("clone aliases top-level values")
	}
	if src["controllers"].(map[string]any)["U1"] != "owner" {
		t.Error("clone aliases nested maps")
	}
	if src["tags"].([]any)[0] != "a" {
		t.Error("clone aliases slices")
	}
}

func TestCloneNil(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
}
