package idutil

import "testing"

func TestTabID_Format(t *testing.T) {
	m := NewManager()
	id := m.TabID()
	if len(id) != 12 {
		t.Errorf("expected 12 chars, got %d (%s)", len(id), id)
	}
	if !IsValidID(id, TabPrefix) {
		t.Errorf("expected valid tab id, got %s", id)
	}
	if ExtractPrefix(id) != "tab" {
		t.Errorf("expected prefix tab, got %q", ExtractPrefix(id))
	}
}

func TestTabID_Unique(t *testing.T) {
	m := NewManager()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := m.TabID()
		if seen[id] {
			t.Fatalf("duplicate id %s after %d draws", id, i)
		}
		seen[id] = true
	}
}

func TestTabID_Deterministic(t *testing.T) {
	m := &Manager{seed: func() string { return "fixed" }}
	if m.TabID() != m.TabID() {
		t.Error("same seed should hash to the same id")
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
		want   bool
	}{
		{"tab_12345678", "tab", true},
		{"prof_12345678", "tab", false},
		{"tab", "tab", false},
		{"tab12345678", "tab", false},
		{"", "tab", false},
	}
	for _, tt := range tests {
		if got := IsValidID(tt.id, tt.prefix); got != tt.want {
			t.Errorf("IsValidID(%q, %q) = %v, want %v", tt.id, tt.prefix, got, tt.want)
		}
	}
}

func TestExtractPrefix_NoUnderscore(t *testing.T) {
	if got := ExtractPrefix("nounderscore"); got != "" {
		t.Errorf("expected empty prefix, got %q", got)
	}
}
