package session

import "testing"

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"alice", true},
		{"Bob_42", true},
		{"xy", true},
		{"a", false},                     // too short
		{"abcdefghijklmnopqrstu", false}, // 21 chars
		{"1alice", false},                // must start with a letter
		{"al ice", false},                // no spaces
		{"al-ice", false},                // no punctuation
		{"admin", false},                 // reserved
		{"GUEST", false},                 // reserved, case-insensitive
		{"", false},
	}
	for _, tt := range tests {
		err := ValidateUsername(tt.name)
		if tt.ok && err != nil {
			t.Errorf("ValidateUsername(%q) = %v, want nil", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ValidateUsername(%q) = nil, want error", tt.name)
		}
	}
}
