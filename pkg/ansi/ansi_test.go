package ansi

import "testing"

func TestWrap(t *testing.T) {
	got := Wrap(Red, "danger")
	want := "\x1b[31mdanger\x1b[0m"
	if got != want {
		t.Errorf("Wrap = %q, want %q", got, want)
	}
	if Wrap(Red, "") != "" {
		t.Error("Wrap of empty string should stay empty")
	}
}

func TestStrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{Wrap(Green, "hello"), "hello"},
		{Heading("Town Square"), "Town Square"},
		{ClearScreen + "x", "x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Strip(tt.in); got != tt.want {
			t.Errorf("Strip(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
