package internal

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"pinned example", "Explain quantum tunneling in simple terms", "Explain quantum tunneling in simple term"},
		{"short text", "Hello", "Hello"},
		{"exactly forty", strings.Repeat("a", 40), strings.Repeat("a", 40)},
		{"whitespace collapsed", "line one\n\nline\ttwo", "line one line two"},
		{"trailing space after cut is trimmed", strings.Repeat("a", 39) + " bcd", strings.Repeat("a", 39)},
		{"blank", " \n\t ", ""},
		{"emoji counted as one character", strings.Repeat("👍🏽", 45), strings.Repeat("👍🏽", 40)},
		{"decomposed accents are composed", "Cafe\u0301 ordering", "Caf\u00e9 ordering"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveTitle(tt.in)
			if got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("DeriveTitle(%q) returned invalid UTF-8", tt.in)
			}
		})
	}
}

func TestClampTitle(t *testing.T) {
	long := strings.Repeat("word ", 20)
	got := ClampTitle(long, GeneratedTitleMaxLength)
	if utf8.RuneCountInString(got) > GeneratedTitleMaxLength {
		t.Errorf("ClampTitle() = %q (%d runes), want at most %d", got, utf8.RuneCountInString(got), GeneratedTitleMaxLength)
	}
	if got != strings.TrimSpace(got) {
		t.Errorf("ClampTitle() = %q is not trimmed", got)
	}
	if ClampTitle("anything", 0) != "" {
		t.Error("ClampTitle(max=0) should be empty")
	}
}
