package validation

import (
	"strings"
	"testing"
)

func TestSanitizeNotes(t *testing.T) {
	if got := SanitizeNotes("  rent\x00 for\tOctober \x07 "); got != "rent for\tOctober" {
		t.Fatalf("SanitizeNotes = %q", got)
	}
	long := strings.Repeat("é", MaxNotesLength+10)
	if got := SanitizeNotes(long); len([]rune(got)) != MaxNotesLength {
		t.Fatalf("expected truncation to %d runes, got %d", MaxNotesLength, len([]rune(got)))
	}
}

func TestIsEmail(t *testing.T) {
	cases := map[string]bool{
		"juan@example.com":        true,
		"juan.dela.cruz@knc.ph":   true,
		"juan@localhost":          false,
		"Juan <juan@example.com>": false,
		"not-an-email":            false,
		"":                        false,
	}
	for in, want := range cases {
		if got := IsEmail(in); got != want {
			t.Fatalf("IsEmail(%q) = %v, want %v", in, got, want)
		}
	}
}
