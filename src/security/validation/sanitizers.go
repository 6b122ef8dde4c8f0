// src/security/validation/sanitizers.go
package validation

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNotesLength bounds the free-text notes sent with a transfer or bill payment.
const MaxNotesLength = 255

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1 // Drop the rune
	}, s)
}

// SanitizeNotes strips unprintable runes, trims, and truncates to MaxNotesLength runes.
func SanitizeNotes(s string) string {
	s = strings.TrimSpace(StripUnprintable(s))
	if utf8.RuneCountInString(s) <= MaxNotesLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:MaxNotesLength]))
}

// SanitizeUsername trims and drops unprintable runes from a username field.
func SanitizeUsername(s string) string {
	return strings.TrimSpace(StripUnprintable(s))
}

// IsEmail reports whether s is a bare address such as "a@b.co".
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}
