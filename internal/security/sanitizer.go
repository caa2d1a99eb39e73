// internal/security/sanitizer.go
package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxDisplayLen is the longest value, in runes, shown on a display surface.
const MaxDisplayLen = 256

// SanitizeValue prepares a removed parameter value for display. It replaces
// invalid UTF-8, drops control and bidirectional formatting characters, and
// truncates to MaxDisplayLen runes with a trailing ellipsis.
func SanitizeValue(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}

	var b strings.Builder
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) || isBidiControl(r) {
			continue
		}
		if n == MaxDisplayLen {
			b.WriteString("\u2026")
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// isBidiControl reports embedding, override and isolate characters, which can
// make a displayed value read differently from its bytes.
func isBidiControl(r rune) bool {
	return (r >= '\u202a' && r <= '\u202e') || (r >= '\u2066' && r <= '\u2069') || r == '\u200e' || r == '\u200f'
}
