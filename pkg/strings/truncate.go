package strings

import (
	"strings"
	"unicode"
)

// MaxErrorDescriptionLen bounds provider-supplied error descriptions shown
// to the user.
const MaxErrorDescriptionLen = 200

// minTruncateLen leaves room for one character plus "...".
const minTruncateLen = 4

// SingleLine collapses all whitespace in s to single spaces, drops other
// control characters and cuts the result to maxLen runes, ending it with
// "..." when something was cut. maxLen below 4 is treated as 4.
func SingleLine(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// ErrorDescription prepares an error_description received from the
// authorization server or token endpoint for display.
func ErrorDescription(s string) string {
	return SingleLine(s, MaxErrorDescriptionLen)
}
