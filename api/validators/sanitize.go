package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters other than newline
// and tab, and caps the result at maxRunes characters. The cut always lands
// on a rune boundary. maxRunes <= 0 disables the cap.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	cleaned = strings.TrimSpace(cleaned)

	if maxRunes <= 0 || utf8.RuneCountInString(cleaned) <= maxRunes {
		return cleaned
	}
	count := 0
	for i := range cleaned {
		if count == maxRunes {
			return strings.TrimRightFunc(cleaned[:i], unicode.IsSpace)
		}
		count++
	}
	return cleaned
}

// SanitizeOptional sanitizes an optional free-text field such as notes.
// Nil and blank input both come back as nil.
func SanitizeOptional(input *string, maxRunes int) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeString(*input, maxRunes)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
