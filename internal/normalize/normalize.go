// Package normalize cleans user-entered text before it is stored or indexed.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxBoardNameLength is the longest board name accepted, in runes.
const MaxBoardNameLength = 120

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	multipleHyphens = regexp.MustCompile(`-+`)
)

// BoardName NFC-normalizes a board name, drops control characters, collapses
// runs of whitespace, and truncates to MaxBoardNameLength runes.
func BoardName(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if runes := []rune(s); len(runes) > MaxBoardNameLength {
		s = strings.TrimSpace(string(runes[:MaxBoardNameLength]))
	}
	return s
}

// Slugify converts a string to a URL-safe slug.
// "Living Room (2nd)" -> "living-room-2nd".
// "Café Nook" -> "cafe-nook".
func Slugify(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SearchText prepares free-text catalog queries: NFKC folding and trimmed
// whitespace. Stemming and case folding are left to the index analyzer.
func SearchText(raw string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
}
