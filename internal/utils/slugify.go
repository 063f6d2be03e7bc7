package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^\w\s-]`)
	slugSeparators   = regexp.MustCompile(`[-\s]+`)
)

// Slugify converts text into a lowercase, hyphen separated, URL-safe identifier.
// Accented letters are decomposed and reduced to their ASCII base; any other
// non-ASCII rune is dropped.
func Slugify(value string) string {
	decomposed := norm.NFKD.String(value)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}

	slug := strings.ToLower(b.String())
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugSeparators.ReplaceAllString(slug, "-")

	return strings.Trim(slug, "-_")
}
