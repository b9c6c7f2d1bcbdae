package utils

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// GenerateSlug turns a display name into a normalized identifier.
// "Peixes Frescos" -> "peixes-frescos", "Camarão Rosa" -> "camarao-rosa".
// Empty input yields an empty slug.
func GenerateSlug(name string) string {
	s := strings.ToLower(foldAccents(name))
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// IsValidSlug reports whether s is already in slug form.
func IsValidSlug(s string) bool {
	return slug.IsSlug(s)
}

// foldAccents decomposes the input and drops combining marks ("ã" -> "a").
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
