package folio

import (
	"net/url"
	"strings"
)

const maxSlugLength = 80

// Slugify lowercases s and collapses every run of characters outside
// [a-z0-9] into one hyphen. The result is at most maxSlugLength bytes.
func Slugify(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	slug := strings.Join(words, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// BuildURL joins base with path segments. A base that does not parse is
// returned unchanged.
func BuildURL(base string, segments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	return u.JoinPath(segments...).String()
}
