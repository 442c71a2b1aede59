// Package slug turns free-form property titles into URL-safe path segments and
// composes the canonical public URL of a property from its slug and identifier.
package slug

import (
	"regexp"
	"strings"
)

const (
	// Fallback is returned for an empty title.
	Fallback = "property"
	// MaxLength caps the slug length in characters.
	MaxLength = 100

	rootPath           = "/"
	propertyPathPrefix = "/property/"
)

// whitespaceClass is the ECMAScript \s set; non-breaking and ideographic spaces
// separate words like ASCII spaces do.
const whitespaceClass = `\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`

var (
	disallowedPattern    = regexp.MustCompile(`[^A-Za-z0-9_` + whitespaceClass + `-]`)
	whitespaceRunPattern = regexp.MustCompile(`[` + whitespaceClass + `]+`)
	hyphenRunPattern     = regexp.MustCompile(`-+`)
)

// Generate converts a title into a lowercase, hyphen separated slug of at most
// MaxLength characters.
//
// An empty title yields Fallback. A non-empty title made only of symbols yields
// the empty string: the fallback is applied to the input, never to the output.
func Generate(title string) string {
	if title == "" {
		return Fallback
	}

	s := strings.ToLower(title)
	s = strings.TrimFunc(s, isSpace)
	s = disallowedPattern.ReplaceAllString(s, "")
	s = whitespaceRunPattern.ReplaceAllString(s, "-")
	s = hyphenRunPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	// Only ASCII survives the filters above, so byte and character counts match.
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}

	return strings.TrimRight(s, "-")
}

// PropertyRef carries the two fields of a stored property needed to address it.
// Empty strings stand for absent fields.
type PropertyRef struct {
	Identifier string
	Title      string
}

// PropertyURL returns /property/<slug>/<identifier> for the referenced record,
// or "/" when the record or its identifier is missing. The identifier is used
// verbatim.
func PropertyURL(ref *PropertyRef) string {
	if ref == nil || ref.Identifier == "" {
		return rootPath
	}

	return propertyPathPrefix + Generate(ref.Title) + "/" + ref.Identifier
}

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		0x00a0, 0x1680, 0x2028, 0x2029, 0x202f, 0x205f, 0x3000, 0xfeff:
		return true
	}
	return r >= 0x2000 && r <= 0x200a
}
