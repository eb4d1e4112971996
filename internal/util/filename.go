package util

import "strings"

// PortableFileNameChars is the POSIX portable filename character set.
const PortableFileNameChars = ".-_0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Sanitizer maps arbitrary labels onto a fixed filename character set.
//
// Allowed characters are kept, a space becomes '_', a slash becomes '-', and
// every other character becomes '.'. Mapping is per code point, so output rune
// count equals input rune count; no uniqueness is guaranteed.
type Sanitizer struct {
	allowed map[rune]struct{}
}

// NewSanitizer builds a Sanitizer keeping exactly the runes of allowed. An
// empty allowed string selects PortableFileNameChars.
func NewSanitizer(allowed string) Sanitizer {
	if allowed == "" {
		allowed = PortableFileNameChars
	}
	set := make(map[rune]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return Sanitizer{allowed: set}
}

// Sanitize returns the filename-safe form of label. A nil label yields "".
func (s Sanitizer) Sanitize(label *string) string {
	if label == nil {
		return ""
	}
	if s.allowed == nil {
		s = defaultSanitizer
	}
	return strings.Map(func(r rune) rune {
		if _, ok := s.allowed[r]; ok {
			return r
		}
		switch r {
		case ' ':
			return '_'
		case '/':
			return '-'
		default:
			return '.'
		}
	}, *label)
}

var defaultSanitizer = NewSanitizer(PortableFileNameChars)

// Ptr returns a pointer to s. It keeps call sites with literal labels short.
func Ptr(s string) *string {
	return &s
}
