package util

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldCase returns the Unicode case-folded form of s.
func FoldCase(s string) string {
	return cases.Fold().String(s)
}

// FindContained reports the first candidate that occurs as a contiguous
// substring of value.
//
// Matching folds case on both sides unless caseSensitive is set, and the
// returned candidate is the folded form. A nil value, nil candidates or an
// empty candidate list all yield ("", false).
func FindContained(value *string, candidates []string, caseSensitive bool) (string, bool) {
	if value == nil || candidates == nil {
		return "", false
	}
	v := *value
	if !caseSensitive {
		v = FoldCase(v)
	}
	for _, c := range candidates {
		if !caseSensitive {
			c = FoldCase(c)
		}
		if strings.Contains(v, c) {
			return c, true
		}
	}
	return "", false
}
