package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

// TrimAndNormalize trims s and collapses inner whitespace runs to a single
// space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func removeSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// NormalizeID trims an identifier. Ids never contain whitespace.
func NormalizeID(id string) string {
	return Pipeline{strings.TrimSpace, removeSpaces}.Apply(id)
}

// NormalizeCurrency upper-cases an ISO 4217 code, so "xaf " becomes "XAF".
func NormalizeCurrency(code string) string {
	return Pipeline{strings.TrimSpace, strings.ToUpper}.Apply(code)
}

// NormalizeReference strips every space from an external payment reference;
// mobile money receipts are often pasted with separators.
func NormalizeReference(ref string) string {
	return Pipeline{strings.TrimSpace, removeSpaces}.Apply(ref)
}
