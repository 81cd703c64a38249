// Package text canonicalizes chat text for comparison and scores fuzzy
// similarity between words.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Arabic harakat and related combining marks removed after decomposition.
const (
	arabicMarkFirst = '\u064B'
	arabicMarkLast  = '\u065F'
)

var letterFolder = strings.NewReplacer(
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ى", "ي",
	"ؤ", "و",
	"ئ", "ي",
)

// Normalize lowercases s, applies canonical decomposition, strips Arabic
// diacritics, folds alef/yaa/hamza variants to their bare forms and collapses
// whitespace. The result is stable: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = norm.NFD.String(s)

	s = strings.Map(func(r rune) rune {
		if r >= arabicMarkFirst && r <= arabicMarkLast {
			return -1
		}
		return r
	}, s)

	s = letterFolder.Replace(s)

	return collapseWhitespace(s)
}

// collapseWhitespace replaces every run of whitespace with a single space and
// trims both ends.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var space bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteRune(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}

	return strings.TrimSpace(b.String())
}

// Tokens splits an already normalized message into its words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// WordCount reports the number of space-separated words in s, counting an
// empty string as one word the way a plain split does.
func WordCount(s string) int {
	return strings.Count(s, " ") + 1
}
