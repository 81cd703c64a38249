package text

import (
	"strings"
	"unicode"
)

// Similarity returns the Dice coefficient of the character bigrams of a and b,
// in [0, 1]. Whitespace is ignored, identical strings score 1 and any string
// shorter than two characters scores 0 against a different string.
func Similarity(a, b string) float64 {
	a = stripSpaces(a)
	b = stripSpaces(b)

	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[[2]rune{ra[i], ra[i+1]}]++
	}

	var intersection int
	for i := 0; i < len(rb)-1; i++ {
		key := [2]rune{rb[i], rb[i+1]}
		if bigrams[key] > 0 {
			bigrams[key]--
			intersection++
		}
	}

	return 2 * float64(intersection) / float64(len(ra)+len(rb)-2)
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
