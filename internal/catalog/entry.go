// Package catalog holds the intent/keyword/answer catalog together with the
// bad-word and praise-keyword trigger lists, loaded from JSON data files.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrdev/replybot/internal/text"
)

// ErrInvalidEntry is returned by Entry.Validate.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Entry is one intent with its keyword variants and candidate answers.
// Catalog order is significant: earlier entries win ambiguous matches.
type Entry struct {
	Intent   string   `json:"intent"`
	Keywords []string `json:"keywords"`
	Answers  []string `json:"answer"`

	normalized []string
}

// NormalizedKeywords returns the keywords in normalized form, skipping any
// that normalize to the empty string.
func (e Entry) NormalizedKeywords() []string {
	if e.normalized != nil {
		return e.normalized
	}
	return normalizeAll(e.Keywords)
}

// Validate reports whether the entry can be used for matching.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Intent) == "" {
		return fmt.Errorf("%w: empty intent", ErrInvalidEntry)
	}
	if len(normalizeAll(e.Keywords)) == 0 {
		return fmt.Errorf("%w: intent %q has no usable keywords", ErrInvalidEntry, e.Intent)
	}
	if len(nonEmpty(e.Answers)) == 0 {
		return fmt.Errorf("%w: intent %q has no answers", ErrInvalidEntry, e.Intent)
	}
	return nil
}

// compile returns a cleaned copy of e with its normalized keywords cached.
func (e Entry) compile() Entry {
	return Entry{
		Intent:     strings.TrimSpace(e.Intent),
		Keywords:   nonEmpty(e.Keywords),
		Answers:    nonEmpty(e.Answers),
		normalized: normalizeAll(e.Keywords),
	}
}

func normalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := text.Normalize(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
