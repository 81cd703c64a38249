package engine

import (
	"strings"

	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/text"
)

// Match returns the first catalog entry, in catalog order, for which some
// message token either contains one of its keywords or is at least threshold
// similar to it. Entries later in the catalog are never preferred over an
// earlier hit, however close their score.
func Match(normalized string, entries []catalog.Entry, threshold float64) (catalog.Entry, bool) {
	tokens := text.Tokens(normalized)
	if len(tokens) == 0 {
		return catalog.Entry{}, false
	}

	for _, entry := range entries {
		keywords := entry.NormalizedKeywords()
		for _, token := range tokens {
			for _, keyword := range keywords {
				if keyword == "" {
					continue
				}
				if strings.Contains(token, keyword) || text.Similarity(token, keyword) >= threshold {
					return entry, true
				}
			}
		}
	}
	return catalog.Entry{}, false
}
