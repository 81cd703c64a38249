package engine

import (
	"strings"

	"github.com/mrdev/replybot/internal/catalog"
)

// Sentiment is the classifier's label for a message.
type Sentiment string

const (
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
	SentimentAbusive  Sentiment = "abusive"
)

// Classify labels an already normalized message. Bad words are checked first
// and win over praise keywords.
func Classify(normalized string, snap catalog.Snapshot) Sentiment {
	if containsAny(normalized, snap.BadWords) {
		return SentimentAbusive
	}
	if containsAny(normalized, snap.PraiseKeywords) {
		return SentimentPositive
	}
	return SentimentNeutral
}

// containsAny reports whether s contains any non-empty word.
func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
