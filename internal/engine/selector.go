package engine

import (
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/session"
	"github.com/mrdev/replybot/internal/text"
)

// Selection is the reply chosen for a matched entry.
type Selection struct {
	Reply      string
	Intent     string
	Remorseful bool
	Escalated  bool
}

type selector struct {
	cfg             config.EngineConfig
	msgs            config.MessagesConfig
	negativePhrases []string
	rng             *rand.Rand
}

func newSelector(cfg config.EngineConfig, msgs config.MessagesConfig, rng *rand.Rand) *selector {
	phrases := make([]string, 0, len(cfg.NegativePhrases))
	for _, p := range cfg.NegativePhrases {
		if n := text.Normalize(p); n != "" {
			phrases = append(phrases, n)
		}
	}
	return &selector{cfg: cfg, msgs: msgs, negativePhrases: phrases, rng: rng}
}

// choose picks the reply for entry and updates state in place.
func (s *selector) choose(entry catalog.Entry, state *session.State, normalized string, now time.Time) Selection {
	sel := Selection{Intent: entry.Intent, Remorseful: s.remorseful(normalized)}

	if sel.Remorseful {
		sel.Reply = shortest(entry.Answers) + s.msgs.ApologySuffix
		state.NegativeCount++
	} else {
		sel.Reply = s.pick(entry.Answers)
		state.NegativeCount = 0
	}

	if state.NegativeCount > s.cfg.EscalationAfter {
		sel.Reply = s.msgs.Escalation
		sel.Escalated = true
		state.NegativeCount = 0
	}

	state.LastIntent = entry.Intent
	state.LastIntentAt = now
	return sel
}

func (s *selector) remorseful(normalized string) bool {
	if s.cfg.RemorseMode != config.RemorseNegativePhrases {
		return true
	}
	return containsAny(normalized, s.negativePhrases)
}

func (s *selector) clarification() string {
	return s.pick(s.msgs.Clarifications)
}

func (s *selector) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[s.rng.IntN(len(options))]
}

// typingDelay is the simulated typing time for reply.
func (s *selector) typingDelay(reply string) time.Duration {
	return min(time.Duration(text.WordCount(reply))*s.cfg.TypingPerWord, s.cfg.TypingMax)
}

// shortest returns the shortest answer by rune count; the first one wins ties.
func shortest(answers []string) string {
	if len(answers) == 0 {
		return ""
	}
	best := answers[0]
	for _, a := range answers[1:] {
		if utf8.RuneCountInString(a) < utf8.RuneCountInString(best) {
			best = a
		}
	}
	return best
}
