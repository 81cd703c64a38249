// Package session keeps short-lived per-chat memory: the last matched intent
// and the count of consecutive remorseful replies. The whole store is
// flushed periodically; nothing here is an audit record.
package session

import (
	"context"
	"time"
)

// State is the per-chat memory. The zero value is the state of a chat the
// store has not seen.
type State struct {
	LastIntent    string    `json:"intent,omitempty"`
	LastIntentAt  time.Time `json:"time,omitempty"`
	NegativeCount int       `json:"negativeCount"`
}

// Store persists State per chat id.
type Store interface {
	// Get returns the state for chatID, or the zero State if none exists.
	Get(ctx context.Context, chatID string) (State, error)
	// Put replaces the state for chatID.
	Put(ctx context.Context, chatID string, state State) error
	// Flush removes every chat's state and reports how many were removed.
	Flush(ctx context.Context) (int, error)
	// Snapshot returns a copy of all current states keyed by chat id.
	Snapshot(ctx context.Context) (map[string]State, error)
}
