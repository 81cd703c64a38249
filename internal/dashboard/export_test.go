package dashboard

import (
	"context"
	"time"
)

// Start runs the hub and event forwarding without an HTTP listener.
func (s *Server) Start(ctx context.Context) func() { return s.start(ctx) }

// Clients reports connected WebSocket clients.
func (s *Server) Clients() int { return s.hub.ClientCount() }

// SetClock replaces the server clock.
func (s *Server) SetClock(now func() time.Time) { s.now = now }
