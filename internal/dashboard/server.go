// Package dashboard serves the operator HTTP API and pushes engine events to
// browsers over WebSocket.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mrdev/replybot/internal/catalog"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/database"
	"github.com/mrdev/replybot/internal/engine"
	"github.com/mrdev/replybot/internal/session"
)

const (
	defaultPageSize  = 50
	defaultAuditSize = 100
	shutdownTimeout  = 5 * time.Second
)

// Engine is the part of the reply engine the dashboard drives.
type Engine interface {
	Status() engine.Status
	Stats() engine.MessageStats
	ResetStats(ctx context.Context) error
	TogglePause() bool
	SetPaused(paused bool)
	SetActive(active bool)
	ReloadCatalog() (catalog.Snapshot, error)
	Conversations() []database.ConversationRecord
	Sessions(ctx context.Context) (map[string]session.State, error)
	AuditLog(ctx context.Context, kind database.AuditKind, limit int) ([]database.AuditEntry, error)
	Subscribe(obs engine.Observer) (unsubscribe func())
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg    config.DashboardConfig
	engine Engine
	logger *slog.Logger
	hub    *Hub
	app    *fiber.App
	now    func() time.Time
}

// statusView is the bot status as the dashboard shows it.
type statusView struct {
	engine.Status
	Connected bool `json:"isConnected"`
}

// NewServer builds a dashboard server and its routes. Call Run to serve it.
func NewServer(cfg config.DashboardConfig, eng Engine, logger *slog.Logger) *Server {
	logger = logger.With("component", "dashboard")
	s := &Server{
		cfg:    cfg,
		engine: eng,
		logger: logger,
		hub:    NewHub(logger),
		now:    time.Now,
	}

	s.app = fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           30 * time.Second,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)

	api := s.app.Group("/api")
	api.Get("/bot/status", s.handleStatus)
	api.Post("/bot/toggle-pause", s.handleTogglePause)
	api.Post("/bot/start", s.handleSetActive(true))
	api.Post("/bot/stop", s.handleSetActive(false))
	api.Get("/messages/stats", s.handleStats)
	api.Post("/messages/reset", s.handleResetStats)
	api.Post("/catalog/reload", s.handleReloadCatalog)
	api.Get("/chat/memory", s.handleSessions)
	api.Get("/praise/log", s.handleAudit(database.AuditPraise))
	api.Get("/audit/:kind", s.handleAuditKind)
	api.Get("/conversations", s.handleConversations)
	api.Get("/conversations/export", s.handleExport)

	s.app.Get("/ws", s.handleUpgrade)

	return s
}

// App returns the routed fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hub, subscribes to engine events, and serves HTTP until ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	unsubscribe := s.start(ctx)
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Dashboard listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down dashboard: %w", err)
		}
		s.logger.Info("Dashboard stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard server failed: %w", err)
		}
		return nil
	}
}

// start runs the hub and forwards engine events to it.
func (s *Server) start(ctx context.Context) (unsubscribe func()) {
	go s.hub.Run(ctx)
	return s.engine.Subscribe(s.onEvent)
}

func (s *Server) onEvent(ev engine.Event) {
	if ev.Type == engine.EventBotStatus && ev.Status != nil {
		s.hub.Broadcast(string(ev.Type), s.view(*ev.Status))
		return
	}
	s.hub.Broadcast(string(ev.Type), ev.Payload())
}

func (s *Server) view(st engine.Status) statusView {
	return statusView{Status: st, Connected: st.Active}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("Dashboard request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// requestLogger logs every request at debug level and failed ones at warn.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}

	level := slog.LevelDebug
	if status >= fiber.StatusBadRequest {
		level = slog.LevelWarn
	}
	s.logger.Log(c.UserContext(), level, "Dashboard request",
		"method", c.Method(), "path", c.Path(), "status", status, "latency", time.Since(start))
	return err
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.view(s.engine.Status()))
}

func (s *Server) handleTogglePause(c *fiber.Ctx) error {
	paused := s.engine.TogglePause()
	return c.JSON(fiber.Map{"success": true, "isPaused": paused})
}

func (s *Server) handleSetActive(active bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.engine.SetActive(active)
		return c.JSON(s.view(s.engine.Status()))
	}
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.engine.Stats())
}

func (s *Server) handleResetStats(c *fiber.Ctx) error {
	if err := s.engine.ResetStats(c.UserContext()); err != nil {
		s.logger.ErrorContext(c.UserContext(), "Failed to reset stats", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to reset stats")
	}
	return c.JSON(fiber.Map{"success": true, "message": "Stats reset successfully"})
}

func (s *Server) handleReloadCatalog(c *fiber.Ctx) error {
	snap, err := s.engine.ReloadCatalog()
	resp := fiber.Map{
		"success":  err == nil,
		"intents":  len(snap.Entries),
		"badWords": len(snap.BadWords),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	return c.JSON(resp)
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	states, err := s.engine.Sessions(c.UserContext())
	if err != nil {
		s.logger.ErrorContext(c.UserContext(), "Failed to read sessions", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read chat memory")
	}
	return c.JSON(states)
}

func (s *Server) handleAuditKind(c *fiber.Ctx) error {
	kind := database.AuditKind(c.Params("kind"))
	switch kind {
	case database.AuditUnmatched, database.AuditPraise, database.AuditAbuse:
		return s.handleAudit(kind)(c)
	default:
		return fiber.NewError(fiber.StatusNotFound, "unknown audit kind")
	}
}

func (s *Server) handleAudit(kind database.AuditKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit", defaultAuditSize)
		if err != nil || limit <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}
		entries, err := s.engine.AuditLog(c.UserContext(), kind, limit)
		if err != nil {
			s.logger.ErrorContext(c.UserContext(), "Failed to read audit log", "kind", string(kind), "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read audit log")
		}
		if entries == nil {
			entries = []database.AuditEntry{}
		}
		return c.JSON(entries)
	}
}

func (s *Server) handleConversations(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid offset")
	}

	all := s.engine.Conversations()
	filtered := filterConversations(all, c.Query("search"))
	page, more := paginate(filtered, limit, offset)

	return c.JSON(conversationsPage{
		Conversations: page,
		Stats:         summarize(all, s.today()),
		Pagination:    &pagination{Limit: limit, Offset: offset, HasMore: more},
	})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	filtered := filterConversations(s.engine.Conversations(), c.Query("search"))
	c.Attachment("conversations.json")
	return c.JSON(filtered)
}

func (s *Server) handleUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(s.handleConnection)(c)
}

// handleConnection owns one WebSocket connection. It returns only after the
// writer has stopped, since the connection is recycled afterwards.
func (s *Server) handleConnection(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	for _, msg := range s.greeting() {
		c.send <- msg
	}

	if !s.hub.Register(c) {
		return
	}

	writerDone := make(chan struct{})
	go writePump(c, writerDone)

	readPump(c, func(msgType string) { s.handleClientMessage(c, msgType) })
	s.hub.Unregister(c)
	<-writerDone
}

// greeting is the snapshot a freshly connected client receives.
func (s *Server) greeting() [][]byte {
	all := s.engine.Conversations()
	first, _ := paginate(all, defaultPageSize, 0)

	frames := []struct {
		typ  string
		data any
	}{
		{string(engine.EventBotStatus), s.view(s.engine.Status())},
		{string(engine.EventMessageStats), s.engine.Stats()},
		{"conversationsData", conversationsPage{
			Conversations: first,
			Stats:         summarize(all, s.today()),
		}},
	}

	out := make([][]byte, 0, len(frames))
	for _, f := range frames {
		payload, err := encode(f.typ, f.data)
		if err != nil {
			s.logger.Error("Failed to encode greeting", "type", f.typ, "error", err)
			continue
		}
		out = append(out, payload)
	}
	return out
}

func (s *Server) handleClientMessage(c *client, msgType string) {
	switch msgType {
	case "ping":
		s.hub.SendTo(c, "pong", nil)
	case "getBotStatus":
		s.hub.SendTo(c, string(engine.EventBotStatus), s.view(s.engine.Status()))
	case "pauseBot":
		s.engine.SetPaused(true)
	case "resumeBot":
		s.engine.SetPaused(false)
	default:
		s.logger.Debug("Ignoring unknown dashboard message", "type", msgType)
	}
}

func (s *Server) today() string {
	return s.now().UTC().Format(time.DateOnly)
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
