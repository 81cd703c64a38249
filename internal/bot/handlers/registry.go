package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// Command names, without the leading slash.
const (
	CommandStart      = "start"
	CommandPause      = "pause"
	CommandResetStats = "resetstats"
	CommandReload     = "reload"
	CommandStats      = "stats"
)

var commandNames = []string{CommandStart, CommandPause, CommandResetStats, CommandReload, CommandStats}

// RegisteredHandler represents a handler with its match rule and middleware.
// When MatchFunc is set it is used instead of Pattern and MatchType.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	MatchFunc   tgbot.MatchFunc
}

// RegisterAllCommands returns every handler keyed by a descriptive name.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandStart,
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	handlers["/pause"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandPause,
		Handler:     NewPauseHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/resetstats"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandResetStats,
		Handler:     NewResetStatsHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/reload"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandReload,
		Handler:     NewReloadHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/stats"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     CommandStats,
		Handler:     NewStatsHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}

	handlers["message"] = RegisteredHandler{
		Handler:   NewMessageHandler(deps),
		MatchFunc: IsInboundMessage,
	}

	return handlers
}
