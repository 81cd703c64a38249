// Package config provides configuration loading, validation, and defaults
// for the reply bot. Values come from a YAML file, BOT_* environment
// variables, and the defaults in defaults.go, in increasing order of
// precedence: defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// Config is the root application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Session   SessionConfig   `mapstructure:"session"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// LoggerConfig controls log verbosity and format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds transport credentials and special chat ids.
type TelegramConfig struct {
	Token         string `mapstructure:"token"           validate:"required"`
	AdminUserID   int64  `mapstructure:"admin_user_id"   validate:"gt=0"`
	SupportChatID string `mapstructure:"support_chat_id" validate:"required"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig points at the SQLite file used for conversation logs and stats.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CatalogConfig lists the data files and static trigger lists.
type CatalogConfig struct {
	Files          []string `mapstructure:"files"           validate:"min=1,dive,required"`
	BadWordsFile   string   `mapstructure:"bad_words_file"  validate:"required"`
	PraiseKeywords []string `mapstructure:"praise_keywords" validate:"dive,required"`
	ThanksReplies  []string `mapstructure:"thanks_replies"  validate:"min=1,dive,required"`
}

// Remorse modes for the matched-reply selector.
const (
	RemorseAlways          = "always"
	RemorseNegativePhrases = "negative_phrases"
)

// EngineConfig tunes matching, reply pacing, and log retention.
//
// EscalationAfter is how many remorseful replies a chat receives in a row
// before the next one is replaced by the escalation message.
type EngineConfig struct {
	ConversationLimit int           `mapstructure:"conversation_limit" validate:"gt=0"`
	DailyBucketLimit  int           `mapstructure:"daily_bucket_limit" validate:"gt=0"`
	MatchThreshold    float64       `mapstructure:"match_threshold"    validate:"gt=0,lte=1"`
	TypingPerWord     time.Duration `mapstructure:"typing_per_word"    validate:"gte=0"`
	TypingMax         time.Duration `mapstructure:"typing_max"         validate:"gte=0,max=1m"`
	EscalationAfter   int           `mapstructure:"escalation_after"   validate:"gt=0"`
	RemorseMode       string        `mapstructure:"remorse_mode"       validate:"oneof=always negative_phrases"`
	NegativePhrases   []string      `mapstructure:"negative_phrases"`
}

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// SessionConfig selects where per-chat session state lives.
type SessionConfig struct {
	Backend   string `mapstructure:"backend"    validate:"oneof=memory redis"`
	RedisURL  string `mapstructure:"redis_url"  validate:"required_if=Backend redis"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MessagesConfig holds every fixed reply text the engine can send.
type MessagesConfig struct {
	AbuseReply           string   `mapstructure:"abuse_reply"            validate:"required"`
	SupportAlert         string   `mapstructure:"support_alert"          validate:"required"`
	ApologySuffix        string   `mapstructure:"apology_suffix"`
	Escalation           string   `mapstructure:"escalation"             validate:"required"`
	Clarifications       []string `mapstructure:"clarifications"         validate:"min=1,dive,required"`
	TechnicalError       string   `mapstructure:"technical_error"        validate:"required"`
	CatalogUnavailable   string   `mapstructure:"catalog_unavailable"    validate:"required"`
	Welcome              string   `mapstructure:"welcome"`
	ErrorUnauthorizedMsg string   `mapstructure:"error_unauthorized"`
	PausedMsg            string   `mapstructure:"paused"`
	ResumedMsg           string   `mapstructure:"resumed"`
	StatsResetMsg        string   `mapstructure:"stats_reset"`
	CatalogReloadedMsg   string   `mapstructure:"catalog_reloaded"`
	StatsMsg             string   `mapstructure:"stats"`
}

// TaskConfig schedules one named task.
type TaskConfig struct {
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// DashboardConfig configures the observer HTTP/WebSocket endpoint.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LoadConfig reads the YAML file at path (optional), overlays BOT_* environment
// variables, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read config file %s: %w", ErrConfiguration, path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if c.Engine.RemorseMode == RemorseNegativePhrases && len(c.Engine.NegativePhrases) == 0 {
		return fmt.Errorf("%w: engine.negative_phrases must not be empty when remorse_mode is %q",
			ErrConfiguration, RemorseNegativePhrases)
	}

	if !isPairTemplate(c.Messages.SupportAlert) {
		return fmt.Errorf("%w: messages.support_alert must contain exactly two %%s verbs and no other verbs",
			ErrConfiguration)
	}

	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && task.Schedule == "" {
			return fmt.Errorf("%w: scheduler task %q is enabled without a schedule", ErrConfiguration, name)
		}
	}

	return nil
}

// isPairTemplate reports whether tmpl takes exactly two %s arguments.
// Escaped percent signs are allowed.
func isPairTemplate(tmpl string) bool {
	bare := strings.ReplaceAll(tmpl, "%%", "")
	return strings.Count(bare, "%") == 2 && strings.Count(bare, "%s") == 2
}
