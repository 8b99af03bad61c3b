package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chatrelay/chatrelay/internal/datastore"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultDataRoot          = "data"
	DefaultSQLitePath        = "data/chatrelay.db"
	DefaultSlackRoutePath    = "/slack/events"
	DefaultMessageTTL        = time.Hour
	DefaultMaxMessageLength  = 2900
	DefaultInternalPoll      = time.Second
	DefaultInternalWait      = 15 * time.Second
	DefaultJanitorSchedule   = "@every 1h"
	DefaultJanitorRetention  = 24 * time.Hour
	DefaultDatastorePlugin   = "file_system"
	DefaultMessagingPlugin   = "slack"
	DefaultBehaviorPlugin    = "acknowledge"
	DefaultCorePrompt        = "core_prompt"
	DefaultMainPrompt        = "main_prompt"
	DefaultSubpromptsFolder  = "subprompts"
	EnvSlackBotToken         = "SLACK_BOT_TOKEN"
	EnvSlackSigningSecret    = "SLACK_SIGNING_SECRET"
	EnvPostgresDSN           = "CHATRELAY_POSTGRES_DSN"
	defaultCapabilityBackend = "backend.internal_data_processing."
)

type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Bot       BotConfig       `toml:"bot" yaml:"bot"`
	Plugins   PluginsConfig   `toml:"plugins" yaml:"plugins"`
	Datastore DatastoreConfig `toml:"datastore" yaml:"datastore"`
	Slack     SlackConfig     `toml:"slack" yaml:"slack"`
	Janitor   JanitorConfig   `toml:"janitor" yaml:"janitor"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" yaml:"format" validate:"oneof=text json"`
	// File additionally writes log lines to this path when set.
	File string `toml:"file" yaml:"file"`
}

type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr" validate:"required"`
}

// BotConfig holds the conversational settings shared by behaviors.
type BotConfig struct {
	CorePrompt                  string `toml:"core_prompt" yaml:"core_prompt"`
	MainPrompt                  string `toml:"main_prompt" yaml:"main_prompt"`
	SubpromptsFolder            string `toml:"subprompts_folder" yaml:"subprompts_folder"`
	RequireMentionNewMessage    bool   `toml:"require_mention_new_message" yaml:"require_mention_new_message"`
	RequireMentionThreadMessage bool   `toml:"require_mention_thread_message" yaml:"require_mention_thread_message"`
	BreakKeyword                string `toml:"break_keyword" yaml:"break_keyword"`
	StartKeyword                string `toml:"start_keyword" yaml:"start_keyword" validate:"required_with=BreakKeyword"`
}

// PluginsConfig lists the capability paths to load and the default plugin
// of each family.
type PluginsConfig struct {
	Enabled          []string `toml:"enabled" yaml:"enabled" validate:"min=1,dive,required"`
	DefaultDatastore string   `toml:"default_datastore" yaml:"default_datastore"`
	DefaultMessaging string   `toml:"default_messaging" yaml:"default_messaging"`
	DefaultBehavior  string   `toml:"default_behavior" yaml:"default_behavior"`
}

type DatastoreConfig struct {
	Containers datastore.Containers `toml:"containers" yaml:"containers"`
	FileSystem FileSystemConfig     `toml:"file_system" yaml:"file_system"`
	SQLite     SQLiteConfig         `toml:"sqlite" yaml:"sqlite"`
	Postgres   PostgresConfig       `toml:"postgres" yaml:"postgres"`
}

type FileSystemConfig struct {
	Root string `toml:"root" yaml:"root"`
}

type SQLiteConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type PostgresConfig struct {
	DSN      string `toml:"dsn" yaml:"dsn"`
	MaxConns int32  `toml:"max_conns" yaml:"max_conns" validate:"gte=0"`
}

type SlackConfig struct {
	RoutePath          string   `toml:"route_path" yaml:"route_path" validate:"startswith=/"`
	BotToken           string   `toml:"bot_token" yaml:"bot_token"`
	SigningSecret      string   `toml:"signing_secret" yaml:"signing_secret"`
	BotUserID          string   `toml:"bot_user_id" yaml:"bot_user_id"`
	APIURL             string   `toml:"api_url" yaml:"api_url" validate:"omitempty,url,endswith=/"`
	AuthorizedChannels []string `toml:"authorized_channels" yaml:"authorized_channels"`
	FeedbackChannel    string   `toml:"feedback_channel" yaml:"feedback_channel"`
	FeedbackBotID      string   `toml:"feedback_bot_id" yaml:"feedback_bot_id"`
	InternalChannel    string   `toml:"internal_channel" yaml:"internal_channel"`
	AllowedSubtypes    []string `toml:"allowed_subtypes" yaml:"allowed_subtypes"`
	// Durations accept Go duration strings such as "15s".
	MessageTTL           time.Duration `toml:"message_ttl" yaml:"message_ttl"`
	MaxMessageLength     int           `toml:"max_message_length" yaml:"max_message_length" validate:"gte=0"`
	InternalPollInterval time.Duration `toml:"internal_poll_interval" yaml:"internal_poll_interval"`
	InternalWaitTimeout  time.Duration `toml:"internal_wait_timeout" yaml:"internal_wait_timeout"`
	BehaviorPlugin       string        `toml:"behavior_plugin" yaml:"behavior_plugin"`
	ProcessInline        bool          `toml:"process_inline" yaml:"process_inline"`
}

type JanitorConfig struct {
	Enabled   bool          `toml:"enabled" yaml:"enabled"`
	Schedule  string        `toml:"schedule" yaml:"schedule"`
	Retention time.Duration `toml:"retention" yaml:"retention"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Bot: BotConfig{
			CorePrompt:       DefaultCorePrompt,
			MainPrompt:       DefaultMainPrompt,
			SubpromptsFolder: DefaultSubpromptsFolder,
		},
		Plugins: PluginsConfig{
			Enabled: []string{
				defaultCapabilityBackend + DefaultDatastorePlugin,
				"user_interactions.instant_messaging." + DefaultMessagingPlugin,
				"user_interactions_behaviors.instant_messaging." + DefaultBehaviorPlugin,
			},
			DefaultDatastore: DefaultDatastorePlugin,
			DefaultMessaging: DefaultMessagingPlugin,
			DefaultBehavior:  DefaultBehaviorPlugin,
		},
		Datastore: DatastoreConfig{
			Containers: datastore.DefaultContainers(),
			FileSystem: FileSystemConfig{Root: DefaultDataRoot},
			SQLite:     SQLiteConfig{Path: DefaultSQLitePath},
		},
		Slack: SlackConfig{
			RoutePath:            DefaultSlackRoutePath,
			AllowedSubtypes:      []string{"file_share"},
			MessageTTL:           DefaultMessageTTL,
			MaxMessageLength:     DefaultMaxMessageLength,
			InternalPollInterval: DefaultInternalPoll,
			InternalWaitTimeout:  DefaultInternalWait,
			BehaviorPlugin:       DefaultBehaviorPlugin,
		},
		Janitor: JanitorConfig{
			Enabled:   true,
			Schedule:  DefaultJanitorSchedule,
			Retention: DefaultJanitorRetention,
		},
	}
}

// Load reads the file at path over the defaults. Files ending in .yaml or
// .yml are decoded as YAML, anything else as TOML. A missing file yields
// the defaults. Secrets set in the environment override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := decodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(raw, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvSlackBotToken)); v != "" {
		c.Slack.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSlackSigningSecret)); v != "" {
		c.Slack.SigningSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		c.Datastore.Postgres.DSN = v
	}
}

// Validate checks the struct tags of every section and the rules that span
// sections.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateMarkerRetention, Config{})
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// validateMarkerRetention rejects a janitor that would delete processing
// markers of events still inside the replay window.
func validateMarkerRetention(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if !c.Janitor.Enabled {
		return
	}
	ttl := c.Slack.MessageTTL
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	retention := c.Janitor.Retention
	if retention <= 0 {
		retention = DefaultJanitorRetention
	}
	if retention < ttl {
		sl.ReportError(c.Janitor.Retention, "Janitor.Retention", "Retention", "gte_message_ttl", ttl.String())
	}
}
