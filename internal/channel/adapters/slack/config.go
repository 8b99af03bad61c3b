package slack

import (
	"errors"
	"strings"
	"time"
)

// Type is the plugin name of the Slack adapter.
const Type = "slack"

const (
	defaultRoutePath            = "/slack/events"
	defaultMessageTTL           = time.Hour
	defaultMaxMessageLength     = 2900
	defaultInternalPollInterval = time.Second
	defaultInternalWaitTimeout  = 15 * time.Second
)

// Config is the Slack adapter configuration. It is passed by value and
// never mutated after construction.
type Config struct {
	RoutePath     string
	BotToken      string
	SigningSecret string
	BotUserID     string
	// APIURL overrides the Web API base URL. It must end with a slash.
	APIURL string

	AuthorizedChannels []string
	FeedbackChannel    string
	FeedbackBotID      string
	InternalChannel    string

	// MessageTTL is the replay window applied to event timestamps.
	MessageTTL       time.Duration
	MaxMessageLength int
	// AllowedSubtypes lists message subtypes that are processed like plain
	// messages.
	AllowedSubtypes []string

	InternalPollInterval time.Duration
	InternalWaitTimeout  time.Duration

	// BehaviorPlugin names the behavior that handles accepted events.
	BehaviorPlugin string
	// ProcessInline runs the pipeline before answering the webhook instead
	// of in the background.
	ProcessInline bool
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RoutePath) == "" {
		c.RoutePath = defaultRoutePath
	}
	if c.MessageTTL <= 0 {
		c.MessageTTL = defaultMessageTTL
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = defaultMaxMessageLength
	}
	if c.AllowedSubtypes == nil {
		c.AllowedSubtypes = []string{"file_share"}
	}
	if c.InternalPollInterval <= 0 {
		c.InternalPollInterval = defaultInternalPollInterval
	}
	if c.InternalWaitTimeout <= 0 {
		c.InternalWaitTimeout = defaultInternalWaitTimeout
	}
	c.AuthorizedChannels = trimAll(c.AuthorizedChannels)
	c.AllowedSubtypes = trimAll(c.AllowedSubtypes)
	return c
}

func (c Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.BotToken) == "" {
		errs = append(errs, errors.New("slack bot_token is required"))
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		errs = append(errs, errors.New("slack signing_secret is required"))
	}
	if strings.TrimSpace(c.BotUserID) == "" {
		errs = append(errs, errors.New("slack bot_user_id is required"))
	}
	return errors.Join(errs...)
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
