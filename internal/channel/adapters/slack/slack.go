// Package slack implements the Slack messaging plugin: the Events API
// webhook with request signing and replay protection, event deduplication,
// slash commands and outbound delivery through the Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/plugin"
)

// BehaviorProcessor receives accepted events.
type BehaviorProcessor interface {
	Process(ctx context.Context, event channel.NotificationEvent, origin, pluginName string) error
}

// Adapter is the Slack instant-messaging plugin.
type Adapter struct {
	logger    *slog.Logger
	cfg       Config
	api       API
	store     datastore.Store
	behaviors BehaviorProcessor
	formatter Formatter
	clock     Clock

	inflight sync.WaitGroup
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithAPI replaces the Web API client.
func WithAPI(api API) Option {
	return func(a *Adapter) { a.api = api }
}

// WithClock replaces the clock used for freshness checks and polling.
func WithClock(clock Clock) Option {
	return func(a *Adapter) { a.clock = clock }
}

// WithFormatter replaces the Block Kit formatter.
func WithFormatter(f Formatter) Option {
	return func(a *Adapter) { a.formatter = f }
}

// NewAdapter creates the Slack adapter. store holds processing markers and
// prompts; behaviors receives accepted events.
func NewAdapter(log *slog.Logger, cfg Config, store datastore.Store, behaviors BehaviorProcessor, opts ...Option) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	a := &Adapter{
		logger:    log.With(slog.String("adapter", Type)),
		cfg:       cfg,
		store:     store,
		behaviors: behaviors,
		formatter: BlockFormatter{},
		clock:     realClock{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.api == nil {
		a.api = NewClient(cfg)
	}
	return a
}

func (a *Adapter) Name() string { return Type }

// Initialize checks the configuration.
func (a *Adapter) Initialize(ctx context.Context) error {
	if err := a.cfg.validate(); err != nil {
		return fmt.Errorf("slack adapter: %w", err)
	}
	if a.store == nil {
		return errors.New("slack adapter: datastore is required")
	}
	if a.behaviors == nil {
		return errors.New("slack adapter: behavior dispatcher is required")
	}
	a.logger.Info("slack adapter initialized",
		slog.String("route", a.cfg.RoutePath),
		slog.Int("authorized_channels", len(a.cfg.AuthorizedChannels)),
		slog.Bool("internal_channel", a.cfg.InternalChannel != ""))
	return nil
}

func (a *Adapter) RoutePath() string { return a.cfg.RoutePath }

func (a *Adapter) RouteMethods() []string { return []string{http.MethodPost} }

// FormatTriggerGenAIMessage renders text as a message that mentions the bot.
func (a *Adapter) FormatTriggerGenAIMessage(text string) string {
	return "<@" + a.cfg.BotUserID + "> " + text
}

var (
	_ channel.Adapter      = (*Adapter)(nil)
	_ plugin.RouteProvider = (*Adapter)(nil)
	_ plugin.Stopper       = (*Adapter)(nil)
)
