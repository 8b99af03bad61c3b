package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chatrelay/chatrelay/internal/behavior"
	"github.com/chatrelay/chatrelay/internal/behavior/plugins/acknowledge"
	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/channel/adapters/slack"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/datastore/providers/filesystem"
	"github.com/chatrelay/chatrelay/internal/datastore/providers/memory"
	"github.com/chatrelay/chatrelay/internal/datastore/providers/postgres"
	"github.com/chatrelay/chatrelay/internal/datastore/providers/sqlite"
	"github.com/chatrelay/chatrelay/internal/plugin"
	"github.com/chatrelay/chatrelay/internal/prompt"
)

const (
	pathFileSystem  = "backend.internal_data_processing.file_system"
	pathMemory      = "backend.internal_data_processing.memory"
	pathSQLite      = "backend.internal_data_processing.sqlite"
	pathPostgres    = "backend.internal_data_processing.postgres"
	pathSlack       = "user_interactions.instant_messaging.slack"
	pathAcknowledge = "user_interactions_behaviors.instant_messaging.acknowledge"
)

// pluginEnv carries what factories need. store and prompts are set once the
// backend plugins are loaded, before any other factory runs.
type pluginEnv struct {
	log       *slog.Logger
	cfg       config.Config
	store     datastore.Store
	prompts   *prompt.Manager
	channels  *channel.Dispatcher
	behaviors *behavior.Dispatcher
}

func newCatalog(env *pluginEnv) *plugin.Catalog {
	c := plugin.NewCatalog()
	c.Require(plugin.CategoryBackend, plugin.SubcategoryInternalDataProcessing, "datastore.Store", plugin.Implements[datastore.Store]())
	c.Require(plugin.CategoryUserInteractions, plugin.SubcategoryInstantMessaging, "channel.Adapter", plugin.Implements[channel.Adapter]())
	c.Require(plugin.CategoryUserInteractionsBehaviors, plugin.SubcategoryInstantMessaging, "behavior.Behavior", plugin.Implements[behavior.Behavior]())

	c.Add(pathFileSystem, func(ctx context.Context) (plugin.Plugin, error) {
		p, err := filesystem.New(env.cfg.Datastore.FileSystem.Root)
		if err != nil {
			return nil, err
		}
		return datastore.NewStore("file_system", env.cfg.Datastore.Containers, p), nil
	})
	c.Add(pathMemory, func(ctx context.Context) (plugin.Plugin, error) {
		return datastore.NewStore("memory", env.cfg.Datastore.Containers, memory.New()), nil
	})
	c.Add(pathSQLite, func(ctx context.Context) (plugin.Plugin, error) {
		p, err := sqlite.New(env.cfg.Datastore.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return datastore.NewStore("sqlite", env.cfg.Datastore.Containers, p), nil
	})
	c.Add(pathPostgres, func(ctx context.Context) (plugin.Plugin, error) {
		p, err := postgres.New(postgres.Config{
			DSN:      env.cfg.Datastore.Postgres.DSN,
			MaxConns: env.cfg.Datastore.Postgres.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		return datastore.NewStore("postgres", env.cfg.Datastore.Containers, p), nil
	})

	c.Add(pathSlack, func(ctx context.Context) (plugin.Plugin, error) {
		return slack.NewAdapter(env.log, slackConfig(env.cfg.Slack), env.store, env.behaviors), nil
	})
	c.Add(pathAcknowledge, func(ctx context.Context) (plugin.Plugin, error) {
		var prompter acknowledge.SystemPrompter
		if env.prompts != nil {
			prompter = env.prompts
		}
		return acknowledge.New(env.log, acknowledgeConfig(env.cfg.Bot), env.store, env.channels, prompter), nil
	})
	return c
}

func slackConfig(c config.SlackConfig) slack.Config {
	return slack.Config{
		RoutePath:            c.RoutePath,
		BotToken:             c.BotToken,
		SigningSecret:        c.SigningSecret,
		BotUserID:            c.BotUserID,
		APIURL:               c.APIURL,
		AuthorizedChannels:   c.AuthorizedChannels,
		FeedbackChannel:      c.FeedbackChannel,
		FeedbackBotID:        c.FeedbackBotID,
		InternalChannel:      c.InternalChannel,
		MessageTTL:           c.MessageTTL,
		MaxMessageLength:     c.MaxMessageLength,
		AllowedSubtypes:      c.AllowedSubtypes,
		InternalPollInterval: c.InternalPollInterval,
		InternalWaitTimeout:  c.InternalWaitTimeout,
		BehaviorPlugin:       c.BehaviorPlugin,
		ProcessInline:        c.ProcessInline,
	}
}

func acknowledgeConfig(c config.BotConfig) acknowledge.Config {
	return acknowledge.Config{
		RequireMentionNewMessage:    c.RequireMentionNewMessage,
		RequireMentionThreadMessage: c.RequireMentionThreadMessage,
		BreakKeyword:                c.BreakKeyword,
		StartKeyword:                c.StartKeyword,
	}
}

func promptConfig(c config.BotConfig) prompt.Config {
	return prompt.Config{
		CorePrompt:          c.CorePrompt,
		MainPrompt:          c.MainPrompt,
		SubpromptsContainer: c.SubpromptsFolder,
	}
}

// splitBackendPaths separates backend capability paths from the others.
func splitBackendPaths(paths []string) (backends, others []string, err error) {
	for _, path := range paths {
		category, _, _, err := plugin.ParsePath(path)
		if err != nil {
			return nil, nil, err
		}
		if strings.ToUpper(category) == plugin.CategoryBackend {
			backends = append(backends, path)
		} else {
			others = append(others, path)
		}
	}
	return backends, others, nil
}
