package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatrelay/chatrelay/internal/behavior"
	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/handlers"
	"github.com/chatrelay/chatrelay/internal/healthcheck"
	datastorechecker "github.com/chatrelay/chatrelay/internal/healthcheck/checkers/datastore"
	pluginschecker "github.com/chatrelay/chatrelay/internal/healthcheck/checkers/plugins"
	"github.com/chatrelay/chatrelay/internal/logger"
	"github.com/chatrelay/chatrelay/internal/plugin"
	"github.com/chatrelay/chatrelay/internal/prompt"
	"github.com/chatrelay/chatrelay/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
		),
		gatewayOptions(),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

// gatewayOptions is the application graph minus config, logging and the
// listening server.
func gatewayOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			plugin.NewRegistry,
			provideChannelDispatcher,
			provideBehaviorDispatcher,
			providePluginEnv,
			newCatalog,
			provideDatastore,
			providePromptManager,
			provideLoadedPlugins,
			provideJanitor,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideHealthHandler),
			provideServerHandler(providePluginRoutesHandler),
			provideServer,
		),
		fx.Invoke(
			startPlugins,
			startJanitor,
		),
	)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(lc fx.Lifecycle, cfg config.Config) (*slog.Logger, error) {
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return logger.Close() }})
	return logger.L, nil
}

func provideChannelDispatcher(log *slog.Logger) *channel.Dispatcher {
	return channel.NewDispatcher(log)
}

func provideBehaviorDispatcher(log *slog.Logger) *behavior.Dispatcher {
	return behavior.NewDispatcher(log)
}

func providePluginEnv(log *slog.Logger, cfg config.Config, channels *channel.Dispatcher, behaviors *behavior.Dispatcher) *pluginEnv {
	return &pluginEnv{
		log:       log,
		cfg:       cfg,
		channels:  channels,
		behaviors: behaviors,
	}
}

// provideDatastore loads the backend plugins first so that messaging and
// behavior factories can be handed the store.
func provideDatastore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, registry *plugin.Registry, catalog *plugin.Catalog, env *pluginEnv) (*datastore.Dispatcher, error) {
	backends, _, err := splitBackendPaths(cfg.Plugins.Enabled)
	if err != nil {
		return nil, err
	}
	if err := catalog.Load(context.Background(), registry, backends); err != nil {
		return nil, err
	}
	stores, err := plugin.Collect[datastore.Store](registry, plugin.CategoryBackend, plugin.SubcategoryInternalDataProcessing)
	if err != nil {
		return nil, err
	}
	d, err := datastore.NewDispatcher(log, stores, cfg.Plugins.DefaultDatastore)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return closeStores(d.Stores()) }})
	env.store = d
	return d, nil
}

func providePromptManager(log *slog.Logger, cfg config.Config, store *datastore.Dispatcher, env *pluginEnv) *prompt.Manager {
	m := prompt.NewManager(log, store, promptConfig(cfg.Bot))
	env.prompts = m
	return m
}

// loadedPlugins marks the registry as complete. Consumers that read the
// registry depend on it instead of on *plugin.Registry.
type loadedPlugins struct {
	registry *plugin.Registry
}

func provideLoadedPlugins(cfg config.Config, registry *plugin.Registry, catalog *plugin.Catalog, env *pluginEnv, _ *datastore.Dispatcher, _ *prompt.Manager, channels *channel.Dispatcher, behaviors *behavior.Dispatcher) (loadedPlugins, error) {
	_, others, err := splitBackendPaths(cfg.Plugins.Enabled)
	if err != nil {
		return loadedPlugins{}, err
	}
	if err := catalog.Load(context.Background(), registry, others); err != nil {
		return loadedPlugins{}, err
	}
	adapters, err := plugin.Collect[channel.Adapter](registry, plugin.CategoryUserInteractions, plugin.SubcategoryInstantMessaging)
	if err != nil {
		return loadedPlugins{}, err
	}
	if err := channels.Load(adapters, cfg.Plugins.DefaultMessaging); err != nil {
		return loadedPlugins{}, err
	}
	items, err := plugin.Collect[behavior.Behavior](registry, plugin.CategoryUserInteractionsBehaviors, plugin.SubcategoryInstantMessaging)
	if err != nil {
		return loadedPlugins{}, err
	}
	if err := behaviors.Load(items, cfg.Plugins.DefaultBehavior); err != nil {
		return loadedPlugins{}, err
	}
	return loadedPlugins{registry: registry}, nil
}

func provideJanitor(log *slog.Logger, cfg config.Config, store *datastore.Dispatcher) *datastore.Janitor {
	return datastore.NewJanitor(log, store, datastore.JanitorConfig{
		Schedule:  cfg.Janitor.Schedule,
		Retention: cfg.Janitor.Retention,
	})
}

func provideHealthHandler(log *slog.Logger, store *datastore.Dispatcher, loaded loadedPlugins) *handlers.HealthHandler {
	checkers := []healthcheck.Checker{
		datastorechecker.NewChecker(log, store),
		pluginschecker.NewChecker(log, loaded.registry,
			plugin.CategoryBackend,
			plugin.CategoryUserInteractions,
			plugin.CategoryUserInteractionsBehaviors,
		),
	}
	return handlers.NewHealthHandler(log, checkers...)
}

func providePluginRoutesHandler(log *slog.Logger, loaded loadedPlugins) *handlers.PluginRoutesHandler {
	return handlers.NewPluginRoutesHandler(log, loaded.registry)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startPlugins(lc fx.Lifecycle, log *slog.Logger, loaded loadedPlugins, prompts *prompt.Manager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := loaded.registry.InitializeAll(ctx); err != nil {
				return err
			}
			if err := prompts.Initialize(ctx); err != nil {
				return err
			}
			log.Info("plugins initialized", slog.Any("categories", loaded.registry.Categories()))
			return nil
		},
		// Appended after the datastore hook, so it runs first on stop and
		// in-flight events still have their store.
		OnStop: func(ctx context.Context) error {
			return loaded.registry.StopAll(ctx)
		},
	})
}

func startJanitor(lc fx.Lifecycle, cfg config.Config, janitor *datastore.Janitor) {
	if !cfg.Janitor.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return janitor.Start() },
		OnStop:  func(ctx context.Context) error { janitor.Stop(ctx); return nil },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting chatrelay", slog.String("addr", srv.Addr()))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// closeStores releases backends that hold a connection.
func closeStores(stores []datastore.Store) error {
	var errs []error
	for _, store := range stores {
		holder, ok := store.(interface{ Backend() datastore.Backend })
		if !ok {
			continue
		}
		switch b := holder.Backend().(type) {
		case interface{ Close() error }:
			errs = append(errs, b.Close())
		case interface{ Close() }:
			b.Close()
		}
	}
	return errors.Join(errs...)
}
