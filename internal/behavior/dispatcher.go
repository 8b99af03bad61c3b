// Package behavior routes accepted chat events to the behavior plugin that
// decides how the bot reacts.
package behavior

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/plugin"
)

// ErrNotLoaded is returned by a Dispatcher used before Load.
var ErrNotLoaded = errors.New("behavior dispatcher: behaviors not loaded")

// Behavior is the contract of a user-interactions behavior plugin.
type Behavior interface {
	plugin.Plugin
	ProcessIncomingNotificationData(ctx context.Context, event channel.NotificationEvent) error
}

// Dispatcher selects a behavior by name. Like channel.Dispatcher it is
// created empty and filled once by Load.
type Dispatcher struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	plugins *plugin.Dispatcher[Behavior]
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{logger: log}
}

// Load installs behaviors. The behavior named defaultName becomes the
// default.
func (d *Dispatcher) Load(behaviors []Behavior, defaultName string) error {
	pd, err := plugin.NewDispatcher(d.logger, "instant_messaging_behavior", behaviors, defaultName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.plugins = pd
	d.mu.Unlock()
	return nil
}

// Plugin returns the behavior called name, or the default behavior. It
// returns nil before Load.
func (d *Dispatcher) Plugin(name string) Behavior {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.plugins == nil {
		return nil
	}
	return d.plugins.Resolve(name)
}

// Behaviors returns every owned behavior.
func (d *Dispatcher) Behaviors() []Behavior {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.plugins == nil {
		return nil
	}
	return d.plugins.Plugins()
}

// Process hands event, tagged with origin, to the behavior called
// pluginName. Errors from the behavior are returned unchanged apart from
// wrapping.
func (d *Dispatcher) Process(ctx context.Context, event channel.NotificationEvent, origin, pluginName string) error {
	b := d.Plugin(pluginName)
	if b == nil {
		return ErrNotLoaded
	}
	if origin != "" {
		event.Origin = origin
	}
	if err := b.ProcessIncomingNotificationData(ctx, event); err != nil {
		return fmt.Errorf("%s: %w", b.Name(), err)
	}
	return nil
}
