package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/chatrelay/chatrelay/internal/plugin"
)

// ErrNotLoaded is returned by a Dispatcher used before Load.
var ErrNotLoaded = errors.New("channel dispatcher: adapters not loaded")

// Dispatcher routes outbound calls to the messaging plugin that produced the
// event, falling back to the default plugin. It is created empty because
// adapters and behaviors refer to each other; Load fills it once at start-up.
type Dispatcher struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	plugins *plugin.Dispatcher[Adapter]
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{logger: log}
}

// Load installs adapters. The adapter named defaultName becomes the default.
func (d *Dispatcher) Load(adapters []Adapter, defaultName string) error {
	pd, err := plugin.NewDispatcher(d.logger, "instant_messaging", adapters, defaultName)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.plugins = pd
	d.mu.Unlock()
	return nil
}

// Plugin returns the adapter called name, or the default adapter. It
// returns nil before Load.
func (d *Dispatcher) Plugin(name string) Adapter {
	a, _ := d.resolve(name)
	return a
}

// Adapters returns every owned adapter.
func (d *Dispatcher) Adapters() []Adapter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.plugins == nil {
		return nil
	}
	return d.plugins.Plugins()
}

func (d *Dispatcher) resolve(name string) (Adapter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.plugins == nil {
		return nil, ErrNotLoaded
	}
	return d.plugins.Resolve(name), nil
}

func (d *Dispatcher) SendMessage(ctx context.Context, message string, event NotificationEvent, messageType MessageType, opts SendOptions) error {
	a, err := d.resolve(event.Origin)
	if err != nil {
		return err
	}
	return a.SendMessage(ctx, message, event, messageType, opts)
}

func (d *Dispatcher) AddReaction(ctx context.Context, event NotificationEvent, reaction string) error {
	a, err := d.resolve(event.Origin)
	if err != nil {
		return err
	}
	return a.AddReaction(ctx, event, reaction)
}

func (d *Dispatcher) RemoveReaction(ctx context.Context, event NotificationEvent, reaction string) error {
	a, err := d.resolve(event.Origin)
	if err != nil {
		return err
	}
	return a.RemoveReaction(ctx, event, reaction)
}

func (d *Dispatcher) UploadFile(ctx context.Context, event NotificationEvent, content []byte, filename, title string, isInternal bool) error {
	a, err := d.resolve(event.Origin)
	if err != nil {
		return err
	}
	return a.UploadFile(ctx, event, content, filename, title, isInternal)
}

// FormatTriggerGenAIMessage returns text unchanged before Load.
func (d *Dispatcher) FormatTriggerGenAIMessage(event NotificationEvent, text string) string {
	a, err := d.resolve(event.Origin)
	if err != nil {
		return text
	}
	return a.FormatTriggerGenAIMessage(text)
}
