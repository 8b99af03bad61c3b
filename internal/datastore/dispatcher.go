package datastore

import (
	"context"
	"log/slog"

	"github.com/chatrelay/chatrelay/internal/plugin"
)

// Dispatcher routes Store calls to the default datastore plugin. Named
// backends are reached through Plugin.
type Dispatcher struct {
	plugins *plugin.Dispatcher[Store]
}

// NewDispatcher builds a Dispatcher over stores.
func NewDispatcher(log *slog.Logger, stores []Store, defaultName string) (*Dispatcher, error) {
	d, err := plugin.NewDispatcher(log, "datastore", stores, defaultName)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{plugins: d}, nil
}

// Plugin returns the store called name, or the default store.
func (d *Dispatcher) Plugin(name string) Store { return d.plugins.Resolve(name) }

// Stores returns every owned store.
func (d *Dispatcher) Stores() []Store { return d.plugins.Plugins() }

func (d *Dispatcher) def() Store { return d.plugins.Default() }

func (d *Dispatcher) Name() string { return d.def().Name() }

func (d *Dispatcher) Initialize(ctx context.Context) error { return nil }

func (d *Dispatcher) Sessions() string    { return d.def().Sessions() }
func (d *Dispatcher) Messages() string    { return d.def().Messages() }
func (d *Dispatcher) Feedbacks() string   { return d.def().Feedbacks() }
func (d *Dispatcher) Concatenate() string { return d.def().Concatenate() }
func (d *Dispatcher) Prompts() string     { return d.def().Prompts() }
func (d *Dispatcher) Costs() string       { return d.def().Costs() }
func (d *Dispatcher) Processing() string  { return d.def().Processing() }
func (d *Dispatcher) Abort() string       { return d.def().Abort() }
func (d *Dispatcher) Vectors() string     { return d.def().Vectors() }

func (d *Dispatcher) AppendData(ctx context.Context, container, name, data string) error {
	return d.def().AppendData(ctx, container, name, data)
}

func (d *Dispatcher) ReadDataContent(ctx context.Context, container, name string) (string, bool, error) {
	return d.def().ReadDataContent(ctx, container, name)
}

func (d *Dispatcher) WriteDataContent(ctx context.Context, container, name, data string) error {
	return d.def().WriteDataContent(ctx, container, name, data)
}

func (d *Dispatcher) WriteDataContentIfAbsent(ctx context.Context, container, name, data string) (bool, error) {
	return d.def().WriteDataContentIfAbsent(ctx, container, name, data)
}

func (d *Dispatcher) RemoveDataContent(ctx context.Context, container, name string) error {
	return d.def().RemoveDataContent(ctx, container, name)
}

func (d *Dispatcher) ListContainerFiles(ctx context.Context, container string) ([]string, error) {
	return d.def().ListContainerFiles(ctx, container)
}

func (d *Dispatcher) StoreUnmentionedMessages(ctx context.Context, channelID, threadID, message string) error {
	return d.def().StoreUnmentionedMessages(ctx, channelID, threadID, message)
}

func (d *Dispatcher) RetrieveUnmentionedMessages(ctx context.Context, channelID, threadID string) ([]string, error) {
	return d.def().RetrieveUnmentionedMessages(ctx, channelID, threadID)
}

func (d *Dispatcher) UpdatePricing(ctx context.Context, container, name string, pricing Pricing) (Pricing, error) {
	return d.def().UpdatePricing(ctx, container, name, pricing)
}

func (d *Dispatcher) UpdatePromptSystemMessage(ctx context.Context, channelID, threadID, message string) error {
	return d.def().UpdatePromptSystemMessage(ctx, channelID, threadID, message)
}

func (d *Dispatcher) UpdateSession(ctx context.Context, container, name, role, content string) error {
	return d.def().UpdateSession(ctx, container, name, role, content)
}
