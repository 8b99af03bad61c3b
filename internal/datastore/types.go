// Package datastore defines the storage gateway used by the gateway core:
// named containers of text files, plus the session, pricing and
// processing-marker helpers built on top of them.
package datastore

import (
	"context"
	"errors"

	"github.com/chatrelay/chatrelay/internal/plugin"
)

// ErrInvalidKey is returned when a container or file name is empty or would
// escape the backend's namespace.
var ErrInvalidKey = errors.New("invalid datastore key")

// Backend is the raw storage contract implemented by every provider.
type Backend interface {
	// Read returns the file content and whether it exists.
	Read(ctx context.Context, container, name string) (string, bool, error)
	Write(ctx context.Context, container, name, data string) error
	// WriteIfAbsent creates the file only when it does not exist yet and
	// reports whether this call created it.
	WriteIfAbsent(ctx context.Context, container, name, data string) (bool, error)
	Append(ctx context.Context, container, name, data string) error
	// Remove deletes the file. Removing a missing file is not an error.
	Remove(ctx context.Context, container, name string) error
	// List returns the file names of a container, sorted.
	List(ctx context.Context, container string) ([]string, error)
}

// Containers names the logical containers exposed by a store.
type Containers struct {
	Sessions    string `toml:"sessions" yaml:"sessions"`
	Messages    string `toml:"messages" yaml:"messages"`
	Feedbacks   string `toml:"feedbacks" yaml:"feedbacks"`
	Concatenate string `toml:"concatenate" yaml:"concatenate"`
	Prompts     string `toml:"prompts" yaml:"prompts"`
	Costs       string `toml:"costs" yaml:"costs"`
	Processing  string `toml:"processing" yaml:"processing"`
	Abort       string `toml:"abort" yaml:"abort"`
	Vectors     string `toml:"vectors" yaml:"vectors"`
}

// DefaultContainers returns the container names used when none are configured.
func DefaultContainers() Containers {
	return Containers{
		Sessions:    "sessions",
		Messages:    "messages",
		Feedbacks:   "feedbacks",
		Concatenate: "concatenate",
		Prompts:     "prompts",
		Costs:       "costs",
		Processing:  "processing",
		Abort:       "abort",
		Vectors:     "vectors",
	}
}

// WithDefaults fills empty names from DefaultContainers.
func (c Containers) WithDefaults() Containers {
	d := DefaultContainers()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&c.Sessions, d.Sessions)
	fill(&c.Messages, d.Messages)
	fill(&c.Feedbacks, d.Feedbacks)
	fill(&c.Concatenate, d.Concatenate)
	fill(&c.Prompts, d.Prompts)
	fill(&c.Costs, d.Costs)
	fill(&c.Processing, d.Processing)
	fill(&c.Abort, d.Abort)
	fill(&c.Vectors, d.Vectors)
	return c
}

// Pricing accumulates token usage and cost for one conversation.
type Pricing struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	InputCost        float64 `json:"input_cost"`
	OutputCost       float64 `json:"output_cost"`
	TotalCost        float64 `json:"total_cost"`
}

// Add returns the sum of p and other.
func (p Pricing) Add(other Pricing) Pricing {
	return Pricing{
		PromptTokens:     p.PromptTokens + other.PromptTokens,
		CompletionTokens: p.CompletionTokens + other.CompletionTokens,
		TotalTokens:      p.TotalTokens + other.TotalTokens,
		InputCost:        p.InputCost + other.InputCost,
		OutputCost:       p.OutputCost + other.OutputCost,
		TotalCost:        p.TotalCost + other.TotalCost,
	}
}

// SessionEntry is one turn of a stored conversation.
type SessionEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Store is the capability every internal-data-processing plugin offers.
type Store interface {
	plugin.Plugin

	Sessions() string
	Messages() string
	Feedbacks() string
	Concatenate() string
	Prompts() string
	Costs() string
	Processing() string
	Abort() string
	Vectors() string

	AppendData(ctx context.Context, container, name, data string) error
	ReadDataContent(ctx context.Context, container, name string) (string, bool, error)
	WriteDataContent(ctx context.Context, container, name, data string) error
	WriteDataContentIfAbsent(ctx context.Context, container, name, data string) (bool, error)
	RemoveDataContent(ctx context.Context, container, name string) error
	ListContainerFiles(ctx context.Context, container string) ([]string, error)

	StoreUnmentionedMessages(ctx context.Context, channelID, threadID, message string) error
	RetrieveUnmentionedMessages(ctx context.Context, channelID, threadID string) ([]string, error)
	UpdatePricing(ctx context.Context, container, name string, pricing Pricing) (Pricing, error)
	UpdatePromptSystemMessage(ctx context.Context, channelID, threadID, message string) error
	UpdateSession(ctx context.Context, container, name, role, content string) error
}

// ThreadFileName returns the file name used for per-thread records.
func ThreadFileName(channelID, threadID string) string {
	return channelID + "-" + threadID + ".txt"
}
