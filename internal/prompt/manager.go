// Package prompt loads the bot's prompts from the datastore.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chatrelay/chatrelay/internal/datastore"
)

// Config names the prompt files. Names are stored without the ".txt"
// extension.
type Config struct {
	CorePrompt string
	MainPrompt string
	// SubpromptsContainer holds per message type prompts. Empty means the
	// prompts container.
	SubpromptsContainer string
}

// Manager caches the core and main prompts and reads sub prompts on demand.
type Manager struct {
	logger *slog.Logger
	store  datastore.Store
	cfg    Config

	mu   sync.RWMutex
	core string
	main string
}

// NewManager creates a prompt manager backed by store.
func NewManager(log *slog.Logger, store datastore.Store, cfg Config) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		logger: log.With(slog.String("service", "prompt")),
		store:  store,
		cfg:    cfg,
	}
}

// Initialize loads the core and main prompts. Missing prompts are logged
// and left empty.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.Reload(ctx)
}

// Reload re-reads the core and main prompts.
func (m *Manager) Reload(ctx context.Context) error {
	core, err := m.read(ctx, m.store.Prompts(), m.cfg.CorePrompt)
	if err != nil {
		return fmt.Errorf("load core prompt: %w", err)
	}
	main, err := m.read(ctx, m.store.Prompts(), m.cfg.MainPrompt)
	if err != nil {
		return fmt.Errorf("load main prompt: %w", err)
	}
	m.mu.Lock()
	m.core, m.main = core, main
	m.mu.Unlock()
	return nil
}

// CorePrompt returns the cached core prompt.
func (m *Manager) CorePrompt() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.core
}

// MainPrompt returns the cached main prompt.
func (m *Manager) MainPrompt() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.main
}

// SystemPrompt joins the core and main prompts.
func (m *Manager) SystemPrompt() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	parts := make([]string, 0, 2)
	for _, p := range []string{m.core, m.main} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// SubPrompt returns the prompt for messageType, or "" when none exists.
func (m *Manager) SubPrompt(ctx context.Context, messageType string) (string, error) {
	container := m.cfg.SubpromptsContainer
	if container == "" {
		container = m.store.Prompts()
	}
	return m.read(ctx, container, messageType)
}

func (m *Manager) read(ctx context.Context, container, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	content, found, err := m.store.ReadDataContent(ctx, container, name+".txt")
	if err != nil {
		return "", err
	}
	if !found {
		m.logger.Warn("prompt not found", slog.String("container", container), slog.String("prompt", name))
		return "", nil
	}
	return content, nil
}
