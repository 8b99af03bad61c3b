package datastore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Initializer is implemented by backends that need set-up before use, such as
// creating directories or running migrations.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// GatewayStore implements Store on top of a Backend. Read-modify-write
// helpers are serialized per store so concurrent requests do not lose
// updates on the same file.
type GatewayStore struct {
	name       string
	containers Containers
	backend    Backend
	now        func() time.Time

	mu sync.Mutex
}

// NewStore wraps backend as the store plugin called name.
func NewStore(name string, containers Containers, backend Backend) *GatewayStore {
	return &GatewayStore{
		name:       name,
		containers: containers.WithDefaults(),
		backend:    backend,
		now:        time.Now,
	}
}

func (s *GatewayStore) Name() string { return s.name }

// Initialize prepares the backend.
func (s *GatewayStore) Initialize(ctx context.Context) error {
	if init, ok := s.backend.(Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize datastore %s: %w", s.name, err)
		}
	}
	return nil
}

// Backend returns the wrapped backend.
func (s *GatewayStore) Backend() Backend { return s.backend }

func (s *GatewayStore) Sessions() string    { return s.containers.Sessions }
func (s *GatewayStore) Messages() string    { return s.containers.Messages }
func (s *GatewayStore) Feedbacks() string   { return s.containers.Feedbacks }
func (s *GatewayStore) Concatenate() string { return s.containers.Concatenate }
func (s *GatewayStore) Prompts() string     { return s.containers.Prompts }
func (s *GatewayStore) Costs() string       { return s.containers.Costs }
func (s *GatewayStore) Processing() string  { return s.containers.Processing }
func (s *GatewayStore) Abort() string       { return s.containers.Abort }
func (s *GatewayStore) Vectors() string     { return s.containers.Vectors }

func (s *GatewayStore) AppendData(ctx context.Context, container, name, data string) error {
	if err := validateKey(container, name); err != nil {
		return err
	}
	return s.backend.Append(ctx, container, name, data)
}

func (s *GatewayStore) ReadDataContent(ctx context.Context, container, name string) (string, bool, error) {
	if err := validateKey(container, name); err != nil {
		return "", false, err
	}
	return s.backend.Read(ctx, container, name)
}

func (s *GatewayStore) WriteDataContent(ctx context.Context, container, name, data string) error {
	if err := validateKey(container, name); err != nil {
		return err
	}
	return s.backend.Write(ctx, container, name, data)
}

func (s *GatewayStore) WriteDataContentIfAbsent(ctx context.Context, container, name, data string) (bool, error) {
	if err := validateKey(container, name); err != nil {
		return false, err
	}
	return s.backend.WriteIfAbsent(ctx, container, name, data)
}

func (s *GatewayStore) RemoveDataContent(ctx context.Context, container, name string) error {
	if err := validateKey(container, name); err != nil {
		return err
	}
	return s.backend.Remove(ctx, container, name)
}

func (s *GatewayStore) ListContainerFiles(ctx context.Context, container string) ([]string, error) {
	if err := validateKey(container, "_"); err != nil {
		return nil, err
	}
	return s.backend.List(ctx, container)
}

// StoreUnmentionedMessages queues a message seen in a thread without a bot
// mention so it can be replayed once the bot is addressed.
func (s *GatewayStore) StoreUnmentionedMessages(ctx context.Context, channelID, threadID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := ThreadFileName(channelID, threadID)
	var queued []string
	if err := s.readJSON(ctx, s.containers.Messages, name, &queued); err != nil {
		return err
	}
	queued = append(queued, message)
	return s.writeJSON(ctx, s.containers.Messages, name, queued)
}

// RetrieveUnmentionedMessages drains the queued messages of a thread.
func (s *GatewayStore) RetrieveUnmentionedMessages(ctx context.Context, channelID, threadID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := ThreadFileName(channelID, threadID)
	var queued []string
	if err := s.readJSON(ctx, s.containers.Messages, name, &queued); err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}
	if err := s.backend.Remove(ctx, s.containers.Messages, name); err != nil {
		return nil, fmt.Errorf("drain unmentioned messages: %w", err)
	}
	return queued, nil
}

// UpdatePricing adds pricing to the stored totals and returns the new totals.
func (s *GatewayStore) UpdatePricing(ctx context.Context, container, name string, pricing Pricing) (Pricing, error) {
	if err := validateKey(container, name); err != nil {
		return Pricing{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var current Pricing
	if err := s.readJSON(ctx, container, name, &current); err != nil {
		return Pricing{}, err
	}
	total := current.Add(pricing)
	if err := s.writeJSON(ctx, container, name, total); err != nil {
		return Pricing{}, err
	}
	return total, nil
}

// UpdatePromptSystemMessage replaces the system turn of a thread session, or
// inserts one at the start when the session has none.
func (s *GatewayStore) UpdatePromptSystemMessage(ctx context.Context, channelID, threadID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := ThreadFileName(channelID, threadID)
	var entries []SessionEntry
	if err := s.readJSON(ctx, s.containers.Sessions, name, &entries); err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].Role == "system" {
			entries[i].Content = message
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append([]SessionEntry{{Role: "system", Content: message, Timestamp: s.stamp()}}, entries...)
	}
	return s.writeJSON(ctx, s.containers.Sessions, name, entries)
}

// UpdateSession appends one turn to a session file.
func (s *GatewayStore) UpdateSession(ctx context.Context, container, name, role, content string) error {
	if err := validateKey(container, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []SessionEntry
	if err := s.readJSON(ctx, container, name, &entries); err != nil {
		return err
	}
	entries = append(entries, SessionEntry{Role: role, Content: content, Timestamp: s.stamp()})
	return s.writeJSON(ctx, container, name, entries)
}

func (s *GatewayStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *GatewayStore) readJSON(ctx context.Context, container, name string, out any) error {
	raw, ok, err := s.backend.Read(ctx, container, name)
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", container, name, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", container, name, err)
	}
	return nil
}

func (s *GatewayStore) writeJSON(ctx context.Context, container, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", container, name, err)
	}
	if err := s.backend.Write(ctx, container, name, string(data)); err != nil {
		return fmt.Errorf("write %s/%s: %w", container, name, err)
	}
	return nil
}

// validateKey rejects names that could escape a container on path-based
// backends. The same rules apply everywhere so data stays portable.
func validateKey(container, name string) error {
	for _, part := range []string{container, name} {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidKey)
		}
		if part == "." || part == ".." || strings.ContainsAny(part, `/\`) || strings.ContainsRune(part, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, part)
		}
	}
	return nil
}
