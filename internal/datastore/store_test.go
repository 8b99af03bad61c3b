package datastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/datastore/providers/memory"
)

func newTestStore(t *testing.T) *GatewayStore {
	t.Helper()
	s := NewStore("memory", Containers{Prompts: "custom_prompts"}, memory.New())
	s.now = func() time.Time { return time.Date(2024, 6, 10, 6, 13, 20, 0, time.UTC) }
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func TestGatewayStore_Containers(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	assert.Equal(t, "memory", s.Name())
	assert.Equal(t, "custom_prompts", s.Prompts())
	assert.Equal(t, "processing", s.Processing())
	assert.Equal(t, "sessions", s.Sessions())
	assert.Equal(t, "vectors", s.Vectors())
}

func TestGatewayStore_RejectsInvalidKeys(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	err := s.WriteDataContent(ctx, "sessions", "../escape.txt", "x")
	assert.True(t, errors.Is(err, ErrInvalidKey))
	_, _, err = s.ReadDataContent(ctx, "", "x.txt")
	assert.True(t, errors.Is(err, ErrInvalidKey))
	_, err = s.ListContainerFiles(ctx, "a/b")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestGatewayStore_UnmentionedMessages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.RetrieveUnmentionedMessages(ctx, "C1", "100.1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.StoreUnmentionedMessages(ctx, "C1", "100.1", "first"))
	require.NoError(t, s.StoreUnmentionedMessages(ctx, "C1", "100.1", "second"))
	require.NoError(t, s.StoreUnmentionedMessages(ctx, "C1", "200.1", "other thread"))

	got, err = s.RetrieveUnmentionedMessages(ctx, "C1", "100.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)

	got, err = s.RetrieveUnmentionedMessages(ctx, "C1", "100.1")
	require.NoError(t, err)
	assert.Empty(t, got, "messages are drained on retrieval")

	got, err = s.RetrieveUnmentionedMessages(ctx, "C1", "200.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"other thread"}, got)
}

func TestGatewayStore_UpdatePricing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdatePricing(ctx, s.Costs(), "C1-1.txt", Pricing{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, InputCost: 0.5, OutputCost: 0.25, TotalCost: 0.75})
	require.NoError(t, err)
	total, err := s.UpdatePricing(ctx, s.Costs(), "C1-1.txt", Pricing{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3, InputCost: 0.5, OutputCost: 0.25, TotalCost: 0.75})
	require.NoError(t, err)

	assert.Equal(t, 11, total.PromptTokens)
	assert.Equal(t, 7, total.CompletionTokens)
	assert.Equal(t, 18, total.TotalTokens)
	assert.InDelta(t, 1.5, total.TotalCost, 1e-9)

	raw, ok, err := s.ReadDataContent(ctx, s.Costs(), "C1-1.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"total_tokens":18`)
}

func TestGatewayStore_UpdateSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	name := ThreadFileName("C1", "100.1")

	require.NoError(t, s.UpdateSession(ctx, s.Sessions(), name, "user", "hello"))
	require.NoError(t, s.UpdateSession(ctx, s.Sessions(), name, "assistant", "hi"))
	require.NoError(t, s.UpdatePromptSystemMessage(ctx, "C1", "100.1", "be brief"))
	require.NoError(t, s.UpdatePromptSystemMessage(ctx, "C1", "100.1", "be briefer"))

	var entries []SessionEntry
	require.NoError(t, s.readJSON(ctx, s.Sessions(), name, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, SessionEntry{Role: "system", Content: "be briefer", Timestamp: "2024-06-10T06:13:20Z"}, entries[0])
	assert.Equal(t, "user", entries[1].Role)
	assert.Equal(t, "hi", entries[2].Content)
}

func TestGatewayStore_WriteIfAbsent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.WriteDataContentIfAbsent(ctx, s.Processing(), "C1-1.txt", "now")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.WriteDataContentIfAbsent(ctx, s.Processing(), "C1-1.txt", "later")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestContainers_WithDefaults(t *testing.T) {
	t.Parallel()
	c := Containers{Sessions: "s"}.WithDefaults()
	assert.Equal(t, "s", c.Sessions)
	assert.Equal(t, "abort", c.Abort)
	assert.Equal(t, DefaultContainers().Feedbacks, c.Feedbacks)
}
