package slack

import (
	"context"
	"strings"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlashCommand_ListPromptEmpty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	err := env.adapter.handleSlashCommand(context.Background(), slack.SlashCommand{Command: "/listprompt", ChannelID: testChannel, UserID: "U1"})
	require.NoError(t, err)
	require.Len(t, env.api.posts, 1)
	assert.Equal(t, "No prompts found.", env.api.posts[0].text())
}

func TestSlashCommand_ListPromptSorted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.WriteDataContent(ctx, env.store.Prompts(), "sub_prompt.txt", "b"))
	require.NoError(t, env.store.WriteDataContent(ctx, env.store.Prompts(), "main_prompt.txt", "a"))

	require.NoError(t, env.adapter.handleSlashCommand(ctx, slack.SlashCommand{Command: "/listprompt", ChannelID: testChannel}))
	require.Len(t, env.api.posts, 1)
	assert.Equal(t, "Available prompts:\n• main_prompt\n• sub_prompt", env.api.posts[0].text())
}

func TestSlashCommand_SetPrompt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.WriteDataContent(ctx, env.store.Prompts(), "core_prompt.txt", "old rules"))

	err := env.adapter.handleSlashCommand(ctx, slack.SlashCommand{Command: "/setprompt", Text: "core_prompt be concise and kind", ChannelID: testChannel, UserID: "U1"})
	require.NoError(t, err)

	content, found, err := env.store.ReadDataContent(ctx, env.store.Prompts(), "core_prompt.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "be concise and kind", content)

	require.Len(t, env.api.posts, 1)
	msg := env.api.posts[0].text()
	assert.True(t, strings.HasPrefix(msg, "Prompt core_prompt updated."))
	assert.Contains(t, msg, "old rules")
}

func TestSlashCommand_SetPromptUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, nil)
	require.NoError(t, env.adapter.handleSlashCommand(ctx, slack.SlashCommand{Command: "/setprompt", Text: "core_prompt", ChannelID: testChannel}))

	files, err := env.store.ListContainerFiles(ctx, env.store.Prompts())
	require.NoError(t, err)
	assert.Empty(t, files)
	require.Len(t, env.api.posts, 1)
	assert.Contains(t, env.api.posts[0].text(), "Usage: /setprompt")
}

func TestSlashCommand_UnknownIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	require.NoError(t, env.adapter.handleSlashCommand(context.Background(), slack.SlashCommand{Command: "/deploy", Text: "prod", ChannelID: testChannel}))
	assert.Empty(t, env.api.posts)
}
