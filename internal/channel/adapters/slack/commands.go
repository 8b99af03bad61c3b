package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/chatrelay/chatrelay/internal/channel"
)

const (
	commandListPrompt = "/listprompt"
	commandSetPrompt  = "/setprompt"
)

// handleSlashCommand runs a slash command. Unknown commands do nothing.
func (a *Adapter) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) error {
	event := channel.NotificationEvent{
		ChannelID: cmd.ChannelID,
		UserID:    cmd.UserID,
		UserName:  cmd.UserName,
		Text:      cmd.Text,
		Origin:    a.Name(),
	}
	switch strings.ToLower(strings.TrimSpace(cmd.Command)) {
	case commandListPrompt:
		return a.listPrompts(ctx, event)
	case commandSetPrompt:
		return a.setPrompt(ctx, event, cmd.Text)
	default:
		a.logger.Debug("unknown slash command", slog.String("command", cmd.Command))
		return nil
	}
}

func (a *Adapter) listPrompts(ctx context.Context, event channel.NotificationEvent) error {
	files, err := a.store.ListContainerFiles(ctx, a.store.Prompts())
	if err != nil {
		return fmt.Errorf("list prompts: %w", err)
	}
	var b strings.Builder
	if len(files) == 0 {
		b.WriteString("No prompts found.")
	} else {
		b.WriteString("Available prompts:")
		for _, f := range files {
			b.WriteString("\n• ")
			b.WriteString(strings.TrimSuffix(f, ".txt"))
		}
	}
	return a.SendMessage(ctx, b.String(), event, channel.MessageTypeText, channel.SendOptions{})
}

// setPrompt handles "<name> <content...>".
func (a *Adapter) setPrompt(ctx context.Context, event channel.NotificationEvent, args string) error {
	name, content, ok := strings.Cut(strings.TrimSpace(args), " ")
	content = strings.TrimSpace(content)
	if !ok || name == "" || content == "" {
		return a.SendMessage(ctx, "Usage: "+commandSetPrompt+" <prompt_name> <new content>", event, channel.MessageTypeText, channel.SendOptions{})
	}
	file := name + ".txt"
	previous, found, err := a.store.ReadDataContent(ctx, a.store.Prompts(), file)
	if err != nil {
		return fmt.Errorf("read prompt %s: %w", name, err)
	}
	if err := a.store.WriteDataContent(ctx, a.store.Prompts(), file, content); err != nil {
		return fmt.Errorf("write prompt %s: %w", name, err)
	}
	a.logger.Info("prompt updated", slog.String("prompt", name), slog.String("user", event.UserID))
	msg := fmt.Sprintf("Prompt %s updated.", name)
	if found {
		msg += "\nPrevious value:\n" + previous
	}
	return a.SendMessage(ctx, msg, event, channel.MessageTypeText, channel.SendOptions{})
}
