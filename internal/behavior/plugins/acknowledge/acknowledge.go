// Package acknowledge is the default instant-messaging behavior. It keeps
// per-thread conversation records in the datastore and acknowledges every
// message addressed to the bot, without calling a generative model.
package acknowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/datastore"
)

// Name is the plugin name of the behavior.
const Name = "acknowledge"

const (
	reactionProcessing = "eyes"
	reactionDone       = "white_check_mark"
)

// Messenger is the outbound side the behavior needs. *channel.Dispatcher
// satisfies it.
type Messenger interface {
	SendMessage(ctx context.Context, message string, event channel.NotificationEvent, messageType channel.MessageType, opts channel.SendOptions) error
	AddReaction(ctx context.Context, event channel.NotificationEvent, reaction string) error
	RemoveReaction(ctx context.Context, event channel.NotificationEvent, reaction string) error
}

// SystemPrompter provides the prompt that opens every conversation.
type SystemPrompter interface {
	SystemPrompt() string
}

// Config tunes the behavior.
type Config struct {
	// RequireMentionNewMessage makes root messages without a mention count
	// as background context only.
	RequireMentionNewMessage bool
	// RequireMentionThreadMessage does the same for thread replies.
	RequireMentionThreadMessage bool
	// BreakKeyword pauses the bot in a thread; StartKeyword resumes it.
	BreakKeyword string
	StartKeyword string
}

// Behavior records conversations and acknowledges mentions.
type Behavior struct {
	logger   *slog.Logger
	cfg      Config
	store    datastore.Store
	out      Messenger
	prompter SystemPrompter
}

// New creates the behavior. prompter may be nil.
func New(log *slog.Logger, cfg Config, store datastore.Store, out Messenger, prompter SystemPrompter) *Behavior {
	if log == nil {
		log = slog.Default()
	}
	return &Behavior{
		logger:   log.With(slog.String("behavior", Name)),
		cfg:      cfg,
		store:    store,
		out:      out,
		prompter: prompter,
	}
}

func (b *Behavior) Name() string { return Name }

func (b *Behavior) Initialize(ctx context.Context) error {
	if b.store == nil || b.out == nil {
		return fmt.Errorf("%s behavior: datastore and messenger are required", Name)
	}
	return nil
}

// ProcessIncomingNotificationData handles one accepted event.
func (b *Behavior) ProcessIncomingNotificationData(ctx context.Context, event channel.NotificationEvent) error {
	thread := datastore.ThreadFileName(event.ChannelID, event.ThreadID)

	if handled, err := b.handleKeywords(ctx, event, thread); handled || err != nil {
		return err
	}
	_, paused, err := b.store.ReadDataContent(ctx, b.store.Abort(), thread)
	if err != nil {
		return fmt.Errorf("read abort flag: %w", err)
	}
	if paused {
		b.logger.Info("thread paused, message ignored", slog.String("thread", thread))
		return nil
	}

	if !b.addressed(event) {
		line := event.Text
		if event.UserName != "" {
			line = event.UserName + ": " + line
		}
		return b.store.StoreUnmentionedMessages(ctx, event.ChannelID, event.ThreadID, line)
	}

	if err := b.out.AddReaction(ctx, event, reactionProcessing); err != nil {
		b.logger.Warn("add reaction failed", slog.Any("error", err))
	}

	count, err := b.recordTurn(ctx, event, thread)
	if err != nil {
		return err
	}
	reply := "Message received."
	if count > 0 {
		reply = fmt.Sprintf("Message received, with %d earlier message(s) from this thread added to the conversation.", count)
	}
	if err := b.out.SendMessage(ctx, reply, event, channel.MessageTypeText, channel.SendOptions{}); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	if err := b.store.UpdateSession(ctx, b.store.Sessions(), thread, "assistant", reply); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if err := b.out.RemoveReaction(ctx, event, reactionProcessing); err != nil {
		b.logger.Warn("remove reaction failed", slog.Any("error", err))
	}
	if err := b.out.AddReaction(ctx, event, reactionDone); err != nil {
		b.logger.Warn("add reaction failed", slog.Any("error", err))
	}
	return nil
}

// addressed reports whether the event is meant for the bot.
func (b *Behavior) addressed(event channel.NotificationEvent) bool {
	if event.IsMention {
		return true
	}
	if event.EventLabel == channel.EventLabelThreadMessage {
		return !b.cfg.RequireMentionThreadMessage
	}
	return !b.cfg.RequireMentionNewMessage
}

// recordTurn appends the pending background messages and the event itself
// to the session, seeding a new session with the system prompt. It returns
// the number of background messages added.
func (b *Behavior) recordTurn(ctx context.Context, event channel.NotificationEvent, thread string) (int, error) {
	_, exists, err := b.store.ReadDataContent(ctx, b.store.Sessions(), thread)
	if err != nil {
		return 0, fmt.Errorf("read session: %w", err)
	}
	if !exists && b.prompter != nil {
		if sp := b.prompter.SystemPrompt(); sp != "" {
			if err := b.store.UpdatePromptSystemMessage(ctx, event.ChannelID, event.ThreadID, sp); err != nil {
				return 0, fmt.Errorf("seed system prompt: %w", err)
			}
		}
	}
	pending, err := b.store.RetrieveUnmentionedMessages(ctx, event.ChannelID, event.ThreadID)
	if err != nil {
		return 0, fmt.Errorf("retrieve unmentioned messages: %w", err)
	}
	for _, msg := range pending {
		if err := b.store.UpdateSession(ctx, b.store.Sessions(), thread, "user", msg); err != nil {
			return 0, fmt.Errorf("update session: %w", err)
		}
	}
	if err := b.store.UpdateSession(ctx, b.store.Sessions(), thread, "user", event.Text); err != nil {
		return 0, fmt.Errorf("update session: %w", err)
	}
	return len(pending), nil
}

// handleKeywords pauses or resumes the thread when the text is exactly a
// configured keyword.
func (b *Behavior) handleKeywords(ctx context.Context, event channel.NotificationEvent, thread string) (bool, error) {
	text := strings.TrimSpace(event.Text)
	switch {
	case b.cfg.BreakKeyword != "" && text == b.cfg.BreakKeyword:
		if err := b.store.WriteDataContent(ctx, b.store.Abort(), thread, event.Timestamp); err != nil {
			return true, fmt.Errorf("write abort flag: %w", err)
		}
		b.logger.Info("thread paused", slog.String("thread", thread))
		return true, b.out.SendMessage(ctx, "Paused. Send "+b.cfg.StartKeyword+" to resume.", event, channel.MessageTypeComment, channel.SendOptions{})
	case b.cfg.StartKeyword != "" && text == b.cfg.StartKeyword:
		if err := b.store.RemoveDataContent(ctx, b.store.Abort(), thread); err != nil {
			return true, fmt.Errorf("remove abort flag: %w", err)
		}
		b.logger.Info("thread resumed", slog.String("thread", thread))
		return true, b.out.SendMessage(ctx, "Resumed.", event, channel.MessageTypeComment, channel.SendOptions{})
	}
	return false, nil
}
