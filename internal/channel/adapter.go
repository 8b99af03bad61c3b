package channel

import (
	"context"

	"github.com/chatrelay/chatrelay/internal/plugin"
)

// Adapter is the contract of an instant-messaging plugin.
type Adapter interface {
	plugin.Plugin
	// SendMessage delivers message in the conversation of event.
	SendMessage(ctx context.Context, message string, event NotificationEvent, messageType MessageType, opts SendOptions) error
	// AddReaction adds an emoji reaction to the message identified by event.
	AddReaction(ctx context.Context, event NotificationEvent, reaction string) error
	RemoveReaction(ctx context.Context, event NotificationEvent, reaction string) error
	// UploadFile shares content as a file in the conversation of event.
	UploadFile(ctx context.Context, event NotificationEvent, content []byte, filename, title string, isInternal bool) error
	// FormatTriggerGenAIMessage renders text as a message addressed to the bot.
	FormatTriggerGenAIMessage(text string) string
}
