package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/chatrelay/chatrelay/internal/channel"
)

const (
	refLinkLabel     = "[ref msg link]"
	refExcerptLength = 300
)

// Payload is one chat.postMessage call.
type Payload struct {
	Channel  string
	ThreadTS string
	Title    string
	// Text is the notification fallback for clients that do not render
	// blocks.
	Text   string
	Blocks []slack.Block
}

func (p Payload) options() []slack.MsgOption {
	opts := []slack.MsgOption{
		slack.MsgOptionText(p.Text, false),
		slack.MsgOptionBlocks(p.Blocks...),
	}
	if p.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(p.ThreadTS))
	}
	return opts
}

// SplitMessage cuts text into contiguous chunks of at most size characters.
// Empty text yields no chunks.
func SplitMessage(text string, size int) []string {
	if text == "" {
		return []string{}
	}
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// addReferenceMessage prepends a link to the message event answers, with an
// excerpt of it. It reports whether the reference was added.
func (a *Adapter) addReferenceMessage(ctx context.Context, event channel.NotificationEvent, blocks []string) ([]string, bool) {
	permalink, text, err := a.GetMessagePermalinkAndText(ctx, event.ChannelID, event.ResponseID)
	if err != nil || permalink == "" {
		a.logger.Warn("reference message unavailable", slog.String("channel", event.ChannelID), slog.String("ts", event.ResponseID), slog.Any("error", err))
		return blocks, false
	}
	ref := "<" + permalink + "|" + refLinkLabel + ">"
	if excerpt := quoteExcerpt(text); excerpt != "" {
		ref += "\n" + excerpt
	}
	return append([]string{ref}, blocks...), true
}

func quoteExcerpt(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if runes := []rune(text); len(runes) > refExcerptLength {
		text = string(runes[:refExcerptLength]) + "..."
	}
	return "> " + strings.ReplaceAll(text, "\n", "\n> ")
}

// constructPayload formats one chunk. The title goes on the first chunk,
// or on every chunk of a new message.
func (a *Adapter) constructPayload(channelID, threadTS, content string, messageType channel.MessageType, index int, title string, isNewMessage bool) (Payload, error) {
	blocks, err := a.formatter.Format(content, messageType)
	if err != nil {
		return Payload{}, err
	}
	p := Payload{
		Channel:  channelID,
		ThreadTS: threadTS,
		Text:     content,
	}
	if title != "" && (index == 0 || isNewMessage) {
		p.Title = title
		blocks = append([]slack.Block{headerBlock(title)}, blocks...)
	}
	p.Blocks = blocks
	return p, nil
}

// SendMessage posts message in the thread of event, split to the configured
// maximum length. An internal message goes to the internal channel thread
// when one can be found.
func (a *Adapter) SendMessage(ctx context.Context, message string, event channel.NotificationEvent, messageType channel.MessageType, opts channel.SendOptions) error {
	if !messageType.Valid() {
		return fmt.Errorf("slack send: %w: %q", channel.ErrUnsupportedMessageType, messageType)
	}
	chunks := SplitMessage(message, a.cfg.MaxMessageLength)
	if len(chunks) == 0 {
		return nil
	}
	refAdded := false
	if opts.ShowRef {
		chunks, refAdded = a.addReferenceMessage(ctx, event, chunks)
	}
	working := event.Clone()
	if opts.IsInternal {
		a.handleInternalMessage(ctx, event, &working, opts.InternalThreadID)
	}
	for i, chunk := range chunks {
		chunkType := messageType
		if refAdded && i == 0 {
			chunkType = channel.MessageTypeText
		}
		p, err := a.constructPayload(working.ChannelID, working.ThreadID, chunk, chunkType, i, opts.Title, opts.IsNewMessage)
		if err != nil {
			return fmt.Errorf("slack send: %w", err)
		}
		if _, _, err := a.api.PostMessageContext(ctx, p.Channel, p.options()...); err != nil {
			a.logger.Error("slack post message failed",
				slog.String("channel", p.Channel), slog.String("thread", p.ThreadTS),
				slog.Int("chunk", i), slog.Any("error", err))
			return fmt.Errorf("slack post message: %w", err)
		}
	}
	return nil
}

// AddReaction adds reaction to the message of event.
func (a *Adapter) AddReaction(ctx context.Context, event channel.NotificationEvent, reaction string) error {
	if err := a.api.AddReactionContext(ctx, reaction, slack.NewRefToMessage(event.ChannelID, event.Timestamp)); err != nil {
		a.logger.Error("slack add reaction failed", slog.String("reaction", reaction), slog.String("channel", event.ChannelID), slog.Any("error", err))
		return fmt.Errorf("slack add reaction: %w", err)
	}
	return nil
}

// RemoveReaction removes reaction from the message of event.
func (a *Adapter) RemoveReaction(ctx context.Context, event channel.NotificationEvent, reaction string) error {
	if err := a.api.RemoveReactionContext(ctx, reaction, slack.NewRefToMessage(event.ChannelID, event.Timestamp)); err != nil {
		a.logger.Error("slack remove reaction failed", slog.String("reaction", reaction), slog.String("channel", event.ChannelID), slog.Any("error", err))
		return fmt.Errorf("slack remove reaction: %w", err)
	}
	return nil
}

// UploadFile shares content in the thread of event, or in the internal
// channel thread for internal uploads.
func (a *Adapter) UploadFile(ctx context.Context, event channel.NotificationEvent, content []byte, filename, title string, isInternal bool) error {
	if len(content) == 0 {
		return errors.New("slack upload: empty file")
	}
	if strings.TrimSpace(filename) == "" {
		return errors.New("slack upload: filename is required")
	}
	working := event.Clone()
	if isInternal {
		a.handleInternalChannel(ctx, event, &working)
	}
	_, err := a.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:          bytes.NewReader(content),
		FileSize:        len(content),
		Filename:        filename,
		Title:           title,
		Channel:         working.ChannelID,
		ThreadTimestamp: working.ThreadID,
	})
	if err != nil {
		a.logger.Error("slack file upload failed", slog.String("file", filename), slog.String("channel", working.ChannelID), slog.Any("error", err))
		return fmt.Errorf("slack upload: %w", err)
	}
	return nil
}
