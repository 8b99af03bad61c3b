package slack

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/chatrelay/chatrelay/internal/channel"
)

// Formatter renders outbound content as Block Kit blocks.
type Formatter interface {
	Format(content string, messageType channel.MessageType) ([]slack.Block, error)
}

// BlockFormatter is the default Formatter.
type BlockFormatter struct{}

func (BlockFormatter) Format(content string, messageType channel.MessageType) ([]slack.Block, error) {
	switch messageType {
	case channel.MessageTypeText, channel.MessageTypeCard, channel.MessageTypeCustom, channel.MessageTypeFile:
		return []slack.Block{markdownSection(content)}, nil
	case channel.MessageTypeComment:
		return []slack.Block{
			slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, content, false, false)),
		}, nil
	case channel.MessageTypeCodeblock:
		return []slack.Block{markdownSection("```" + strings.Trim(content, "\n") + "```")}, nil
	case channel.MessageTypeImage:
		url := strings.TrimSpace(content)
		return []slack.Block{
			slack.NewImageBlock(url, "image", "", nil),
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", channel.ErrUnsupportedMessageType, messageType)
}

func markdownSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

func headerBlock(title string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false))
}
