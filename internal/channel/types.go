package channel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedMessageType is returned before any network call when an
// outbound message carries a type the adapter cannot format.
var ErrUnsupportedMessageType = errors.New("unsupported message type")

// MessageType selects how outbound content is rendered.
type MessageType string

const (
	MessageTypeText      MessageType = "text"
	MessageTypeImage     MessageType = "image"
	MessageTypeComment   MessageType = "comment"
	MessageTypeFile      MessageType = "file"
	MessageTypeCard      MessageType = "card"
	MessageTypeCustom    MessageType = "custom"
	MessageTypeCodeblock MessageType = "codeblock"
)

// ParseMessageType normalizes raw and checks it names a known type.
func ParseMessageType(raw string) (MessageType, error) {
	t := MessageType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMessageType, raw)
	}
	return t, nil
}

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeComment, MessageTypeFile,
		MessageTypeCard, MessageTypeCustom, MessageTypeCodeblock:
		return true
	}
	return false
}

// Event labels.
const (
	EventLabelMessage       = "message"
	EventLabelThreadMessage = "thread_message"
)

// File describes a file shared along with an inbound message.
type File struct {
	ID       string
	Name     string
	MimeType string
	URL      string
	Size     int
}

// NotificationEvent is the normalized, platform-agnostic form of an inbound
// chat event. It is a value: outbound redirection works on a Clone and keeps
// the original for fallback.
type NotificationEvent struct {
	// Timestamp is the raw platform timestamp, e.g. "1718000000.000100".
	Timestamp          string
	ConvertedTimestamp string
	EventLabel         string
	ChannelID          string
	// ThreadID is the thread root timestamp. It equals Timestamp for a
	// root message.
	ThreadID   string
	ResponseID string
	UserName   string
	UserEmail  string
	UserID     string
	IsMention  bool
	Text       string
	// Origin is the name of the messaging plugin that produced the event.
	Origin string
	Files  []File
}

// Clone returns a deep copy of e.
func (e NotificationEvent) Clone() NotificationEvent {
	out := e
	if e.Files != nil {
		out.Files = append([]File(nil), e.Files...)
	}
	return out
}

// SendOptions tunes SendMessage.
type SendOptions struct {
	Title string
	// IsInternal redirects the message to the internal channel when one is
	// configured.
	IsInternal bool
	// ShowRef prepends a link to the originating message.
	ShowRef bool
	// IsNewMessage forces the title onto every chunk.
	IsNewMessage bool
	// InternalThreadID is a known thread in the internal channel. When set
	// the thread search is skipped.
	InternalThreadID string
}
