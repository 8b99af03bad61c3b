package slack

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// API is the subset of the Slack Web API used by the adapter. *slack.Client
// satisfies it.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	RemoveReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	GetPermalinkContext(ctx context.Context, params *slack.PermalinkParameters) (string, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

var _ API = (*slack.Client)(nil)

// NewClient builds a Web API client for cfg.
func NewClient(cfg Config) *slack.Client {
	var opts []slack.Option
	if u := strings.TrimSpace(cfg.APIURL); u != "" {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		opts = append(opts, slack.OptionAPIURL(u))
	}
	return slack.New(cfg.BotToken, opts...)
}

// Clock abstracts time so the redirection poll can be tested without delay.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SearchMessageInThread looks in the recent history of channelID for a
// message containing token and returns the thread it belongs to.
func (a *Adapter) SearchMessageInThread(ctx context.Context, channelID, token string) (string, bool, error) {
	if strings.TrimSpace(token) == "" {
		return "", false, nil
	}
	resp, err := a.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     100,
	})
	if err != nil {
		return "", false, err
	}
	for _, msg := range resp.Messages {
		if !strings.Contains(msg.Text, token) {
			continue
		}
		if msg.ThreadTimestamp != "" {
			return msg.ThreadTimestamp, true, nil
		}
		return msg.Timestamp, true, nil
	}
	return "", false, nil
}

// GetMessagePermalinkAndText returns the permalink and text of a message.
func (a *Adapter) GetMessagePermalinkAndText(ctx context.Context, channelID, ts string) (string, string, error) {
	permalink, err := a.api.GetPermalinkContext(ctx, &slack.PermalinkParameters{Channel: channelID, Ts: ts})
	if err != nil {
		return "", "", err
	}
	msgs, _, _, err := a.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return permalink, "", err
	}
	for _, msg := range msgs {
		if msg.Timestamp == ts {
			return permalink, msg.Text, nil
		}
	}
	if len(msgs) > 0 {
		return permalink, msgs[0].Text, nil
	}
	return permalink, "", nil
}

// lookupUser resolves display name and email. Failures are logged and
// yield empty values.
func (a *Adapter) lookupUser(ctx context.Context, userID string) (string, string) {
	if userID == "" {
		return "", ""
	}
	user, err := a.api.GetUserInfoContext(ctx, userID)
	if err != nil || user == nil {
		a.logger.Warn("slack user lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		return "", ""
	}
	name := strings.TrimSpace(user.RealName)
	if name == "" {
		name = strings.TrimSpace(user.Profile.RealName)
	}
	if name == "" {
		name = user.Name
	}
	return name, user.Profile.Email
}
