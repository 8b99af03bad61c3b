package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/slack-go/slack/slackevents"

	"github.com/chatrelay/chatrelay/internal/channel"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const convertedTimestampLayout = "2006-01-02 15:04:05"

// eventEnvelope is the outer Events API payload.
type eventEnvelope struct {
	Token     string              `json:"token"`
	TeamID    string              `json:"team_id"`
	Type      string              `json:"type"`
	Challenge string              `json:"challenge"`
	EventID   string              `json:"event_id"`
	Event     jsoniter.RawMessage `json:"event"`
}

// decodeEnvelope parses body. The inner event is nil for payloads without
// one, such as the url_verification handshake.
func decodeEnvelope(body []byte) (eventEnvelope, *slackevents.MessageEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, nil, fmt.Errorf("decode slack envelope: %w", err)
	}
	if len(env.Event) == 0 || string(env.Event) == "null" {
		return env, nil, nil
	}
	var ev slackevents.MessageEvent
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		return env, nil, fmt.Errorf("decode slack event: %w", err)
	}
	return env, &ev, nil
}

// processEventData runs the inbound pipeline for one event. Rejections are
// not errors; failures after acceptance are logged and returned.
func (a *Adapter) processEventData(ctx context.Context, headers http.Header, body []byte, ev *slackevents.MessageEvent) error {
	if !a.validateRequest(ctx, headers, body, ev) {
		a.logger.Debug("Request discarded")
		return nil
	}
	return a.handleValidRequest(ctx, ev)
}

func (a *Adapter) handleValidRequest(ctx context.Context, ev *slackevents.MessageEvent) error {
	if err := a.processEventByType(ctx, ev); err != nil {
		a.logger.Error("An error occurred while processing user input: "+err.Error(),
			slog.String("channel", ev.Channel), slog.String("ts", ev.TimeStamp))
		return err
	}
	return nil
}

// processEventByType claims the event and hands it to the behavior
// dispatcher. Losing the claim means another delivery owns the event.
func (a *Adapter) processEventByType(ctx context.Context, ev *slackevents.MessageEvent) error {
	created, err := a.claimMarker(ctx, ev.Channel, ev.TimeStamp)
	if err != nil {
		return fmt.Errorf("write processing marker: %w", err)
	}
	if !created {
		a.logger.Info("duplicate delivery, event already claimed", slog.String("channel", ev.Channel), slog.String("ts", ev.TimeStamp))
		return nil
	}
	event := a.buildNotificationEvent(ctx, ev)
	if err := a.behaviors.Process(ctx, event, a.Name(), a.cfg.BehaviorPlugin); err != nil {
		return fmt.Errorf("behavior %q: %w", a.cfg.BehaviorPlugin, err)
	}
	return nil
}

// buildNotificationEvent normalizes a Slack message event.
func (a *Adapter) buildNotificationEvent(ctx context.Context, ev *slackevents.MessageEvent) channel.NotificationEvent {
	threadID := ev.ThreadTimeStamp
	label := channel.EventLabelMessage
	if threadID == "" {
		threadID = ev.TimeStamp
	} else if threadID != ev.TimeStamp {
		label = channel.EventLabelThreadMessage
	}
	converted := ""
	if sent, ok := parseSlackTS(ev.TimeStamp); ok {
		converted = sent.UTC().Format(convertedTimestampLayout)
	}
	name, email := a.lookupUser(ctx, ev.User)
	event := channel.NotificationEvent{
		Timestamp:          ev.TimeStamp,
		ConvertedTimestamp: converted,
		EventLabel:         label,
		ChannelID:          ev.Channel,
		ThreadID:           threadID,
		ResponseID:         ev.TimeStamp,
		UserName:           name,
		UserEmail:          email,
		UserID:             ev.User,
		IsMention:          strings.Contains(ev.Text, "<@"+a.cfg.BotUserID+">"),
		Text:               ev.Text,
		Origin:             a.Name(),
	}
	if ev.Message != nil {
		for _, f := range ev.Message.Files {
			event.Files = append(event.Files, channel.File{
				ID:       f.ID,
				Name:     f.Name,
				MimeType: f.Mimetype,
				URL:      f.URLPrivate,
				Size:     f.Size,
			})
		}
	}
	return event
}
