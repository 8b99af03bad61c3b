package slack

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack/slackevents"
)

// validateRequest runs every acceptance check in order. A false result is a
// rejection that has already been logged.
func (a *Adapter) validateRequest(ctx context.Context, headers http.Header, body []byte, ev *slackevents.MessageEvent) bool {
	if !validateHeaders(headers) {
		a.logger.Debug("missing slack signing headers")
		return false
	}
	if !ValidateSignature(a.cfg.SigningSecret, headers.Get(headerRequestTimestamp), body, headers.Get(headerSignature)) {
		a.logger.Debug("invalid slack request signature")
		return false
	}
	if a.isMessageTooOld(headers.Get(headerRequestTimestamp)) {
		a.logger.Info("request timestamp outside replay window", slog.String("ts", headers.Get(headerRequestTimestamp)))
		return false
	}
	if !a.validateEventData(ev) {
		return false
	}
	return a.validateProcessingStatus(ctx, ev)
}

// validateEventData checks type and subtype, then origin and channel of
// the event.
func (a *Adapter) validateEventData(ev *slackevents.MessageEvent) bool {
	if ev == nil {
		a.logger.Debug("event payload is empty")
		return false
	}
	if a.classifyEvent(ev.Type, ev.SubType) != eventProcess {
		return false
	}
	if ev.User == a.cfg.BotUserID {
		a.logger.Debug("ignoring message from the bot itself", slog.String("channel", ev.Channel))
		return false
	}
	if contains(a.cfg.AuthorizedChannels, ev.Channel) {
		return true
	}
	if a.cfg.FeedbackChannel != "" && ev.Channel == a.cfg.FeedbackChannel && ev.User == a.cfg.FeedbackBotID {
		return true
	}
	a.logger.Debug("channel is not authorized", slog.String("channel", ev.Channel), slog.String("user", ev.User))
	return false
}

// validateProcessingStatus rejects stale events and events that already
// carry a processing marker.
func (a *Adapter) validateProcessingStatus(ctx context.Context, ev *slackevents.MessageEvent) bool {
	if a.isMessageTooOld(ev.TimeStamp) {
		a.logger.Info("message is too old, skipping processing", slog.String("ts", ev.TimeStamp))
		return false
	}
	_, found, err := a.store.ReadDataContent(ctx, a.store.Processing(), markerName(ev.Channel, ev.TimeStamp))
	if err != nil {
		a.logger.Error("processing marker lookup failed", slog.String("channel", ev.Channel), slog.String("ts", ev.TimeStamp), slog.Any("error", err))
		return false
	}
	if found {
		a.logger.Info("message already processed or in progress", slog.String("channel", ev.Channel), slog.String("ts", ev.TimeStamp))
		return false
	}
	return true
}

// isMessageTooOld reports whether ts lies outside the replay window. A ts
// exactly TTL old is still fresh; an unparseable ts is treated as stale.
func (a *Adapter) isMessageTooOld(ts string) bool {
	sent, ok := parseSlackTS(ts)
	if !ok {
		return true
	}
	return a.clock.Now().Sub(sent) > a.cfg.MessageTTL
}

// claimMarker atomically creates the processing marker and reports whether
// this call owns the event.
func (a *Adapter) claimMarker(ctx context.Context, channelID, ts string) (bool, error) {
	return a.store.WriteDataContentIfAbsent(ctx, a.store.Processing(), markerName(channelID, ts),
		a.clock.Now().UTC().Format(time.RFC3339))
}

func markerName(channelID, ts string) string {
	return channelID + "-" + ts + ".txt"
}

// parseSlackTS parses a "seconds.micros" timestamp without going through
// float64, which loses precision at this magnitude.
func parseSlackTS(ts string) (time.Time, bool) {
	secPart, fracPart, _ := strings.Cut(strings.TrimSpace(ts), ".")
	secs, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var nanos int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		if nanos, err = strconv.ParseInt(fracPart, 10, 64); err != nil || nanos < 0 {
			return time.Time{}, false
		}
	}
	return time.Unix(secs, nanos), true
}
