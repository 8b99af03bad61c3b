package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatrelay/chatrelay/internal/channel"
)

const (
	noInternalChannelWarning = "An internal message was sent but INTERNAL_CHANNEL is not defined, so the message is sent in the original thread."
	internalTimeoutWarning   = "Internal message not found after %d seconds, sending the message in the original thread."
)

// handleInternalChannel points working at the internal channel thread that
// mirrors event. When no internal channel is configured, or the thread does
// not show up in time, working keeps or regains the original conversation.
func (a *Adapter) handleInternalChannel(ctx context.Context, event channel.NotificationEvent, working *channel.NotificationEvent) {
	if a.cfg.InternalChannel == "" {
		a.logger.Warn(noInternalChannelWarning)
		return
	}
	working.ChannelID = a.cfg.InternalChannel
	threadID, ok := a.waitForInternalMessage(ctx, event.ResponseID)
	if !ok {
		a.logger.Warn(fmt.Sprintf(internalTimeoutWarning, int(a.cfg.InternalWaitTimeout.Seconds())),
			slog.String("channel", event.ChannelID), slog.String("thread", event.ThreadID))
		working.ChannelID = event.ChannelID
		working.ThreadID = event.ThreadID
		return
	}
	working.ThreadID = threadID
}

// waitForInternalMessage polls the internal channel for a message carrying
// token until the wait budget is spent or ctx ends.
func (a *Adapter) waitForInternalMessage(ctx context.Context, token string) (string, bool) {
	start := a.clock.Now()
	for {
		threadID, found, err := a.SearchMessageInThread(ctx, a.cfg.InternalChannel, token)
		switch {
		case err != nil:
			a.logger.Warn("internal thread search failed", slog.String("channel", a.cfg.InternalChannel), slog.Any("error", err))
		case found:
			return threadID, true
		}
		if a.clock.Now().Sub(start) >= a.cfg.InternalWaitTimeout {
			return "", false
		}
		if err := a.clock.Sleep(ctx, a.cfg.InternalPollInterval); err != nil {
			return "", false
		}
		if a.clock.Now().Sub(start) >= a.cfg.InternalWaitTimeout {
			return "", false
		}
	}
}

// handleInternalMessage returns the thread and channel an internal message
// goes to. A thread already known by the caller skips the search.
func (a *Adapter) handleInternalMessage(ctx context.Context, event channel.NotificationEvent, working *channel.NotificationEvent, alreadyFound string) (string, string) {
	if alreadyFound != "" && a.cfg.InternalChannel != "" {
		working.ChannelID = a.cfg.InternalChannel
		working.ThreadID = alreadyFound
		return alreadyFound, a.cfg.InternalChannel
	}
	a.handleInternalChannel(ctx, event, working)
	return working.ThreadID, working.ChannelID
}
