package slack

import (
	"log/slog"

	"github.com/slack-go/slack/slackevents"
)

type eventClass int

const (
	eventProcess eventClass = iota
	eventIgnored
	eventSkipped
)

func (c eventClass) String() string {
	switch c {
	case eventProcess:
		return "process"
	case eventIgnored:
		return "ignored"
	default:
		return "skipped"
	}
}

// classifyEvent decides what happens to an event of the given type and
// subtype. Plain messages and allowed subtypes are processed; other
// subtypes are ignored and other types skipped, both with a log line.
func (a *Adapter) classifyEvent(eventType, subtype string) eventClass {
	if eventType != string(slackevents.Message) {
		a.logger.Debug("Event type is not 'message', it's '" + eventType + "'. Skipping processing.")
		return eventSkipped
	}
	if subtype == "" || contains(a.cfg.AllowedSubtypes, subtype) {
		return eventProcess
	}
	a.logger.Info("ignoring channel event subtype: "+subtype, slog.String("subtype", subtype))
	return eventIgnored
}
