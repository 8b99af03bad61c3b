package slack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// HandleRequest receives Events API callbacks and slash commands. Apart
// from the url_verification echo it always answers 200 with an empty body,
// so Slack never retries a delivery because of an internal failure.
func (a *Adapter) HandleRequest(c echo.Context) error {
	req := c.Request()
	log := a.logger.With(slog.String("request_id", uuid.NewString()))

	payload, err := io.ReadAll(io.LimitReader(req.Body, webhookMaxBodyBytes))
	if err != nil {
		log.Error("read slack request body failed", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}

	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) {
		a.handleCommandRequest(c, log, payload)
		return c.NoContent(http.StatusOK)
	}

	env, ev, err := decodeEnvelope(payload)
	if err != nil {
		log.Warn("unparseable slack payload", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}
	if env.Type == slackevents.URLVerification {
		return c.String(http.StatusOK, env.Challenge)
	}
	if ev == nil {
		log.Debug("slack payload without event", slog.String("type", env.Type))
		return c.NoContent(http.StatusOK)
	}

	headers := req.Header.Clone()
	run := func(ctx context.Context) {
		// Errors are logged by the pipeline.
		_ = a.processEventData(ctx, headers, payload, ev)
	}
	if a.cfg.ProcessInline {
		run(req.Context())
	} else {
		a.inflight.Add(1)
		go func() {
			defer a.inflight.Done()
			run(context.WithoutCancel(req.Context()))
		}()
	}
	return c.NoContent(http.StatusOK)
}

func (a *Adapter) handleCommandRequest(c echo.Context, log *slog.Logger, payload []byte) {
	req := c.Request()
	if !validateHeaders(req.Header) ||
		!ValidateSignature(a.cfg.SigningSecret, req.Header.Get(headerRequestTimestamp), payload, req.Header.Get(headerSignature)) {
		log.Debug("slash command rejected: invalid signature")
		return
	}
	if a.isMessageTooOld(req.Header.Get(headerRequestTimestamp)) {
		log.Info("slash command rejected: request timestamp outside replay window",
			slog.String("ts", req.Header.Get(headerRequestTimestamp)))
		return
	}
	req.Body = io.NopCloser(bytes.NewReader(payload))
	cmd, err := slack.SlashCommandParse(req)
	if err != nil {
		log.Warn("unparseable slash command", slog.Any("error", err))
		return
	}
	if err := a.handleSlashCommand(req.Context(), cmd); err != nil {
		log.Error("slash command failed", slog.String("command", cmd.Command), slog.Any("error", err))
	}
}

// Stop waits for background pipelines started by HandleRequest so that their
// processing markers land before the datastore closes.
func (a *Adapter) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("slack adapter: wait for in-flight events: %w", ctx.Err())
	}
}
