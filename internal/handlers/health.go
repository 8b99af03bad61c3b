package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatrelay/chatrelay/internal/healthcheck"
)

// HealthHandler serves the aggregated runtime checks.
type HealthHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

func NewHealthHandler(log *slog.Logger, checkers ...healthcheck.Checker) *HealthHandler {
	return &HealthHandler{
		logger:   log.With(slog.String("handler", "health")),
		checkers: checkers,
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.Alive)
}

// Alive answers HEAD probes. It reports that the process serves requests and
// does not run the checks.
func (h *HealthHandler) Alive(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Health answers 503 when any check failed.
func (h *HealthHandler) Health(c echo.Context) error {
	report := healthcheck.Run(c.Request().Context(), h.checkers...)
	status := http.StatusOK
	if report.Status == healthcheck.StatusError {
		h.logger.Warn("health check failed", slog.Int("checks", len(report.Checks)))
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}
