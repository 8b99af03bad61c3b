package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/chatrelay/chatrelay/internal/plugin"
)

// RouteLister lists the plugins owning an inbound route.
type RouteLister interface {
	Routes() []plugin.RouteProvider
}

// PluginRoutesHandler mounts the webhook route of every messaging plugin.
type PluginRoutesHandler struct {
	logger *slog.Logger
	routes RouteLister
}

func NewPluginRoutesHandler(log *slog.Logger, routes RouteLister) *PluginRoutesHandler {
	return &PluginRoutesHandler{
		logger: log.With(slog.String("handler", "plugin_routes")),
		routes: routes,
	}
}

func (h *PluginRoutesHandler) Register(e *echo.Echo) {
	if h.routes == nil {
		return
	}
	for _, rp := range h.routes.Routes() {
		methods := rp.RouteMethods()
		if len(methods) == 0 {
			methods = []string{"POST"}
		}
		e.Match(methods, rp.RoutePath(), rp.HandleRequest)
		h.logger.Info("route registered",
			slog.String("plugin", rp.Name()),
			slog.String("path", rp.RoutePath()),
			slog.Any("methods", methods),
		)
	}
}
