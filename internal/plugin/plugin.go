// Package plugin provides the registry and name-based dispatch used to pick,
// at runtime, which backend, messaging or behavior implementation serves a
// request.
package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
)

// Categories and subcategories known to the gateway. Keys are stored
// upper-cased; callers may pass any case.
const (
	CategoryBackend                   = "BACKEND"
	CategoryUserInteractions          = "USER_INTERACTIONS"
	CategoryUserInteractionsBehaviors = "USER_INTERACTIONS_BEHAVIORS"

	SubcategoryInternalDataProcessing = "INTERNAL_DATA_PROCESSING"
	SubcategoryInstantMessaging       = "INSTANT_MESSAGING"
)

// Plugin is the base contract of every pluggable implementation.
type Plugin interface {
	// Name identifies the plugin inside its subcategory.
	Name() string
	// Initialize runs once after every plugin has been registered.
	Initialize(ctx context.Context) error
}

// RouteProvider is a plugin that owns an inbound HTTP route.
type RouteProvider interface {
	Plugin
	RoutePath() string
	RouteMethods() []string
	HandleRequest(c echo.Context) error
}

// Stopper is a plugin that holds work which must finish at shutdown.
type Stopper interface {
	Plugin
	Stop(ctx context.Context) error
}

// ConfigError reports a plugin configuration problem detected at start-up.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "plugin configuration error"
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(path string, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func normalizeKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
