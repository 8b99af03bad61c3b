package pluginschecker

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/chatrelay/chatrelay/internal/healthcheck"
	"github.com/chatrelay/chatrelay/internal/plugin"
)

const checkTypePlugins = "plugins.inventory"

// Inventory exposes the loaded plugins. *plugin.Registry satisfies it.
type Inventory interface {
	Categories() []string
	Category(category string) map[string][]plugin.Plugin
}

// Checker reports the loaded plugins of every required category.
type Checker struct {
	logger   *slog.Logger
	registry Inventory
	required []string
}

// NewChecker creates a plugin inventory checker. A required category with
// no plugin is reported as an error.
func NewChecker(log *slog.Logger, registry Inventory, required ...string) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_plugins")),
		registry: registry,
		required: required,
	}
}

// ListChecks returns one check per category.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.registry == nil {
		c.logger.Warn("plugin healthcheck dependency is unavailable")
		return []healthcheck.CheckResult{
			{
				ID:      checkTypePlugins + ".service",
				Type:    checkTypePlugins,
				Status:  healthcheck.StatusWarn,
				Summary: "Plugin checker service is not available.",
				Detail:  "registry is nil",
			},
		}
	}

	categories := map[string]bool{}
	for _, cat := range c.registry.Categories() {
		categories[cat] = true
	}
	for _, cat := range c.required {
		categories[strings.ToUpper(strings.TrimSpace(cat))] = true
	}
	keys := make([]string, 0, len(categories))
	for cat := range categories {
		keys = append(keys, cat)
	}
	sort.Strings(keys)

	checks := make([]healthcheck.CheckResult, 0, len(keys))
	for _, cat := range keys {
		names := map[string]any{}
		total := 0
		for sub, plugins := range c.registry.Category(cat) {
			items := make([]string, 0, len(plugins))
			for _, p := range plugins {
				items = append(items, p.Name())
			}
			names[strings.ToLower(sub)] = items
			total += len(items)
		}
		item := healthcheck.CheckResult{
			ID:       checkTypePlugins + "." + strings.ToLower(cat),
			Type:     checkTypePlugins,
			Subtitle: strings.ToLower(cat),
			Status:   healthcheck.StatusOK,
			Summary:  "Plugins loaded.",
			Metadata: names,
		}
		if total == 0 {
			item.Status = healthcheck.StatusError
			item.Summary = "No plugin loaded."
		}
		checks = append(checks, item)
	}
	return checks
}
