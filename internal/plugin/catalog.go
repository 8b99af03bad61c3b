package plugin

import (
	"context"
	"sort"
	"strings"
)

// Factory builds one plugin instance.
type Factory func(ctx context.Context) (Plugin, error)

type requirement struct {
	capability string
	check      func(Plugin) bool
}

// Catalog maps dotted capability paths (category.subcategory.name) to
// factories. Loading a path that is unknown, whose factory fails, or whose
// instance does not implement the capability required by its category is a
// start-up error.
type Catalog struct {
	factories    map[string]Factory
	requirements map[string]requirement
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		factories:    map[string]Factory{},
		requirements: map[string]requirement{},
	}
}

// Add binds a capability path to a factory. A later Add for the same path
// replaces the earlier one.
func (c *Catalog) Add(path string, factory Factory) {
	c.factories[normalizePath(path)] = factory
}

// Require declares the capability every plugin under category/subcategory
// must implement.
func (c *Catalog) Require(category, subcategory, capability string, check func(Plugin) bool) {
	c.requirements[normalizeKey(category)+"."+normalizeKey(subcategory)] = requirement{
		capability: capability,
		check:      check,
	}
}

// Implements returns a check reporting whether a plugin satisfies T.
func Implements[T any]() func(Plugin) bool {
	return func(p Plugin) bool {
		_, ok := p.(T)
		return ok
	}
}

// Paths returns every known capability path, sorted.
func (c *Catalog) Paths() []string {
	items := make([]string, 0, len(c.factories))
	for path := range c.factories {
		items = append(items, path)
	}
	sort.Strings(items)
	return items
}

// Load instantiates each path and registers the result in registry.
func (c *Catalog) Load(ctx context.Context, registry *Registry, paths []string) error {
	for _, raw := range paths {
		path := normalizePath(raw)
		category, subcategory, _, err := ParsePath(raw)
		if err != nil {
			return err
		}
		factory, ok := c.factories[path]
		if !ok {
			return configErrorf(raw, "no implementation registered for capability path")
		}
		p, err := factory(ctx)
		if err != nil {
			return &ConfigError{Path: raw, Reason: "create plugin", Err: err}
		}
		if p == nil {
			return configErrorf(raw, "factory returned no plugin")
		}
		if req, ok := c.requirements[normalizeKey(category)+"."+normalizeKey(subcategory)]; ok && req.check != nil && !req.check(p) {
			return configErrorf(raw, "plugin %q does not implement %s", p.Name(), req.capability)
		}
		if err := registry.Register(category, subcategory, p); err != nil {
			return &ConfigError{Path: raw, Reason: "register plugin", Err: err}
		}
	}
	return nil
}

// ParsePath splits a capability path into category, subcategory and name.
func ParsePath(path string) (category, subcategory, name string, err error) {
	parts := strings.Split(normalizePath(path), ".")
	if len(parts) != 3 {
		return "", "", "", configErrorf(path, "capability path must be category.subcategory.name")
	}
	for _, part := range parts {
		if part == "" {
			return "", "", "", configErrorf(path, "capability path has an empty segment")
		}
	}
	return parts[0], parts[1], parts[2], nil
}

func normalizePath(path string) string {
	return strings.ToLower(strings.TrimSpace(path))
}
