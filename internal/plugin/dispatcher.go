package plugin

import (
	"fmt"
	"log/slog"
	"strings"
)

// Dispatcher resolves plugins of one capability family by name. Unknown or
// empty names resolve to the default plugin, so routing never fails on a
// misconfigured name.
type Dispatcher[T Plugin] struct {
	logger        *slog.Logger
	family        string
	plugins       []T
	defaultPlugin T
}

// NewDispatcher creates a Dispatcher over plugins. The plugin named
// defaultName becomes the default; when no plugin carries that name the
// first plugin is used.
func NewDispatcher[T Plugin](log *slog.Logger, family string, plugins []T, defaultName string) (*Dispatcher[T], error) {
	if log == nil {
		log = slog.Default()
	}
	if len(plugins) == 0 {
		return nil, configErrorf(family, "no plugins provided")
	}
	d := &Dispatcher[T]{
		logger:  log.With(slog.String("dispatcher", family)),
		family:  family,
		plugins: append([]T(nil), plugins...),
	}
	d.defaultPlugin = d.plugins[0]
	defaultName = strings.TrimSpace(defaultName)
	if defaultName != "" {
		if p, ok := d.lookup(defaultName); ok {
			d.defaultPlugin = p
		} else {
			d.logger.Warn("configured default plugin not found, using first plugin",
				slog.String("default", defaultName),
				slog.String("plugin", d.defaultPlugin.Name()))
		}
	}
	return d, nil
}

// Resolve returns the plugin named name, or the default plugin.
func (d *Dispatcher[T]) Resolve(name string) T {
	name = strings.TrimSpace(name)
	if name == "" {
		return d.defaultPlugin
	}
	if p, ok := d.lookup(name); ok {
		return p
	}
	d.logger.Error("plugin not found, returning default plugin",
		slog.String("plugin", name),
		slog.String("default", d.defaultPlugin.Name()))
	return d.defaultPlugin
}

// Default returns the default plugin.
func (d *Dispatcher[T]) Default() T {
	return d.defaultPlugin
}

// DefaultName returns the default plugin's name.
func (d *Dispatcher[T]) DefaultName() string {
	return d.defaultPlugin.Name()
}

// Plugins returns the owned plugins in order.
func (d *Dispatcher[T]) Plugins() []T {
	return append([]T(nil), d.plugins...)
}

// Names returns the owned plugin names in order.
func (d *Dispatcher[T]) Names() []string {
	names := make([]string, 0, len(d.plugins))
	for _, p := range d.plugins {
		names = append(names, p.Name())
	}
	return names
}

func (d *Dispatcher[T]) lookup(name string) (T, bool) {
	for _, p := range d.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	var zero T
	return zero, false
}

// Collect returns the plugins registered under category/subcategory typed as
// T. A registered plugin that does not implement T is a configuration error.
func Collect[T Plugin](r *Registry, category, subcategory string) ([]T, error) {
	items := r.Lookup(category, subcategory)
	out := make([]T, 0, len(items))
	for _, p := range items {
		typed, ok := p.(T)
		if !ok {
			return nil, configErrorf(normalizeKey(category)+"."+normalizeKey(subcategory),
				"plugin %q has unexpected type %T", p.Name(), p)
		}
		out = append(out, typed)
	}
	if len(out) == 0 {
		return nil, configErrorf(normalizeKey(category)+"."+normalizeKey(subcategory), "no plugins registered")
	}
	return out, nil
}

// String implements fmt.Stringer for log output.
func (d *Dispatcher[T]) String() string {
	return fmt.Sprintf("%s%v", d.family, d.Names())
}
