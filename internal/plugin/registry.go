package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry indexes plugin instances by category and subcategory. It is built
// once at start-up and passed explicitly to the components that need it.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string][]Plugin
	order   []Plugin
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: map[string]map[string][]Plugin{},
	}
}

// Register adds a plugin instance under category/subcategory.
func (r *Registry) Register(category, subcategory string, p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin is nil")
	}
	cat := normalizeKey(category)
	sub := normalizeKey(subcategory)
	if cat == "" || sub == "" {
		return fmt.Errorf("plugin category and subcategory are required")
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return fmt.Errorf("plugin name is required in %s.%s", cat, sub)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.plugins[cat]
	if !ok {
		subs = map[string][]Plugin{}
		r.plugins[cat] = subs
	}
	for _, existing := range subs[sub] {
		if existing.Name() == name {
			return fmt.Errorf("plugin already registered: %s.%s.%s", cat, sub, name)
		}
	}
	subs[sub] = append(subs[sub], p)
	r.order = append(r.order, p)
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(category, subcategory string, p Plugin) {
	if err := r.Register(category, subcategory, p); err != nil {
		panic(err)
	}
}

// Lookup returns the plugins registered under category/subcategory in
// registration order, or nil when nothing is registered there.
func (r *Registry) Lookup(category, subcategory string) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs, ok := r.plugins[normalizeKey(category)]
	if !ok {
		return nil
	}
	items, ok := subs[normalizeKey(subcategory)]
	if !ok {
		return nil
	}
	out := make([]Plugin, len(items))
	copy(out, items)
	return out
}

// Category returns every subcategory of category, or nil when the category
// is unknown.
func (r *Registry) Category(category string) map[string][]Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs, ok := r.plugins[normalizeKey(category)]
	if !ok {
		return nil
	}
	out := make(map[string][]Plugin, len(subs))
	for sub, items := range subs {
		cp := make([]Plugin, len(items))
		copy(cp, items)
		out[sub] = cp
	}
	return out
}

// Categories returns the registered category keys, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]string, 0, len(r.plugins))
	for cat := range r.plugins {
		items = append(items, cat)
	}
	sort.Strings(items)
	return items
}

// InitializeAll calls Initialize on every plugin in registration order and
// stops at the first failure.
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.mu.RLock()
	items := make([]Plugin, len(r.order))
	copy(items, r.order)
	r.mu.RUnlock()
	for _, p := range items {
		if err := p.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// StopAll calls Stop on every Stopper in reverse registration order. Every
// plugin is stopped even when an earlier one fails.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.RLock()
	items := make([]Plugin, len(r.order))
	copy(items, r.order)
	r.mu.RUnlock()
	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		s, ok := items[i].(Stopper)
		if !ok {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop plugin %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Routes returns the user-interaction plugins that expose an HTTP route.
func (r *Registry) Routes() []RouteProvider {
	subs := r.Category(CategoryUserInteractions)
	keys := make([]string, 0, len(subs))
	for sub := range subs {
		keys = append(keys, sub)
	}
	sort.Strings(keys)
	var routes []RouteProvider
	for _, sub := range keys {
		for _, p := range subs[sub] {
			if rp, ok := p.(RouteProvider); ok {
				routes = append(routes, rp)
			}
		}
	}
	return routes
}
