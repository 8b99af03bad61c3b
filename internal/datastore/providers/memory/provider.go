// Package memory implements an in-process datastore backend. Contents are
// lost on restart; it serves tests and single-instance deployments.
package memory

import (
	"context"
	"sort"
	"sync"
)

// Provider keeps containers in a map guarded by a mutex.
type Provider struct {
	mu    sync.RWMutex
	files map[string]map[string]string
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{files: map[string]map[string]string{}}
}

func (p *Provider) Read(_ context.Context, container, name string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.files[container][name]
	return data, ok, nil
}

func (p *Provider) Write(_ context.Context, container, name, data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bucket(container)[name] = data
	return nil
}

func (p *Provider) WriteIfAbsent(_ context.Context, container, name, data string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.bucket(container)
	if _, ok := b[name]; ok {
		return false, nil
	}
	b[name] = data
	return true, nil
}

func (p *Provider) Append(_ context.Context, container, name, data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.bucket(container)
	b[name] += data
	return nil
}

func (p *Provider) Remove(_ context.Context, container, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files[container], name)
	return nil
}

func (p *Provider) List(_ context.Context, container string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.files[container]))
	for name := range p.files[container] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// bucket must be called with the write lock held.
func (p *Provider) bucket(container string) map[string]string {
	b, ok := p.files[container]
	if !ok {
		b = map[string]string{}
		p.files[container] = b
	}
	return b
}
