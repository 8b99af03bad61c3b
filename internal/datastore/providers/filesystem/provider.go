// Package filesystem implements the datastore backend on a local directory.
// Each container is a sub-directory of the root and each file a regular file
// inside it: <root>/<container>/<name>.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Provider stores container files under a root directory.
type Provider struct {
	root string
}

// New creates a filesystem provider rooted at root.
func New(root string) (*Provider, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("filesystem datastore root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	return &Provider{root: abs}, nil
}

// Root returns the absolute root directory.
func (p *Provider) Root() string { return p.root }

// Initialize creates the root directory.
func (p *Provider) Initialize(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("create data root: %w", err)
	}
	return nil
}

func (p *Provider) Read(_ context.Context, container, name string) (string, bool, error) {
	dest, err := p.hostPath(container, name)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read file: %w", err)
	}
	return string(data), true, nil
}

func (p *Provider) Write(_ context.Context, container, name, data string) error {
	dest, err := p.prepare(container, name)
	if err != nil {
		return err
	}
	// Write to a sibling temp file first so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

func (p *Provider) WriteIfAbsent(_ context.Context, container, name, data string) (bool, error) {
	dest, err := p.prepare(container, name)
	if err != nil {
		return false, err
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		return true, fmt.Errorf("write file: %w", err)
	}
	return true, nil
}

func (p *Provider) Append(_ context.Context, container, name, data string) error {
	dest, err := p.prepare(container, name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		return fmt.Errorf("append file: %w", err)
	}
	return nil
}

func (p *Provider) Remove(_ context.Context, container, name string) error {
	dest, err := p.hostPath(container, name)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (p *Provider) List(_ context.Context, container string) ([]string, error) {
	dir, err := p.containerPath(container)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list container: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (p *Provider) prepare(container, name string) (string, error) {
	dest, err := p.hostPath(container, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create container dir: %w", err)
	}
	return dest, nil
}

func (p *Provider) containerPath(container string) (string, error) {
	if err := checkSegment(container); err != nil {
		return "", err
	}
	joined := filepath.Join(p.root, container)
	if !strings.HasPrefix(joined, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes data root: %s", container)
	}
	return joined, nil
}

// hostPath converts a container/name pair into a path under the root.
func (p *Provider) hostPath(container, name string) (string, error) {
	dir, err := p.containerPath(container)
	if err != nil {
		return "", err
	}
	if err := checkSegment(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func checkSegment(seg string) error {
	if strings.TrimSpace(seg) == "" {
		return fmt.Errorf("invalid storage key: empty")
	}
	if seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
		return fmt.Errorf("path traversal is forbidden: %s", seg)
	}
	return nil
}
