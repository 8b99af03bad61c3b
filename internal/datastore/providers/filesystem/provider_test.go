package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/datastore/datastoretest"
	"github.com/chatrelay/chatrelay/internal/datastore/providers/filesystem"
)

func newProvider(t *testing.T) *filesystem.Provider {
	t.Helper()
	p, err := filesystem.New(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return p
}

func TestProvider(t *testing.T) {
	datastoretest.RunBackendTests(t, func(t *testing.T) datastore.Backend {
		return newProvider(t)
	})
}

func TestProvider_Layout(t *testing.T) {
	t.Parallel()
	p := newProvider(t)
	if err := p.Write(context.Background(), "prompts", "core.txt", "hello"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(p.Root(), "prompts", "core.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("file content = %q, want %q", data, "hello")
	}
}

func TestProvider_RejectsTraversal(t *testing.T) {
	t.Parallel()
	p := newProvider(t)
	ctx := context.Background()
	cases := []struct {
		container string
		name      string
	}{
		{"..", "x.txt"},
		{"prompts", "../x.txt"},
		{"prompts/../..", "x.txt"},
		{"", "x.txt"},
		{"prompts", ""},
	}
	for _, tc := range cases {
		if err := p.Write(ctx, tc.container, tc.name, "x"); err == nil {
			t.Fatalf("Write(%q, %q) error = nil, want error", tc.container, tc.name)
		}
	}
}

func TestProvider_ListSkipsTempFiles(t *testing.T) {
	t.Parallel()
	p := newProvider(t)
	dir := filepath.Join(p.Root(), "prompts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".core.txt.123"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := p.List(context.Background(), "prompts")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("List() = %v, want empty", names)
	}
}
