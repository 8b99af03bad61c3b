// Package datastoretest holds the behavior checks every datastore backend
// must pass.
package datastoretest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/datastore"
)

// RunBackendTests exercises a Backend. newBackend must return an empty,
// initialized backend for each call.
func RunBackendTests(t *testing.T, newBackend func(t *testing.T) datastore.Backend) {
	t.Helper()

	t.Run("read missing", func(t *testing.T) {
		b := newBackend(t)
		data, ok, err := b.Read(context.Background(), "sessions", "missing.txt")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, data)
	})

	t.Run("write read overwrite", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		require.NoError(t, b.Write(ctx, "prompts", "core.txt", "first"))
		require.NoError(t, b.Write(ctx, "prompts", "core.txt", "second"))
		data, ok, err := b.Read(ctx, "prompts", "core.txt")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", data)
	})

	t.Run("write if absent", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		created, err := b.WriteIfAbsent(ctx, "processing", "C1-1.txt", "a")
		require.NoError(t, err)
		assert.True(t, created)
		created, err = b.WriteIfAbsent(ctx, "processing", "C1-1.txt", "b")
		require.NoError(t, err)
		assert.False(t, created)
		data, _, err := b.Read(ctx, "processing", "C1-1.txt")
		require.NoError(t, err)
		assert.Equal(t, "a", data)
	})

	t.Run("write if absent races", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		var wins, failures atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := b.WriteIfAbsent(ctx, "processing", "C1-2.txt", "x")
				if err != nil {
					failures.Add(1)
					return
				}
				if created {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Zero(t, failures.Load())
		assert.Equal(t, int32(1), wins.Load())
		data, ok, err := b.Read(ctx, "processing", "C1-2.txt")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "x", data)
	})

	t.Run("append", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		require.NoError(t, b.Append(ctx, "feedbacks", "f.txt", "one\n"))
		require.NoError(t, b.Append(ctx, "feedbacks", "f.txt", "two\n"))
		data, ok, err := b.Read(ctx, "feedbacks", "f.txt")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "one\ntwo\n", data)
	})

	t.Run("remove", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		require.NoError(t, b.Write(ctx, "abort", "x.txt", "1"))
		require.NoError(t, b.Remove(ctx, "abort", "x.txt"))
		_, ok, err := b.Read(ctx, "abort", "x.txt")
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, b.Remove(ctx, "abort", "x.txt"))
	})

	t.Run("list", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		names, err := b.List(ctx, "prompts")
		require.NoError(t, err)
		assert.Empty(t, names)

		require.NoError(t, b.Write(ctx, "prompts", "b.txt", "b"))
		require.NoError(t, b.Write(ctx, "prompts", "a.txt", "a"))
		require.NoError(t, b.Write(ctx, "sessions", "c.txt", "c"))
		names, err = b.List(ctx, "prompts")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt"}, names)
	})
}
