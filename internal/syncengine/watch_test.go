package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/cv-index/internal/parser"
	"github.com/docker/cv-index/internal/vcs"
)

func TestWatch_InitialRunThenPicksUpNewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	graph := newFakeGraph()
	// Exclude .cv the way config.Default does, so the sync-state file the
	// first run writes is not walked as a repository file by the second.
	engine := New(repo, parser.NewDefaultRegistry(), graph, nil, nil, filepath.Join(dir, ".cv"), Options{ExcludePatterns: []string{"**/.cv/**"}}, nil)

	results := make(chan Result, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- engine.Watch(ctx, func(result Result, err error) {
			require.NoError(t, err)
			results <- result
		})
	}()

	select {
	case first := <-results:
		assert.Contains(t, graph.files, "a.go")
		assert.Equal(t, 1, first.State.FileCount)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial sync")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package a\n\nfunc B() {}\n"), 0o644))

	select {
	case second := <-results:
		assert.Contains(t, graph.files, "b.go")
		// dir has no .git, so Incremental falls back to Full every run
		// (syncengine.go's Incremental: "!e.repo.IsRepo()") and rewalks
		// the whole tree.
		assert.Equal(t, 2, second.State.FileCount)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch to pick up new file")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Watch to return after cancel")
	}
}
