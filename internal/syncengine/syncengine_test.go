package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/parser"
	"github.com/docker/cv-index/internal/vcs"
)

func TestLanguageFor(t *testing.T) {
	cases := map[string]string{
		"main.go":     "go",
		"app.ts":      "typescript",
		"app.tsx":     "typescript",
		"script.js":   "javascript",
		"lib.py":      "python",
		"core.rs":     "rust",
		"README.md":   "markdown",
		"data.toml":   "text",
		"noext":       "text",
	}
	for path, want := range cases {
		assert.Equal(t, want, languageFor(path), path)
	}
}

func TestOptions_Normalized(t *testing.T) {
	opts := Options{}.normalized()
	assert.Greater(t, opts.ParseWorkers, 0)
	assert.Equal(t, 4, opts.EmbedWorkers)

	opts = Options{ParseWorkers: 2, EmbedWorkers: 8}.normalized()
	assert.Equal(t, 2, opts.ParseWorkers)
	assert.Equal(t, 8, opts.EmbedWorkers)
}

func TestHashOf_StableAndDistinct(t *testing.T) {
	a := hashOf([]byte("package main"))
	b := hashOf([]byte("package main"))
	c := hashOf([]byte("package other"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestLoadState_MissingReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	state, err := LoadState(dir)
	require.NoError(t, err)
	assert.Empty(t, state.LastCommitSynced)
	assert.NotNil(t, state.LanguageHistogram)
	assert.NotNil(t, state.FileHashes)
}

func TestSaveState_RoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".cv")
	state := domain.SyncState{
		LastCommitSynced:  "deadbeef",
		FileCount:         3,
		SymbolCount:       10,
		LanguageHistogram: map[string]int{"go": 3},
		FileHashes:        map[string]string{"main.go": "abc"},
	}
	require.NoError(t, SaveState(dir, state))

	loaded, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", loaded.LastCommitSynced)
	assert.Equal(t, 3, loaded.FileCount)
	assert.Equal(t, 10, loaded.SymbolCount)
	assert.Equal(t, 3, loaded.LanguageHistogram["go"])
	assert.Equal(t, "abc", loaded.FileHashes["main.go"])
}

// fakeGraph is an in-memory graphstore.Store double that records every call
// made to it, letting tests assert on the per-file write sequence without a
// Neo4j backend.
type fakeGraph struct {
	files       map[string]domain.File
	symbolsBy   map[string][]domain.Symbol
	cleared     []string
	clearedAll  bool
	deleted     []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{files: map[string]domain.File{}, symbolsBy: map[string][]domain.Symbol{}}
}

func (f *fakeGraph) UpsertFile(ctx context.Context, file domain.File) error {
	f.files[file.Path] = file
	return nil
}
func (f *fakeGraph) DeleteFile(ctx context.Context, path string) error {
	delete(f.files, path)
	f.deleted = append(f.deleted, path)
	return nil
}
func (f *fakeGraph) UpsertSymbols(ctx context.Context, file string, symbols []domain.Symbol) error {
	f.symbolsBy[file] = symbols
	return nil
}
func (f *fakeGraph) UpsertCallEdges(ctx context.Context, file string, imports []domain.Import, calls []domain.Call) error {
	return nil
}
func (f *fakeGraph) ClearByFile(ctx context.Context, path string) error {
	f.cleared = append(f.cleared, path)
	return nil
}
func (f *fakeGraph) ClearAll(ctx context.Context) error {
	f.clearedAll = true
	f.files = map[string]domain.File{}
	return nil
}
func (f *fakeGraph) Close(ctx context.Context) error { return nil }
func (f *fakeGraph) SearchSymbolsByKeyword(ctx context.Context, keyword string, limit int) ([]domain.Symbol, error) {
	return nil, nil
}
func (f *fakeGraph) SearchFilePaths(ctx context.Context, keyword string, limit int) ([]string, error) {
	return nil, nil
}
func (f *fakeGraph) Callers(ctx context.Context, qualifiedName string, limit int) ([]domain.Symbol, error) {
	return nil, nil
}
func (f *fakeGraph) Callees(ctx context.Context, qualifiedName string, limit int) ([]domain.Symbol, error) {
	return nil, nil
}
func (f *fakeGraph) Degree(ctx context.Context, qualifiedName string) (int, int, error) {
	return 0, 0, nil
}

func TestFull_WithFakeGraphNoVectors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello world, this is a plain note.\n"), 0o644))

	repo, err := vcs.Open(dir)
	require.NoError(t, err)
	assert.False(t, repo.IsRepo())

	graph := newFakeGraph()
	engine := New(repo, parser.NewDefaultRegistry(), graph, nil, nil, filepath.Join(dir, ".cv"), Options{}, nil)

	result, err := engine.Full(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.State.FileCount)
	assert.Contains(t, graph.files, "main.go")
	assert.Contains(t, graph.files, "notes.txt")
	assert.Empty(t, result.State.LastCommitSynced) // not a git repo

	state, err := LoadState(filepath.Join(dir, ".cv"))
	require.NoError(t, err)
	assert.Equal(t, 2, state.FileCount)
	assert.NotEmpty(t, state.FileHashes["main.go"])
}

func TestFull_ClearAllClearsGraphFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	graph := newFakeGraph()
	graph.files["stale.go"] = domain.File{Path: "stale.go"}

	engine := New(repo, parser.NewDefaultRegistry(), graph, nil, nil, filepath.Join(dir, ".cv"), Options{ClearAll: true}, nil)

	_, err = engine.Full(context.Background())
	require.NoError(t, err)
	assert.True(t, graph.clearedAll)
	assert.NotContains(t, graph.files, "stale.go")
	assert.Contains(t, graph.files, "a.go")
}

func TestIncremental_FallsBackToFullWithoutPriorState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	graph := newFakeGraph()
	engine := New(repo, parser.NewDefaultRegistry(), graph, nil, nil, filepath.Join(dir, ".cv"), Options{}, nil)

	result, err := engine.Incremental(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.State.FileCount)
	assert.Contains(t, graph.files, "a.go")
}
