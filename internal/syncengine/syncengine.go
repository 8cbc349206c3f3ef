// Package syncengine is the Sync Engine (spec.md §4.5, §5): orchestrates
// full and incremental repository synchronization into the Graph Writer and
// Vector Writer, and persists SyncState. The two-mode split and the
// content-hash short-circuit layered on top of the git diff (SPEC_FULL.md
// §3's resolved Open Question) are grounded on
// pkg/rag/strategy/vector_store.go's Initialize/CheckAndReindexChangedFiles;
// the bounded worker pool is grounded on that same file's
// errgroup.WithContext(ctx) + SetLimit usage.
package syncengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docker/cv-index/internal/chunk"
	"github.com/docker/cv-index/internal/contextengine"
	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/graphstore"
	"github.com/docker/cv-index/internal/parser"
	"github.com/docker/cv-index/internal/vcs"
	"github.com/docker/cv-index/internal/vectorstore"
)

// FileError records a per-file failure that does not abort the run
// (spec.md §4.1's "A file that fails to parse is skipped, recorded in the
// sync run's error list").
type FileError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is returned by Full and Incremental.
type Result struct {
	State  domain.SyncState
	Errors []FileError
}

// Options configures one Engine (spec.md §4.5, §5).
type Options struct {
	ParseWorkers     int // 0 => runtime.NumCPU()
	EmbedWorkers     int // 0 => 4
	ExcludePatterns  []string
	IncludeLanguages []string // empty => all
	ClearAll         bool
}

func (o Options) normalized() Options {
	if o.ParseWorkers <= 0 {
		o.ParseWorkers = runtime.NumCPU()
	}
	if o.EmbedWorkers <= 0 {
		o.EmbedWorkers = 4
	}
	return o
}

// Engine drives one repository's sync lifecycle.
type Engine struct {
	repo     *vcs.Repo
	registry *parser.Registry
	graph    graphstore.Store
	vectors  *vectorstore.Store
	fts      *contextengine.FTSIndex
	cvDir    string
	opts     Options
	log      *slog.Logger
}

// New builds an Engine. graph and vectors may be nil, in which case the
// corresponding writes are skipped without adding anything to the
// returned Result's Errors (spec.md §7's degraded-continue policy). fts may
// also be nil; when set, it is kept in lockstep with the graph so the
// Context Engine's keyword fallback has something to search when the graph
// store is degraded.
func New(repo *vcs.Repo, registry *parser.Registry, graph graphstore.Store, vectors *vectorstore.Store, fts *contextengine.FTSIndex, cvDir string, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{repo: repo, registry: registry, graph: graph, vectors: vectors, fts: fts, cvDir: cvDir, opts: opts.normalized(), log: log}
}

type fileOutcome struct {
	file        domain.File
	symbolCount int
	edgeCount   int
	vectorCount int
	language    string
}

// Full walks the whole working tree and reindexes it (spec.md §4.5).
func (e *Engine) Full(ctx context.Context) (Result, error) {
	if e.opts.ClearAll {
		if e.graph != nil {
			if err := e.graph.ClearAll(ctx); err != nil {
				return Result{}, fmt.Errorf("syncengine: clear graph: %w", err)
			}
		}
	}

	include := e.languageFilter()
	paths, err := e.repo.Walk(e.opts.ExcludePatterns, include)
	if err != nil {
		return Result{}, fmt.Errorf("syncengine: walk: %w", err)
	}

	result, cancelled := e.processFiles(ctx, paths)

	if !cancelled {
		if commit, err := e.repo.HeadCommit(); err == nil {
			result.State.LastCommitSynced = commit
		}
	}
	result.State.LastSyncAt = time.Now().UTC()
	result.State.FileCount = len(paths)
	if result.State.FileHashes == nil {
		result.State.FileHashes = map[string]string{}
	}

	if err := SaveState(e.cvDir, result.State); err != nil {
		return result, err
	}
	return result, nil
}

// Incremental diffs against the last synced commit and reindexes only what
// changed (spec.md §4.5). It falls back to Full when there is no prior
// SyncState or the repository has no git history.
func (e *Engine) Incremental(ctx context.Context) (Result, error) {
	prev, err := LoadState(e.cvDir)
	if err != nil {
		return Result{}, err
	}
	if prev.LastCommitSynced == "" || !e.repo.IsRepo() {
		return e.Full(ctx)
	}

	diff, err := e.repo.ChangedFilesSince(prev.LastCommitSynced)
	if err != nil {
		return Result{}, fmt.Errorf("syncengine: diff since %s: %w", prev.LastCommitSynced, err)
	}

	var errs []FileError

	for _, path := range diff.Deleted {
		e.deleteFile(ctx, path, &errs)
	}
	for _, r := range diff.Renames {
		e.deleteFile(ctx, r.From, &errs)
	}

	var toIndex []string
	toIndex = append(toIndex, diff.Added...)
	toIndex = append(toIndex, diff.Modified...)
	for _, r := range diff.Renames {
		toIndex = append(toIndex, r.To)
	}

	// content-hash short-circuit (SPEC_FULL.md §3 [SYNC-ENGINE]): a file
	// git reports modified whose hash is unchanged from SyncState is
	// skipped, since nothing downstream of it needs rewriting.
	filtered := toIndex[:0]
	for _, path := range toIndex {
		content, err := e.repo.ReadFile(path)
		if err != nil {
			continue // handled again (and recorded) during processFiles
		}
		if hashOf(content) == prev.FileHashes[path] {
			continue
		}
		filtered = append(filtered, path)
	}

	for _, path := range filtered {
		if e.graph != nil {
			if err := e.graph.ClearByFile(ctx, path); err != nil {
				errs = append(errs, FileError{Path: path, Reason: err.Error()})
			}
		}
	}

	result, cancelled := e.processFiles(ctx, filtered)
	result.Errors = append(errs, result.Errors...)

	// Carry forward hashes, counts, and the histogram for files untouched
	// this run; deleted/renamed-from paths drop out, touched paths get
	// their freshly computed hash from processFiles.
	merged := map[string]string{}
	for path, hash := range prev.FileHashes {
		merged[path] = hash
	}
	for _, path := range diff.Deleted {
		delete(merged, path)
	}
	for _, r := range diff.Renames {
		delete(merged, r.From)
	}
	for path, hash := range result.State.FileHashes {
		merged[path] = hash
	}
	result.State.FileHashes = merged

	result.State.FileCount = prev.FileCount - len(diff.Deleted) + len(diff.Added)
	for lang, n := range prev.LanguageHistogram {
		result.State.LanguageHistogram[lang] += n
	}

	if !cancelled {
		if commit, err := e.repo.HeadCommit(); err == nil {
			result.State.LastCommitSynced = commit
		}
	} else {
		result.State.LastCommitSynced = prev.LastCommitSynced
	}
	result.State.LastSyncAt = time.Now().UTC()

	if err := SaveState(e.cvDir, result.State); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) deleteFile(ctx context.Context, path string, errs *[]FileError) {
	if e.graph != nil {
		if err := e.graph.DeleteFile(ctx, path); err != nil {
			*errs = append(*errs, FileError{Path: path, Reason: err.Error()})
		}
	}
	if e.vectors != nil {
		if err := e.vectors.DeleteByPath(ctx, path); err != nil {
			*errs = append(*errs, FileError{Path: path, Reason: err.Error()})
		}
	}
	if e.fts != nil {
		if err := e.fts.DeleteFile(ctx, path); err != nil {
			*errs = append(*errs, FileError{Path: path, Reason: err.Error()})
		}
	}
}

// processFiles runs the parse -> chunk -> (graph, vector) pipeline over
// paths with bounded concurrency (spec.md §5), returning whether ctx was
// cancelled before every file completed.
func (e *Engine) processFiles(ctx context.Context, paths []string) (Result, bool) {
	var (
		mu        sync.Mutex
		errs      []FileError
		histogram = map[string]int{}
		hashes    = map[string]string{}
		symbols   int
		edges     int
		vectors   int
		cancelled bool
		embedSem  = make(chan struct{}, e.opts.EmbedWorkers)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.ParseWorkers)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				mu.Lock()
				cancelled = true
				mu.Unlock()
				return nil
			default:
			}

			outcome, ferrs := e.processFile(gctx, path, embedSem)

			mu.Lock()
			defer mu.Unlock()
			if outcome != nil {
				histogram[outcome.language]++
				hashes[outcome.file.Path] = outcome.file.ContentHash
				symbols += outcome.symbolCount
				edges += outcome.edgeCount
				vectors += outcome.vectorCount
			}
			errs = append(errs, ferrs...)
			return nil
		})
	}
	_ = g.Wait()

	select {
	case <-ctx.Done():
		cancelled = true
	default:
	}

	return Result{
		State: domain.SyncState{
			SymbolCount:       symbols,
			EdgeCount:         edges,
			VectorCount:       vectors,
			LanguageHistogram: histogram,
			FileHashes:        hashes,
		},
		Errors: errs,
	}, cancelled
}

// processFile parses one file, chunks it, and writes the graph and vector
// stores concurrently (spec.md §5: "the two writes may run concurrently but
// must both complete before the file's counters are updated").
func (e *Engine) processFile(ctx context.Context, path string, embedSem chan struct{}) (*fileOutcome, []FileError) {
	content, err := e.repo.ReadFile(path)
	if err != nil {
		return nil, []FileError{{Path: path, Reason: fmt.Sprintf("read: %v", err)}}
	}

	language := languageFor(path)
	pf, perr := e.registry.Parse(path, content)
	var errs []FileError
	switch {
	case errors.Is(perr, parser.ErrUnsupported):
		// No front-end for this extension: not a failure, just a plain-text
		// file the Chunker will paragraph-split (spec.md §4.2).
		pf = domain.ParsedFile{Path: path, Language: language}
	case perr != nil:
		// ParseFailure is per-item (spec.md §7): log, count, continue with
		// a zero-Symbol ParsedFile so the Chunker's fallback still runs.
		errs = append(errs, FileError{Path: path, Reason: perr.Error()})
		e.log.Warn("syncengine: parse failed", "path", path, "error", perr)
		pf = domain.ParsedFile{Path: path, Language: language}
	default:
		language = pf.Language
	}

	file := domain.File{
		Path:         path,
		Language:     language,
		ContentHash:  hashOf(content),
		LastParsedAt: time.Now().UTC(),
	}

	var chunks []domain.Chunk
	if len(pf.Symbols) > 0 {
		chunks = chunk.FromParsedFile(pf, content)
	} else {
		chunks = chunk.FromPlainText(path, language, content, chunk.DefaultOptions())
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcome := &fileOutcome{file: file, language: language}

	if e.graph != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.graph.UpsertFile(ctx, file); err != nil {
				mu.Lock()
				errs = append(errs, FileError{Path: path, Reason: err.Error()})
				mu.Unlock()
				return
			}
			if err := e.graph.UpsertSymbols(ctx, path, pf.Symbols); err != nil {
				mu.Lock()
				errs = append(errs, FileError{Path: path, Reason: err.Error()})
				mu.Unlock()
				return
			}
			if err := e.graph.UpsertCallEdges(ctx, path, pf.Imports, pf.Calls); err != nil {
				mu.Lock()
				errs = append(errs, FileError{Path: path, Reason: err.Error()})
				mu.Unlock()
				return
			}
			mu.Lock()
			outcome.symbolCount = len(pf.Symbols)
			outcome.edgeCount = len(pf.Calls)
			mu.Unlock()
		}()
	}

	if e.fts != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.fts.IndexFile(ctx, path, pf.Symbols); err != nil {
				mu.Lock()
				errs = append(errs, FileError{Path: path, Reason: err.Error()})
				mu.Unlock()
			}
		}()
	}

	if e.vectors != nil && len(chunks) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			embedSem <- struct{}{}
			defer func() { <-embedSem }()

			if err := e.vectors.UpsertChunks(ctx, "code", chunks); err != nil {
				mu.Lock()
				errs = append(errs, FileError{Path: path, Reason: err.Error()})
				mu.Unlock()
				return
			}
			mu.Lock()
			outcome.vectorCount = len(chunks)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return outcome, errs
}

func (e *Engine) languageFilter() func(string) bool {
	if len(e.opts.IncludeLanguages) == 0 {
		return nil
	}
	allow := map[string]bool{}
	for _, l := range e.opts.IncludeLanguages {
		allow[l] = true
	}
	return func(relPath string) bool {
		return allow[languageFor(relPath)]
	}
}

// languageFor maps an extension to a language tag. This is intentionally
// coarse: the Parser Registry's own per-language front-end is authoritative
// once a file is actually parsed; this only pre-filters the walk.
func languageFor(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".md", ".markdown":
		return "markdown"
	default:
		return "text"
	}
}

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
