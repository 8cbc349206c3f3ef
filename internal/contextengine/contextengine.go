// Package contextengine is the Context Engine (spec.md §4.6) — the heart
// of the core: it turns a query string and an ActiveContext into a
// token-bounded ContextSnapshot by fusing explicit files, a vector
// similarity search, a graph/FTS keyword search, and a one-hop graph
// expansion, then localizing the result under a token budget.
//
// The multi-phase retrieve-then-fuse shape is grounded on
// pkg/rag/manager.go's orchestration of independent retrieval strategies
// into one fused result; the localization/budget-enforcement step has no
// direct teacher analogue and is new code in the teacher's idiom (small
// focused functions, %w-wrapped errors where errors are even returned).
package contextengine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/graphstore"
	"github.com/docker/cv-index/internal/vectorstore"
)

// FileReader loads file bytes by repo-relative path. *vcs.Repo satisfies
// this, but the Context Engine depends only on the narrow slice it needs.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Options mirrors internal/config.ContextConfig's field shape so the two
// can be wired together without an adapter (spec.md §4.6's ContextOptions).
type Options struct {
	TokenLimit       int
	MaxChunks        int
	MaxDepth         int
	MinScore         float64
	MaxGraphResults  int
	LocalizationSlop float64
}

// DefaultOptions matches spec.md §4.6's stated defaults.
func DefaultOptions() Options {
	return Options{
		TokenLimit:       8000,
		MaxChunks:        10,
		MaxDepth:         2,
		MinScore:         0.5,
		MaxGraphResults:  5,
		LocalizationSlop: 0.9,
	}
}

// Engine builds ContextSnapshots. graph, vectors and fts may each be nil;
// a nil collaborator's phase is skipped rather than failing the build
// (spec.md §4.6's failure semantics).
type Engine struct {
	graph   graphstore.Store
	vectors *vectorstore.Store
	fts     *FTSIndex
	files   FileReader
	opts    Options
	log     *slog.Logger
}

// New builds an Engine.
func New(graph graphstore.Store, vectors *vectorstore.Store, fts *FTSIndex, files FileReader, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{graph: graph, vectors: vectors, fts: fts, files: files, opts: opts, log: log}
}

// fileCache memoizes ReadFile calls within one Build invocation, since
// the same path can surface from more than one phase.
type fileCache struct {
	reader  FileReader
	content map[string]string
	missing map[string]bool
}

func newFileCache(reader FileReader) *fileCache {
	return &fileCache{reader: reader, content: map[string]string{}, missing: map[string]bool{}}
}

func (c *fileCache) read(path string) (string, bool) {
	if c.missing[path] {
		return "", false
	}
	if content, ok := c.content[path]; ok {
		return content, true
	}
	if c.reader == nil {
		c.missing[path] = true
		return "", false
	}
	raw, err := c.reader.ReadFile(path)
	if err != nil {
		c.missing[path] = true
		return "", false
	}
	content := string(raw)
	c.content[path] = content
	return content, true
}

// slice returns the 1-indexed, inclusive [start,end] lines of path's
// content, or "" if the file or range is unavailable.
func (c *fileCache) slice(path string, start, end int) string {
	content, ok := c.read(path)
	if !ok {
		return ""
	}
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// Build runs every phase and returns a token-bounded ContextSnapshot
// (spec.md §4.6). It never returns a non-nil error for a degraded or
// absent collaborator; only ctx cancellation propagates.
func (e *Engine) Build(ctx context.Context, query string, ac domain.ActiveContext) (domain.ContextSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContextSnapshot{}, fmt.Errorf("contextengine: %w", err)
	}

	cache := newFileCache(e.files)

	files := e.explicitFiles(ac, cache)
	symbols, seen := e.vectorPhase(ctx, query)
	symbols = e.graphKeywordPhase(ctx, query, symbols, seen)
	keywordFiles := e.keywordFilePhase(ctx, query, files, cache)
	files = append(files, keywordFiles...)
	symbols, relationships := e.graphExpansionPhase(ctx, symbols, seen, cache)

	for i := range symbols {
		if symbols[i].Code == "" {
			symbols[i].Code = cache.slice(symbols[i].Symbol.File, symbols[i].Symbol.StartLine, symbols[i].Symbol.EndLine)
		}
	}

	snapshot := domain.ContextSnapshot{Files: files, Symbols: symbols, Relationships: relationships}
	snapshot.TokenCount = estimateTokens(snapshot)

	if snapshot.TokenCount > e.opts.TokenLimit {
		snapshot = e.localize(ctx, snapshot)
	}

	return snapshot, nil
}

// explicitFiles is phase 1 (spec.md §4.6).
func (e *Engine) explicitFiles(ac domain.ActiveContext, cache *fileCache) []domain.FileContext {
	var files []domain.FileContext
	for _, path := range ac.ExplicitFiles {
		content, ok := cache.read(path)
		if !ok {
			e.log.Warn("contextengine: explicit file unreadable", "path", path)
			continue
		}
		files = append(files, domain.FileContext{Path: path, Content: content, RelevanceScore: 1.0, Source: "explicit"})
	}
	return files
}

// vectorPhase is phase 2 (spec.md §4.6). It returns the deduplicated
// SymbolContexts found and the set of synthetic qualifiedNames already
// seen, for the later phases to dedupe against.
func (e *Engine) vectorPhase(ctx context.Context, query string) ([]domain.SymbolContext, map[string]bool) {
	seen := map[string]bool{}
	if e.vectors == nil || strings.TrimSpace(query) == "" {
		return nil, seen
	}

	hits, err := e.vectors.SearchText(ctx, "code", query, uint64(e.opts.MaxChunks), e.opts.MinScore)
	if err != nil {
		e.log.Warn("contextengine: vector phase skipped", "error", err)
		return nil, seen
	}

	var symbols []domain.SymbolContext
	for _, hit := range hits {
		qualifiedName := syntheticQualifiedName(hit.Path, hit.SymbolName, hit.StartLine)
		if seen[qualifiedName] {
			continue
		}
		seen[qualifiedName] = true
		symbols = append(symbols, domain.SymbolContext{
			Symbol: domain.Symbol{
				QualifiedName: qualifiedName,
				Name:          hit.SymbolName,
				Kind:          domain.SymbolKind(hit.SymbolKind),
				File:          hit.Path,
				StartLine:     hit.StartLine,
				EndLine:       hit.EndLine,
				Docstring:     hit.Docstring,
			},
			RelevanceScore: hit.Score,
			Source:         "vector",
		})
	}
	return symbols, seen
}

// graphKeywordPhase is the symbol-search half of phase 3 (spec.md §4.6).
// seen is updated in place so later phases keep deduping against it.
func (e *Engine) graphKeywordPhase(ctx context.Context, query string, symbols []domain.SymbolContext, seen map[string]bool) []domain.SymbolContext {
	keywords := topKeywords(query)
	if len(keywords) == 0 {
		return symbols
	}

	perKeyword := perKeywordLimit(e.opts.MaxGraphResults, len(symbols), len(keywords))
	for _, keyword := range keywords {
		hits := e.searchSymbolsByKeyword(ctx, keyword, perKeyword)
		for _, sym := range hits {
			if seen[sym.QualifiedName] {
				continue
			}
			seen[sym.QualifiedName] = true
			symbols = append(symbols, domain.SymbolContext{Symbol: sym, RelevanceScore: 0.6, Source: "keyword"})
		}
	}
	return symbols
}

// keywordFilePhase is the file-path-search half of phase 3: for each
// keyword, search File paths containing it and include their contents if
// not already present (spec.md §4.6).
func (e *Engine) keywordFilePhase(ctx context.Context, query string, existingFiles []domain.FileContext, cache *fileCache) []domain.FileContext {
	if e.graph == nil {
		return nil
	}
	keywords := topKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	haveFile := map[string]bool{}
	for _, f := range existingFiles {
		haveFile[f.Path] = true
	}

	var newFiles []domain.FileContext
	for _, keyword := range keywords {
		paths, err := e.graph.SearchFilePaths(ctx, keyword, 5)
		if err != nil {
			continue
		}
		for _, path := range paths {
			if haveFile[path] {
				continue
			}
			content, ok := cache.read(path)
			if !ok {
				continue
			}
			haveFile[path] = true
			newFiles = append(newFiles, domain.FileContext{Path: path, Content: content, RelevanceScore: 0.5, Source: "keyword"})
		}
	}
	return newFiles
}

// topKeywords returns up to the first three keywords extracted from query
// (spec.md §4.6 phase 3: "For the top three keywords").
func topKeywords(query string) []string {
	keywords := extractKeywords(query)
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return keywords
}

// perKeywordLimit implements spec.md §4.6 phase 3's
// "limit = ceil(maxGraphResults/keywordCount) where maxGraphResults = 5
// if vector already returned ≥ 5 else 15" (15 is 3x the configured
// default of 5, kept proportional when the default is overridden).
func perKeywordLimit(configuredMax, vectorHits, keywordCount int) int {
	maxGraphResults := configuredMax
	if vectorHits < 5 {
		maxGraphResults = configuredMax * 3
	}
	return int(math.Ceil(float64(maxGraphResults) / float64(keywordCount)))
}

func (e *Engine) searchSymbolsByKeyword(ctx context.Context, keyword string, limit int) []domain.Symbol {
	if e.graph != nil {
		hits, err := e.graph.SearchSymbolsByKeyword(ctx, keyword, limit)
		if err == nil {
			return hits
		}
		e.log.Warn("contextengine: graph keyword search failed", "keyword", keyword, "error", err)
	}
	if e.fts != nil {
		hits, err := e.fts.SearchKeyword(ctx, keyword, limit)
		if err == nil {
			return hits
		}
		e.log.Warn("contextengine: fts keyword search failed", "keyword", keyword, "error", err)
	}
	return nil
}

// graphExpansionPhase is phase 4 (spec.md §4.6): for up to the five
// highest-scoring symbols, fetch callers/callees and record CALLS
// relationships. It returns the (possibly grown) symbols slice alongside
// the relationships discovered.
func (e *Engine) graphExpansionPhase(ctx context.Context, symbols []domain.SymbolContext, seen map[string]bool, cache *fileCache) ([]domain.SymbolContext, []domain.Relationship) {
	if e.graph == nil || len(symbols) == 0 {
		return symbols, nil
	}

	ranked := append([]domain.SymbolContext(nil), symbols...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].RelevanceScore > ranked[j].RelevanceScore })
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	var relationships []domain.Relationship
	usage := estimateTokens(domain.ContextSnapshot{Symbols: symbols})

	for _, sc := range ranked {
		callers, err := e.graph.Callers(ctx, sc.Symbol.QualifiedName, 3)
		if err != nil {
			e.log.Warn("contextengine: callers lookup failed", "symbol", sc.Symbol.QualifiedName, "error", err)
			callers = nil
		}
		callees, err := e.graph.Callees(ctx, sc.Symbol.QualifiedName, 3)
		if err != nil {
			e.log.Warn("contextengine: callees lookup failed", "symbol", sc.Symbol.QualifiedName, "error", err)
			callees = nil
		}

		for _, caller := range callers {
			relationships = append(relationships, domain.Relationship{From: caller.QualifiedName, Type: "CALLS", To: sc.Symbol.QualifiedName})
			if seen[caller.QualifiedName] {
				continue
			}
			if float64(usage) >= 0.8*float64(e.opts.TokenLimit) {
				continue
			}
			seen[caller.QualifiedName] = true
			code := cache.slice(caller.File, caller.StartLine, caller.EndLine)
			entry := domain.SymbolContext{Symbol: caller, RelevanceScore: 0.4, Source: "graph", Code: code}
			symbols = append(symbols, entry)
			usage += estimateTokens(domain.ContextSnapshot{Symbols: []domain.SymbolContext{entry}})
		}

		for _, callee := range callees {
			relationships = append(relationships, domain.Relationship{From: sc.Symbol.QualifiedName, Type: "CALLS", To: callee.QualifiedName})
			if seen[callee.QualifiedName] {
				continue
			}
			seen[callee.QualifiedName] = true
			code := cache.slice(callee.File, callee.StartLine, callee.EndLine)
			symbols = append(symbols, domain.SymbolContext{Symbol: callee, RelevanceScore: 0.4, Source: "graph", Code: code})
		}
	}

	return symbols, relationships
}

func syntheticQualifiedName(path, symbolName string, startLine int) string {
	if symbolName == "" {
		return fmt.Sprintf("%s:%d", path, startLine)
	}
	return fmt.Sprintf("%s#%s", path, symbolName)
}

const relationshipCharCost = 50

// estimateTokens implements spec.md §4.6 phase 5: chars/4 (rounded up)
// over file contents, per-symbol code+header text, and a flat 50-char
// cost per relationship.
func estimateTokens(snapshot domain.ContextSnapshot) int {
	total := 0
	for _, f := range snapshot.Files {
		total += ceilDiv(len(f.Content), 4)
	}
	for _, s := range snapshot.Symbols {
		header := fmt.Sprintf("%s (%s) — %s:%d", s.Symbol.QualifiedName, s.Symbol.Kind, s.Symbol.File, s.Symbol.StartLine)
		total += ceilDiv(len(header)+len(s.Code), 4)
	}
	total += len(snapshot.Relationships) * ceilDiv(relationshipCharCost, 4)
	return total
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
