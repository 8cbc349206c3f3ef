// Package parser is the Parser Registry (spec.md §4.1): a per-language
// tree-sitter front-end that turns file bytes into Symbols, Imports and
// Calls. Grounded on pkg/rag/treesitter/treesitter.go's single-purpose,
// new-parser-per-call design (the underlying tree-sitter C library is not
// thread-safe) and on TaskWing's LanguageParser contract shape
// (internal/codeintel/parser/interface.go), generalized from that
// teacher's Go-only grammar to the four front-ends spec.md's expansion
// calls for.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/docker/cv-index/internal/domain"
)

// LanguageParser is the per-language front-end contract (spec.md §4.1).
type LanguageParser interface {
	// Parse extracts symbols, imports and calls from one file's bytes.
	Parse(path string, content []byte) (domain.ParsedFile, error)
	// SupportedExtensions lists the file extensions this parser handles,
	// each with a leading dot.
	SupportedExtensions() []string
	// Language returns the language identifier used to tag Symbols/Files.
	Language() string
}

// Registry maps a file extension to the language front-end that handles
// it. An unregistered extension is not an error condition — the Chunker
// treats it as a non-code file and falls back to paragraph splitting
// (spec.md §4.2).
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]LanguageParser
}

// NewRegistry returns an empty registry. Use Register to add front-ends.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]LanguageParser)}
}

// NewDefaultRegistry returns a Registry pre-populated with the Go,
// TypeScript, Python and Rust front-ends (SPEC_FULL.md §3
// [PARSER-REGISTRY] expansion).
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(newGoParser())
	r.Register(newTypeScriptParser())
	r.Register(newPythonParser())
	r.Register(newRustParser())
	return r
}

// Register adds p for each of its supported extensions, replacing any
// parser already registered for that extension.
func (r *Registry) Register(p LanguageParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.SupportedExtensions() {
		r.parsers[normalizeExt(ext)] = p
	}
}

// ParserFor returns the front-end registered for path's extension, or nil
// if none is registered.
func (r *Registry) ParserFor(path string) LanguageParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[normalizeExt(filepath.Ext(path))]
}

// SupportedExtensions returns every extension with a registered parser.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	return exts
}

// Parse routes path to its registered front-end. ErrUnsupported is
// returned (not wrapped as a fatal error) when no parser is registered;
// callers route that case to the Chunker's fallback rather than treating
// it as a spec.md §4.1 ParseFailure.
func (r *Registry) Parse(path string, content []byte) (domain.ParsedFile, error) {
	p := r.ParserFor(path)
	if p == nil {
		return domain.ParsedFile{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	pf, err := p.Parse(path, content)
	if err != nil {
		return domain.ParsedFile{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return pf, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
