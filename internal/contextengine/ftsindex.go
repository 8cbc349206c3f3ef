// ftsindex.go backs the graph-keyword phase's local fallback: a SQLite
// FTS5 virtual table mirroring Symbol names/qualified names, so keyword
// lookups don't require a graph round-trip when the graph store is
// degraded (SPEC_FULL.md §3 [CONTEXT-ENGINE] expansion). Grounded on
// pkg/rag/strategy/bm25.go's database-backed keyword scoring.
package contextengine

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/docker/cv-index/internal/domain"
)

// FTSIndex is a local, disk-backed keyword index over Symbols. It is
// populated incrementally by the Sync Engine (via IndexFile/DeleteFile) and
// queried by the Context Engine's graph-keyword phase as a fallback when
// the graph store is unavailable.
type FTSIndex struct {
	db *sql.DB
}

// OpenFTSIndex opens (creating if absent) the FTS5 symbol index at path.
func OpenFTSIndex(path string) (*FTSIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("contextengine: open fts index: %w", err)
	}
	if _, err := db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS symbol_fts USING fts5(
			qualifiedName, name, kind UNINDEXED, file UNINDEXED,
			startLine UNINDEXED, endLine UNINDEXED, signature UNINDEXED,
			docstring UNINDEXED, visibility UNINDEXED
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("contextengine: create fts table: %w", err)
	}
	return &FTSIndex{db: db}, nil
}

// Close releases the underlying database handle.
func (f *FTSIndex) Close() error { return f.db.Close() }

// IndexFile replaces file's indexed symbols with symbols (spec.md §4.5's
// clear-then-rewrite per-file pattern, mirrored here for the FTS fallback
// index so it stays consistent with the graph).
func (f *FTSIndex) IndexFile(ctx context.Context, file string, symbols []domain.Symbol) error {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("contextengine: begin fts tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_fts WHERE file = ?`, file); err != nil {
		return fmt.Errorf("contextengine: clear fts for %s: %w", file, err)
	}
	for _, sym := range symbols {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbol_fts (qualifiedName, name, kind, file, startLine, endLine, signature, docstring, visibility)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sym.QualifiedName, sym.Name, string(sym.Kind), sym.File, sym.StartLine, sym.EndLine, sym.Signature, sym.Docstring, string(sym.Visibility)); err != nil {
			return fmt.Errorf("contextengine: index symbol %s: %w", sym.QualifiedName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("contextengine: commit fts tx: %w", err)
	}
	return nil
}

// DeleteFile removes every symbol indexed for file.
func (f *FTSIndex) DeleteFile(ctx context.Context, file string) error {
	if _, err := f.db.ExecContext(ctx, `DELETE FROM symbol_fts WHERE file = ?`, file); err != nil {
		return fmt.Errorf("contextengine: delete fts for %s: %w", file, err)
	}
	return nil
}

// SearchKeyword returns up to limit Symbols whose name or qualifiedName
// matches keyword (FTS5 prefix match, case-insensitive).
func (f *FTSIndex) SearchKeyword(ctx context.Context, keyword string, limit int) ([]domain.Symbol, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT qualifiedName, name, kind, file, startLine, endLine, signature, docstring, visibility
		FROM symbol_fts
		WHERE symbol_fts MATCH ?
		LIMIT ?
	`, fmt.Sprintf("%s*", keyword), limit)
	if err != nil {
		return nil, fmt.Errorf("contextengine: fts search %q: %w", keyword, err)
	}
	defer rows.Close()

	var symbols []domain.Symbol
	for rows.Next() {
		var sym domain.Symbol
		var kind, visibility string
		if err := rows.Scan(&sym.QualifiedName, &sym.Name, &kind, &sym.File, &sym.StartLine, &sym.EndLine, &sym.Signature, &sym.Docstring, &visibility); err != nil {
			return nil, fmt.Errorf("contextengine: scan fts row: %w", err)
		}
		sym.Kind = domain.SymbolKind(kind)
		sym.Visibility = domain.Visibility(visibility)
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
