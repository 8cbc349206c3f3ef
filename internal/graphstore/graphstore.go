// Package graphstore is the Graph Writer (spec.md §4.3): idempotent upsert
// primitives over a labeled property graph, built on
// github.com/neo4j/neo4j-go-driver/v5. Node and edge writes use MERGE so
// re-running a sync against an unchanged repository never produces
// duplicate nodes or edges (spec.md §3's idempotency invariant).
//
// The API shape (per-file upsert, clear-by-file, typed relationship
// writers keyed by repo+file+name) is grounded on the Neo4jStore usage in
// _examples/other_examples's randalmurphal-code-indexer reference file
// (graph.Neo4jStore.CreateCallRelationship/CreateExtendsRelationship/
// CreateImportRelationship, graph.Symbol keyed by Name+FilePath+StartLine).
package graphstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/errs"
)

// Store is the Graph Writer contract (spec.md §4.3). The last five methods
// serve the Context Engine's graph-keyword and graph-expansion phases
// (spec.md §4.6 phases 3-4); they are read-only and never mutate the graph.
type Store interface {
	UpsertFile(ctx context.Context, file domain.File) error
	DeleteFile(ctx context.Context, path string) error
	UpsertSymbols(ctx context.Context, file string, symbols []domain.Symbol) error
	UpsertCallEdges(ctx context.Context, file string, imports []domain.Import, calls []domain.Call) error
	ClearByFile(ctx context.Context, path string) error
	ClearAll(ctx context.Context) error
	Close(ctx context.Context) error

	SearchSymbolsByKeyword(ctx context.Context, keyword string, limit int) ([]domain.Symbol, error)
	SearchFilePaths(ctx context.Context, keyword string, limit int) ([]string, error)
	Callers(ctx context.Context, qualifiedName string, limit int) ([]domain.Symbol, error)
	Callees(ctx context.Context, qualifiedName string, limit int) ([]domain.Symbol, error)
	Degree(ctx context.Context, qualifiedName string) (inDegree, outDegree int, err error)
}

// Neo4jStore is the Store implementation. One instance is shared across a
// sync run; all writes for a repo are scoped by the repo's root path so a
// single Neo4j database can hold more than one indexed repository.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	repo   string
}

// New opens a Neo4j driver against url and verifies connectivity. repo
// scopes every node/edge this Store writes so multiple repositories can
// share one graph database without collisions.
func New(ctx context.Context, url, username, password, repo string) (*Neo4jStore, error) {
	var auth neo4j.AuthToken
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	} else {
		auth = neo4j.NoAuth()
	}

	driver, err := neo4j.NewDriverWithContext(url, auth)
	if err != nil {
		return nil, fmt.Errorf("graphstore: dial %s: %w", url, errors.Join(err, errs.ErrStoreUnavailable))
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: verify connectivity: %w", errors.Join(err, errs.ErrStoreUnavailable))
	}
	return &Neo4jStore{driver: driver, repo: repo}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

func (s *Neo4jStore) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

func symbolFromRecord(rec *neo4j.Record) (domain.Symbol, bool) {
	node, ok := rec.Get("s")
	if !ok {
		return domain.Symbol{}, false
	}
	n, ok := node.(neo4j.Node)
	if !ok {
		return domain.Symbol{}, false
	}
	props := n.Props
	str := func(k string) string {
		v, _ := props[k].(string)
		return v
	}
	toInt := func(k string) int {
		switch v := props[k].(type) {
		case int64:
			return int(v)
		case int:
			return v
		default:
			return 0
		}
	}
	b, _ := props["isAsync"].(bool)
	return domain.Symbol{
		QualifiedName: str("qualifiedName"),
		Name:          str("name"),
		Kind:          domain.SymbolKind(str("kind")),
		File:          str("file"),
		StartLine:     toInt("startLine"),
		EndLine:       toInt("endLine"),
		Signature:     str("signature"),
		Docstring:     str("docstring"),
		Visibility:    domain.Visibility(str("visibility")),
		IsAsync:       b,
		Complexity:    toInt("complexity"),
	}, true
}

// UpsertFile MERGEs a :File node keyed by (repo, path), refreshing its
// language/contentHash/lastParsedAt properties (spec.md §4.3).
func (s *Neo4jStore) UpsertFile(ctx context.Context, file domain.File) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (f:File {repo: $repo, path: $path})
			SET f.language = $language, f.contentHash = $contentHash, f.lastParsedAt = $lastParsedAt
		`, map[string]any{
			"repo":         s.repo,
			"path":         file.Path,
			"language":     file.Language,
			"contentHash":  file.ContentHash,
			"lastParsedAt": file.LastParsedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graphstore: upsert file %s: %w", file.Path, err)
	}
	return nil
}

// DeleteFile removes the :File node for path along with every Symbol it
// DEFINES and every CALLS/IMPLEMENTS/EXTENDS edge originating from those
// symbols (spec.md §4.3, §3's "a File exclusively owns its Symbols").
func (s *Neo4jStore) DeleteFile(ctx context.Context, path string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (f:File {repo: $repo, path: $path})
			OPTIONAL MATCH (f)-[:CV_DEFINES]->(s:Symbol)
			DETACH DELETE s
			WITH f
			DETACH DELETE f
		`, map[string]any{"repo": s.repo, "path": path})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graphstore: delete file %s: %w", path, err)
	}
	return nil
}

// ClearByFile removes a file's owned Symbols and their outgoing edges
// without deleting the :File node itself, so a subsequent UpsertFile +
// UpsertSymbols within the same incremental-sync step leaves no orphans
// (spec.md §4.5's "clearByFile(path) then full re-parse/re-embed").
func (s *Neo4jStore) ClearByFile(ctx context.Context, path string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (f:File {repo: $repo, path: $path})-[:CV_DEFINES]->(s:Symbol)
			DETACH DELETE s
		`, map[string]any{"repo": s.repo, "path": path})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graphstore: clear by file %s: %w", path, err)
	}
	return nil
}

// ClearAll wipes every node scoped to this repo, for a full rebuild
// (spec.md §4.3, invoked by the Sync Engine when `clearAll` is requested).
func (s *Neo4jStore) ClearAll(ctx context.Context) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (n) WHERE n.repo = $repo
			DETACH DELETE n
		`, map[string]any{"repo": s.repo})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graphstore: clear all: %w", err)
	}
	return nil
}

// UpsertSymbols MERGEs one :Symbol node per entry, keyed by qualifiedName
// (globally unique within a repo's graph per spec.md §3), and a CV_DEFINES
// edge from the owning :File.
func (s *Neo4jStore) UpsertSymbols(ctx context.Context, file string, symbols []domain.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(symbols))
	for _, sym := range symbols {
		rows = append(rows, map[string]any{
			"qualifiedName": sym.QualifiedName,
			"name":          sym.Name,
			"kind":          string(sym.Kind),
			"file":          sym.File,
			"startLine":     sym.StartLine,
			"endLine":       sym.EndLine,
			"signature":     sym.Signature,
			"docstring":     sym.Docstring,
			"visibility":    string(sym.Visibility),
			"isAsync":       sym.IsAsync,
			"complexity":    sym.Complexity,
		})
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (f:File {repo: $repo, path: $file})
			UNWIND $rows AS row
			MERGE (s:Symbol {repo: $repo, qualifiedName: row.qualifiedName})
			SET s.name = row.name, s.kind = row.kind, s.file = row.file,
				s.startLine = row.startLine, s.endLine = row.endLine,
				s.signature = row.signature, s.docstring = row.docstring,
				s.visibility = row.visibility, s.isAsync = row.isAsync,
				s.complexity = row.complexity
			MERGE (f)-[:CV_DEFINES]->(s)
		`, map[string]any{"repo": s.repo, "file": file, "rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graphstore: upsert symbols for %s: %w", file, err)
	}
	return nil
}

// UpsertCallEdges resolves each Call's unqualified callee name to a Symbol
// and MERGEs a CV_CALLS edge, per spec.md §4.3's tie-break: prefer a
// same-file match, then any in-repo match, else drop the edge (never a
// dangling CALLS endpoint, spec.md §3).
func (s *Neo4jStore) UpsertCallEdges(ctx context.Context, file string, imports []domain.Import, calls []domain.Call) error {
	if len(calls) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		rows = append(rows, map[string]any{
			"caller": call.Caller,
			"callee": call.Callee,
		})
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			UNWIND $rows AS row
			MATCH (caller:Symbol {repo: $repo, qualifiedName: row.caller})
			CALL {
				WITH row
				OPTIONAL MATCH (sameFile:Symbol {repo: $repo, file: $file, name: row.callee})
				WITH row, sameFile
				ORDER BY sameFile.qualifiedName
				WITH row, collect(sameFile)[0] AS sameFile
				OPTIONAL MATCH (anyInRepo:Symbol {repo: $repo, name: row.callee})
				WITH sameFile, collect(anyInRepo)[0] AS anyInRepo
				RETURN coalesce(sameFile, anyInRepo) AS callee
			}
			WITH caller, callee
			WHERE callee IS NOT NULL
			MERGE (caller)-[:CV_CALLS]->(callee)
		`, map[string]any{"repo": s.repo, "file": file, "rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graphstore: upsert call edges for %s: %w", file, err)
	}
	return nil
}

// SearchSymbolsByKeyword finds Symbols whose name or qualifiedName contains
// keyword, case-insensitively (spec.md §4.6 phase 3).
func (s *Neo4jStore) SearchSymbolsByKeyword(ctx context.Context, keyword string, limit int) ([]domain.Symbol, error) {
	sess := s.readSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Symbol {repo: $repo})
			WHERE toLower(s.name) CONTAINS toLower($keyword)
				OR toLower(s.qualifiedName) CONTAINS toLower($keyword)
			RETURN s LIMIT $limit
		`, map[string]any{"repo": s.repo, "keyword": keyword, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: search symbols for %q: %w", keyword, err)
	}

	records, _ := result.([]*neo4j.Record)
	symbols := make([]domain.Symbol, 0, len(records))
	for _, rec := range records {
		if sym, ok := symbolFromRecord(rec); ok {
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}

// SearchFilePaths finds File paths containing keyword, case-insensitively
// (spec.md §4.6 phase 3: "search File paths containing the keyword").
func (s *Neo4jStore) SearchFilePaths(ctx context.Context, keyword string, limit int) ([]string, error) {
	sess := s.readSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (f:File {repo: $repo})
			WHERE toLower(f.path) CONTAINS toLower($keyword)
			RETURN f.path AS path LIMIT $limit
		`, map[string]any{"repo": s.repo, "keyword": keyword, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: search file paths for %q: %w", keyword, err)
	}

	records, _ := result.([]*neo4j.Record)
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		if v, ok := rec.Get("path"); ok {
			if p, ok := v.(string); ok {
				paths = append(paths, p)
			}
		}
	}
	return paths, nil
}

// Callers returns up to limit Symbols with a CV_CALLS edge into
// qualifiedName (spec.md §4.6 phase 4).
func (s *Neo4jStore) Callers(ctx context.Context, qualifiedName string, limit int) ([]domain.Symbol, error) {
	return s.related(ctx, `
		MATCH (caller:Symbol)-[:CV_CALLS]->(s:Symbol {repo: $repo, qualifiedName: $qualifiedName})
		RETURN caller AS s LIMIT $limit
	`, qualifiedName, limit)
}

// Callees returns up to limit Symbols qualifiedName has a CV_CALLS edge to
// (spec.md §4.6 phase 4).
func (s *Neo4jStore) Callees(ctx context.Context, qualifiedName string, limit int) ([]domain.Symbol, error) {
	return s.related(ctx, `
		MATCH (s:Symbol {repo: $repo, qualifiedName: $qualifiedName})-[:CV_CALLS]->(callee:Symbol)
		RETURN callee AS s LIMIT $limit
	`, qualifiedName, limit)
}

func (s *Neo4jStore) related(ctx context.Context, cypher, qualifiedName string, limit int) ([]domain.Symbol, error) {
	sess := s.readSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"repo": s.repo, "qualifiedName": qualifiedName, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: related symbols for %s: %w", qualifiedName, err)
	}

	records, _ := result.([]*neo4j.Record)
	symbols := make([]domain.Symbol, 0, len(records))
	for _, rec := range records {
		if sym, ok := symbolFromRecord(rec); ok {
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}

// Degree returns qualifiedName's in/out CV_CALLS edge counts, the raw input
// to the centrality score in spec.md §4.6's localization phase.
func (s *Neo4jStore) Degree(ctx context.Context, qualifiedName string) (inDegree, outDegree int, err error) {
	sess := s.readSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Symbol {repo: $repo, qualifiedName: $qualifiedName})
			OPTIONAL MATCH (s)<-[inEdge:CV_CALLS]-()
			OPTIONAL MATCH (s)-[outEdge:CV_CALLS]->()
			RETURN count(DISTINCT inEdge) AS inDegree, count(DISTINCT outEdge) AS outDegree
		`, map[string]any{"repo": s.repo, "qualifiedName": qualifiedName})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return rec, nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("graphstore: degree for %s: %w", qualifiedName, err)
	}

	rec := result.(*neo4j.Record)
	in, _ := rec.Get("inDegree")
	out, _ := rec.Get("outDegree")
	toInt := func(v any) int {
		switch n := v.(type) {
		case int64:
			return int(n)
		case int:
			return n
		default:
			return 0
		}
	}
	return toInt(in), toInt(out), nil
}
