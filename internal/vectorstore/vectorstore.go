// Package vectorstore is the Vector Writer (spec.md §4.4): batches chunks
// for embedding and upserts them into named Qdrant collections
// (defaults: code_chunks, docstrings, prd_chunks).
//
// The batch-then-upsert shape, the skip-and-log-on-embed-failure policy,
// and the file-metadata/content-hash bookkeeping are grounded on
// pkg/rag/strategy/vector_store.go's VectorStore (indexFile's
// hash-then-delete-then-chunk-then-embed-then-store pipeline,
// needsIndexing's stored-hash comparison, cleanupOrphanedDocuments).
// Swapped out for Qdrant's named-collection point API
// (github.com/qdrant/go-client) in place of the teacher's generic
// database.Document abstraction, since spec.md §4.4 mandates Qdrant
// collections directly rather than a pluggable local database.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/docker/cv-index/internal/domain"
	"github.com/docker/cv-index/internal/errs"
)

// Embedder produces one embedding vector per input text. Batches are
// capped by Options.BatchSize before a single call is made (spec.md §4.4:
// "batch size configurable, default 32").
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Options configures the Vector Writer.
type Options struct {
	// BatchSize is the number of chunks embedded per Embedder call.
	BatchSize int
	// Collections maps a logical name ("code", "docstring", "prd") to the
	// backing Qdrant collection name (spec.md §4.4's three named
	// collections: code_chunks, docstrings, prd_chunks).
	Collections map[string]string
}

// DefaultOptions matches spec.md §4.4's stated defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize: 32,
		Collections: map[string]string{
			"code":      "code_chunks",
			"docstring": "docstrings",
			"prd":       "prd_chunks",
		},
	}
}

// Store is the Vector Writer contract.
type Store struct {
	client   *qdrant.Client
	embedder Embedder
	opts     Options
}

// New dials Qdrant at host:port (gRPC) and wraps it with embedder.
func New(ctx context.Context, host string, port int, embedder Embedder, opts Options) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial %s:%d: %w", host, port, errors.Join(err, errs.ErrStoreUnavailable))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if len(opts.Collections) == 0 {
		opts.Collections = DefaultOptions().Collections
	}
	_ = ctx
	return &Store{client: client, embedder: embedder, opts: opts}, nil
}

// EnsureCollection creates collection (if absent) sized to the embedder's
// dimensionality, using cosine distance (spec.md §4.4: "Ensures a
// collection's dimensionality exists before upsert").
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %s: %w", collection, errors.Join(err, errs.ErrStoreUnavailable))
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.embedder.Dimension()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", collection, err)
	}
	return nil
}

// UpsertChunks embeds and upserts chunks into the named logical collection
// ("code", "docstring", or "prd"). Chunks whose embedding fails are
// skipped and logged (spec.md §4.4); the rest are still upserted.
func (s *Store) UpsertChunks(ctx context.Context, logicalCollection string, chunks []domain.Chunk) error {
	collection, ok := s.opts.Collections[logicalCollection]
	if !ok {
		return fmt.Errorf("vectorstore: unknown collection %q", logicalCollection)
	}
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = embeddingInput(c)
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			// A batch-level failure is a StoreUnavailable-class error per
			// spec.md §7 (not per-item); propagate it.
			return fmt.Errorf("vectorstore: embed batch: %w", errors.Join(err, errs.ErrStoreUnavailable))
		}

		var points []*qdrant.PointStruct
		for i, c := range batch {
			if i >= len(vectors) || vectors[i] == nil {
				slog.Warn("vectorstore: skipping chunk with failed embedding", "chunk_id", c.ID, "file", c.File)
				continue
			}
			points = append(points, pointFor(c, vectors[i]))
		}
		if len(points) == 0 {
			continue
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("vectorstore: upsert into %s: %w", collection, err)
		}
	}
	return nil
}

// DeleteByPath removes every point whose payload "path" equals path, from
// every configured collection (used by incremental sync's
// delete-by-payload-path step, spec.md §4.5).
func (s *Store) DeleteByPath(ctx context.Context, path string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("path", path),
		},
	}
	for _, collection := range s.opts.Collections {
		if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points:         qdrant.NewPointsSelectorFilter(filter),
		}); err != nil {
			return fmt.Errorf("vectorstore: delete by path in %s: %w", collection, err)
		}
	}
	return nil
}

// Search performs a similarity search against the named logical
// collection and returns up to limit scored payloads.
func (s *Store) Search(ctx context.Context, logicalCollection string, queryVector []float32, limit uint64) ([]*qdrant.ScoredPoint, error) {
	collection, ok := s.opts.Collections[logicalCollection]
	if !ok {
		return nil, fmt.Errorf("vectorstore: unknown collection %q", logicalCollection)
	}

	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search %s: %w", collection, err)
	}
	return resp, nil
}

// ScoredChunk is a single k-NN hit, payload decoded back into chunk shape
// (spec.md §4.6 phase 2's "map each hit to a SymbolContext").
type ScoredChunk struct {
	ID         string
	Score      float64
	Path       string
	StartLine  int
	EndLine    int
	SymbolName string
	SymbolKind string
	Language   string
	Docstring  string
	Text       string
}

// SearchText embeds query with the configured Embedder and returns up to
// limit scored hits from the named logical collection whose score is at
// least minScore (spec.md §4.6 phase 2's minScore filter).
func (s *Store) SearchText(ctx context.Context, logicalCollection, query string, limit uint64, minScore float64) ([]ScoredChunk, error) {
	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", errors.Join(err, errs.ErrStoreUnavailable))
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", errs.ErrEmbedFailure)
	}

	points, err := s.Search(ctx, logicalCollection, vectors[0], limit)
	if err != nil {
		return nil, err
	}

	hits := make([]ScoredChunk, 0, len(points))
	for _, p := range points {
		if float64(p.GetScore()) < minScore {
			continue
		}
		hits = append(hits, scoredChunkFromPoint(p))
	}
	return hits, nil
}

func scoredChunkFromPoint(p *qdrant.ScoredPoint) ScoredChunk {
	payload := p.GetPayload()
	str := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	intVal := func(k string) int {
		if v, ok := payload[k]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}
	return ScoredChunk{
		ID:         p.GetId().GetUuid(),
		Score:      float64(p.GetScore()),
		Path:       str("path"),
		StartLine:  intVal("startLine"),
		EndLine:    intVal("endLine"),
		SymbolName: str("symbolName"),
		SymbolKind: str("symbolKind"),
		Language:   str("language"),
		Docstring:  str("docstring"),
		Text:       str("text"),
	}
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// embeddingInput is the text actually sent to the embedder: the chunk's
// docstring (if any) prefixed to its body, the way the teacher's
// EmbeddingInputBuilder can optionally enrich raw chunk content
// (pkg/rag/strategy/vector_store.go's EmbeddingInputBuilder).
func embeddingInput(c domain.Chunk) string {
	if c.Docstring == "" {
		return c.Text
	}
	return c.Docstring + "\n\n" + c.Text
}

// pointFor builds the payload {path, startLine, endLine, symbolName?,
// language, docstring?, text}. No symbolKind key is written, since
// domain.Chunk has no symbol kind field; ScoredChunk.SymbolKind is
// therefore empty for points written here.
func pointFor(c domain.Chunk, vector []float32) *qdrant.PointStruct {
	payload := map[string]any{
		"path":      c.File,
		"startLine": c.StartLine,
		"endLine":   c.EndLine,
		"language":  c.Language,
		"text":      c.Text,
	}
	if c.SymbolName != "" {
		payload["symbolName"] = c.SymbolName
	}
	if c.Docstring != "" {
		payload["docstring"] = c.Docstring
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(c.ID),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(payload),
	}
}
