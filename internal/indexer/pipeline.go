// Package indexer orchestrates ingestion: knowledge records and manual
// chunks are embedded and written into their collection's namespaces.
// Re-indexing always deletes the namespace first, so two runs over
// unchanged records end with the same vector count.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/afinal/feira-rag/internal/knowledge"
	"github.com/afinal/feira-rag/internal/manual"
	"github.com/afinal/feira-rag/internal/storage"
)

// metadataFieldLimit bounds text fields stored as vector metadata.
// The vector store imposes per-record payload size limits; retrieval
// only needs enough text to present a result.
const metadataFieldLimit = 1000

// Result contains statistics about an indexing operation.
type Result struct {
	Total     int
	Succeeded int
	Failed    []FailedRecord
	Duration  time.Duration
}

// FailedRecord represents a record that could not be indexed.
type FailedRecord struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// Embedder is the slice of the embedding generator the pipeline needs.
type Embedder interface {
	EmbedRecord(ctx context.Context, rec knowledge.Record) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the slice of the vector store the pipeline needs.
type VectorIndex interface {
	DeleteNamespace(ctx context.Context, namespace string) error
	EnsureNamespace(ctx context.Context, namespace string) error
	Upsert(ctx context.Context, namespace string, vectors []storage.Vector) error
}

// Pipeline orchestrates embedding and vector-store writes.
type Pipeline struct {
	records  knowledge.Store
	embedder Embedder
	index    VectorIndex
	chunker  *manual.Chunker
	logger   *slog.Logger
}

// NewPipeline creates an indexing pipeline with the given components.
func NewPipeline(records knowledge.Store, embedder Embedder, index VectorIndex, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		records:  records,
		embedder: embedder,
		index:    index,
		chunker:  manual.NewChunker(),
		logger:   logger,
	}
}

// Reindex rebuilds the Q&A namespace of a collection from its knowledge
// records. The namespace is deleted up front; a record whose embedding
// fails is counted and skipped while the rest proceed.
func (p *Pipeline) Reindex(ctx context.Context, collectionID string) (*Result, error) {
	start := time.Now()
	namespace := knowledge.QANamespace(collectionID)

	records, err := p.records.Records(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("load records for collection %s: %w", collectionID, err)
	}
	result := &Result{Total: len(records)}
	p.logger.Info("starting reindex", "collection", collectionID, "records", len(records))

	if err := p.index.DeleteNamespace(ctx, namespace); err != nil {
		return nil, fmt.Errorf("clear namespace %s: %w", namespace, err)
	}
	if len(records) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}
	if err := p.index.EnsureNamespace(ctx, namespace); err != nil {
		return nil, fmt.Errorf("ensure namespace %s: %w", namespace, err)
	}

	vectors := make([]storage.Vector, 0, len(records))
	for _, rec := range records {
		vec, err := p.embedder.EmbedRecord(ctx, rec)
		if err != nil {
			p.logger.Warn("failed to embed record", "record", rec.ID, "error", err)
			result.Failed = append(result.Failed, FailedRecord{
				RecordID: rec.ID,
				Reason:   err.Error(),
			})
			continue
		}
		vectors = append(vectors, storage.Vector{
			ID:     knowledge.VectorID(rec.ID),
			Values: vec,
			Metadata: map[string]any{
				"q":             truncate(rec.Question),
				"a":             truncate(rec.Answer),
				"t":             truncate(rec.Context),
				"sq":            toAnySlice(rec.SimilarQuestions),
				"collection_id": rec.CollectionID,
				"record_id":     rec.ID,
			},
		})
		result.Succeeded++
	}

	if err := p.index.Upsert(ctx, namespace, vectors); err != nil {
		return nil, fmt.Errorf("upsert into %s: %w", namespace, err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("reindex complete",
		"collection", collectionID,
		"succeeded", result.Succeeded,
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	return result, nil
}

// IndexManual rebuilds the chunk namespace of a collection from a
// rulebook document. Same delete-then-upsert semantics as Reindex.
func (p *Pipeline) IndexManual(ctx context.Context, collectionID string, source []byte) (*Result, error) {
	start := time.Now()
	namespace := knowledge.ChunkNamespace(collectionID)

	chunks, err := p.chunker.Chunk(source)
	if err != nil {
		return nil, fmt.Errorf("chunk manual for collection %s: %w", collectionID, err)
	}
	result := &Result{Total: len(chunks)}
	p.logger.Info("starting manual indexing", "collection", collectionID, "chunks", len(chunks))

	if err := p.index.DeleteNamespace(ctx, namespace); err != nil {
		return nil, fmt.Errorf("clear namespace %s: %w", namespace, err)
	}
	if len(chunks) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}
	if err := p.index.EnsureNamespace(ctx, namespace); err != nil {
		return nil, fmt.Errorf("ensure namespace %s: %w", namespace, err)
	}

	vectors := make([]storage.Vector, 0, len(chunks))
	for _, chunk := range chunks {
		// Content carries the header path prefix so the embedding keeps
		// section context.
		vec, err := p.embedder.EmbedQuery(ctx, chunk.Content)
		if err != nil {
			p.logger.Warn("failed to embed chunk",
				"collection", collectionID, "chunk", chunk.Index, "error", err)
			result.Failed = append(result.Failed, FailedRecord{
				RecordID: fmt.Sprintf("chunk_%d", chunk.Index),
				Reason:   err.Error(),
			})
			continue
		}
		vectors = append(vectors, storage.Vector{
			ID:     knowledge.ChunkVectorID(collectionID, chunk.Index),
			Values: vec,
			Metadata: map[string]any{
				"header_path":   chunk.HeaderPath,
				"chunk_index":   chunk.Index,
				"content":       truncate(chunk.RawContent),
				"collection_id": collectionID,
			},
		})
		result.Succeeded++
	}

	if err := p.index.Upsert(ctx, namespace, vectors); err != nil {
		return nil, fmt.Errorf("upsert into %s: %w", namespace, err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("manual indexing complete",
		"collection", collectionID,
		"succeeded", result.Succeeded,
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	return result, nil
}

// truncate bounds s to metadataFieldLimit bytes without splitting a
// multi-byte character. The payload travels as a protobuf string, which
// rejects invalid UTF-8.
func truncate(s string) string {
	if len(s) <= metadataFieldLimit {
		return s
	}
	cut := metadataFieldLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
