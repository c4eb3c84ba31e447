// Package retrieval implements the search algorithm of the RAG core:
// similarity search with a score threshold, degrading to lexical
// substring search whenever the vector path is unavailable or returns
// nothing relevant.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/afinal/feira-rag/internal/knowledge"
	"github.com/afinal/feira-rag/internal/storage"
)

// Default search parameters, used when the configured values are zero.
const (
	DefaultTopK      = 3
	DefaultThreshold = 0.4
)

// Lexical fallback scoring. These are heuristics on their own scale,
// not cosine similarities.
const (
	lexicalBaseScore     = 0.5
	lexicalQuestionBonus = 0.3
	lexicalAnswerBonus   = 0.2
)

// QueryEmbedder produces an embedding for a query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorSearcher is the slice of the vector store the engine needs.
type VectorSearcher interface {
	Stats(ctx context.Context, namespace string) (storage.NamespaceStats, error)
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]storage.ScoredPoint, error)
}

// Engine answers retrieval requests. All provider and vector-store
// failures are absorbed into the lexical fallback; the only error Search
// can return is a failure of the knowledge store itself.
type Engine struct {
	embedder  QueryEmbedder
	vectors   VectorSearcher
	records   knowledge.Store
	threshold float64
	topK      int
	logger    *slog.Logger
}

// Params carries the tunable search parameters.
type Params struct {
	Threshold float64
	TopK      int
}

// NewEngine creates a retrieval engine. Zero params fall back to the
// defaults.
func NewEngine(embedder QueryEmbedder, vectors VectorSearcher, records knowledge.Store, params Params, logger *slog.Logger) *Engine {
	if params.Threshold <= 0 {
		params.Threshold = DefaultThreshold
	}
	if params.TopK <= 0 {
		params.TopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:  embedder,
		vectors:   vectors,
		records:   records,
		threshold: params.Threshold,
		topK:      params.TopK,
		logger:    logger,
	}
}

// Search retrieves the records most relevant to query, scoped to a
// collection when collectionID is non-empty. An empty result with a nil
// error means "nothing found", distinct from a store failure.
//
// The vector path runs only when a namespace can be resolved, the query
// embeds successfully and the namespace holds vectors; a failure at any
// of those stages routes to the lexical fallback. Callers cannot tell
// which stage degraded: the remedy is identical in all cases.
func (e *Engine) Search(ctx context.Context, query, collectionID string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = e.topK
	}

	// Without a collection there is no namespace to search; records are
	// only ever indexed under per-fair namespaces.
	if collectionID == "" {
		return e.lexicalFallback(ctx, query, collectionID, topK)
	}
	namespace := knowledge.QANamespace(collectionID)

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, falling back to lexical search",
			"collection", collectionID, "query_len", len(query), "error", err)
		return e.lexicalFallback(ctx, query, collectionID, topK)
	}

	// A failed stats call is treated the same as an absent namespace.
	stats, err := e.vectors.Stats(ctx, namespace)
	if err != nil {
		e.logger.Warn("namespace stats unavailable, falling back to lexical search",
			"namespace", namespace, "error", err)
		return e.lexicalFallback(ctx, query, collectionID, topK)
	}
	if !stats.Exists || stats.VectorCount == 0 {
		e.logger.Info("namespace absent or empty, falling back to lexical search",
			"namespace", namespace, "exists", stats.Exists)
		return e.lexicalFallback(ctx, query, collectionID, topK)
	}

	filter := map[string]string{"collection_id": collectionID}
	points, err := e.vectors.Query(ctx, namespace, vector, topK, filter)
	if err != nil {
		e.logger.Error("vector query failed, falling back to lexical search",
			"namespace", namespace, "error", err)
		return e.lexicalFallback(ctx, query, collectionID, topK)
	}

	results := make([]Result, 0, len(points))
	for _, point := range points {
		if point.Score < e.threshold {
			continue
		}
		results = append(results, resultFromPoint(point))
	}
	if len(results) == 0 {
		e.logger.Info("no vector results above threshold, falling back to lexical search",
			"namespace", namespace, "threshold", e.threshold, "candidates", len(points))
		return e.lexicalFallback(ctx, query, collectionID, topK)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// lexicalFallback scans the knowledge store for records whose question,
// answer or similar questions contain the query as a case-insensitive
// substring, ranked by a fixed heuristic.
func (e *Engine) lexicalFallback(ctx context.Context, query, collectionID string, topK int) ([]Result, error) {
	records, err := e.records.Records(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var results []Result
	for _, rec := range records {
		inQuestion := strings.Contains(strings.ToLower(rec.Question), queryLower)
		inAnswer := strings.Contains(strings.ToLower(rec.Answer), queryLower)
		inSimilar := false
		for _, sq := range rec.SimilarQuestions {
			if strings.Contains(strings.ToLower(sq), queryLower) {
				inSimilar = true
				break
			}
		}
		if !inQuestion && !inAnswer && !inSimilar {
			continue
		}

		score := lexicalBaseScore
		if inQuestion {
			score += lexicalQuestionBonus
		}
		if inAnswer {
			score += lexicalAnswerBonus
		}

		results = append(results, Result{
			ID:               "qa_" + rec.ID,
			Score:            score,
			Question:         rec.Question,
			Answer:           rec.Answer,
			Context:          rec.Context,
			SimilarQuestions: rec.SimilarQuestions,
			CollectionID:     rec.CollectionID,
			RecordID:         rec.ID,
			Source:           SourceLexical,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	e.logger.Info("lexical search finished", "collection", collectionID, "results", len(results))
	return results, nil
}

// SearchChunks retrieves manual chunks relevant to query from the
// collection's chunk namespace. Chunks have no relational mirror, so
// there is no lexical fallback: any degradation yields an empty result.
func (e *Engine) SearchChunks(ctx context.Context, query, collectionID string, topK int) ([]ChunkResult, error) {
	if topK <= 0 {
		topK = e.topK
	}
	if collectionID == "" {
		return []ChunkResult{}, nil
	}
	namespace := knowledge.ChunkNamespace(collectionID)

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed for chunk search",
			"collection", collectionID, "error", err)
		return []ChunkResult{}, nil
	}

	points, err := e.vectors.Query(ctx, namespace, vector, topK, nil)
	if err != nil {
		e.logger.Error("chunk query failed", "namespace", namespace, "error", err)
		return []ChunkResult{}, nil
	}

	results := make([]ChunkResult, 0, len(points))
	for _, point := range points {
		if point.Score < e.threshold {
			continue
		}
		results = append(results, ChunkResult{
			ID:           point.ID,
			Score:        point.Score,
			HeaderPath:   payloadString(point.Payload, "header_path"),
			Content:      payloadString(point.Payload, "content"),
			ChunkIndex:   payloadInt(point.Payload, "chunk_index"),
			CollectionID: payloadString(point.Payload, "collection_id"),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// resultFromPoint rebuilds a full result from the vector payload,
// avoiding a secondary lookup against the knowledge store.
func resultFromPoint(point storage.ScoredPoint) Result {
	return Result{
		ID:               point.ID,
		Score:            point.Score,
		Question:         payloadString(point.Payload, "q"),
		Answer:           payloadString(point.Payload, "a"),
		Context:          payloadString(point.Payload, "t"),
		SimilarQuestions: payloadStrings(point.Payload, "sq"),
		CollectionID:     payloadString(point.Payload, "collection_id"),
		RecordID:         payloadString(point.Payload, "record_id"),
		Source:           SourceVector,
	}
}

func payloadString(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

func payloadStrings(payload map[string]any, key string) []string {
	if items, ok := payload[key].([]string); ok {
		return items
	}
	return nil
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
