// Package storage provides namespace-scoped access to the Qdrant vector
// database. Each namespace maps to its own Qdrant collection, so vectors
// from different fairs can never comingle and deleting a namespace cannot
// touch any other.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore wraps the Qdrant client with connection management and
// health checks. It is constructed explicitly and injected; there is no
// lazily initialized global client.
type QdrantStore struct {
	client    *qdrant.Client
	host      string
	port      int
	dimension int
	logger    *slog.Logger
}

// NewQdrantStore creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if
// Qdrant is unreachable.
func NewQdrantStore(host string, port, dimension int, logger *slog.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	store := &QdrantStore{
		client:    client,
		host:      host,
		port:      port,
		dimension: dimension,
		logger:    logger,
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs a health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// namespaceExists reports whether a collection backs the namespace.
func (s *QdrantStore) namespaceExists(ctx context.Context, namespace string) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == namespace {
			return true, nil
		}
	}
	return false, nil
}

// EnsureNamespace creates the namespace's collection if it does not
// exist, with cosine distance and the configured dimension.
// Idempotent - safe to call multiple times.
func (s *QdrantStore) EnsureNamespace(ctx context.Context, namespace string) error {
	exists, err := s.namespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: namespace,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", namespace, err)
	}
	return nil
}

// DeleteNamespace removes all vectors under a namespace by dropping its
// collection. Used before re-indexing a fair from scratch so stale
// entries never accumulate. Deleting an absent namespace is a no-op.
func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	exists, err := s.namespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, namespace); err != nil {
		return fmt.Errorf("delete collection %s: %w", namespace, err)
	}
	s.logger.Info("namespace deleted", "namespace", namespace)
	return nil
}

// Stats reports whether the namespace exists and its vector count.
// Callers use it before querying to short-circuit into lexical fallback
// when a namespace is known to be empty.
func (s *QdrantStore) Stats(ctx context.Context, namespace string) (NamespaceStats, error) {
	exists, err := s.namespaceExists(ctx, namespace)
	if err != nil {
		return NamespaceStats{}, err
	}
	if !exists {
		return NamespaceStats{Exists: false, VectorCount: 0}, nil
	}

	collection, err := s.client.GetCollectionInfo(ctx, namespace)
	if err != nil {
		return NamespaceStats{}, fmt.Errorf("get collection %s: %w", namespace, err)
	}
	return NamespaceStats{
		Exists:      true,
		VectorCount: collection.GetPointsCount(),
	}, nil
}

// Upsert writes vectors into a namespace in batches of UpsertBatchSize.
// A batch failure aborts the whole call. The namespace is created if
// missing so ingestion never races collection setup.
func (s *QdrantStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	for i, v := range vectors {
		if len(v.Values) != s.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v.Values), s.dimension)
		}
	}

	if err := s.EnsureNamespace(ctx, namespace); err != nil {
		return err
	}

	for i := 0; i < len(vectors); i += UpsertBatchSize {
		end := min(i+UpsertBatchSize, len(vectors))
		batch := vectors[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, v := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(v.ID),
				Vectors: qdrant.NewVectors(v.Values...),
				Payload: qdrant.NewValueMap(v.Metadata),
			}
		}

		if err := s.upsertWithRetry(ctx, namespace, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d into %s: %w", i, end, namespace, err)
		}
	}

	s.logger.Debug("vectors upserted", "namespace", namespace, "count", len(vectors))
	return nil
}

// upsertWithRetry performs an upsert operation with exponential backoff.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, namespace string, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		// Wait for the write to be applied so a reindex followed by a
		// search never observes a half-built namespace.
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: namespace,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Query returns up to topK nearest neighbors from a namespace, each with
// id, cosine similarity score and payload. A missing namespace yields an
// empty result, not an error. filter restricts matches to points whose
// payload fields equal the given values.
func (s *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]ScoredPoint, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	exists, err := s.namespaceExists(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []ScoredPoint{}, nil
	}

	var qdrantFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for field, value := range filter {
			must = append(must, qdrant.NewMatch(field, value))
		}
		qdrantFilter = &qdrant.Filter{Must: must}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: namespace,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qdrantFilter,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", namespace, err)
	}

	points := make([]ScoredPoint, 0, len(results))
	for _, result := range results {
		points = append(points, ScoredPoint{
			ID:      result.Id.GetUuid(),
			Score:   float64(result.Score),
			Payload: payloadToMap(result.Payload),
		})
	}
	return points, nil
}

// payloadToMap converts a Qdrant payload back to plain Go values.
// Only the kinds the indexer writes are handled: strings, integers,
// doubles, bools and lists of strings.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch kind := value.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[key] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[key] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[key] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[key] = kind.BoolValue
		case *qdrant.Value_ListValue:
			items := make([]string, 0, len(kind.ListValue.Values))
			for _, item := range kind.ListValue.Values {
				items = append(items, item.GetStringValue())
			}
			out[key] = items
		}
	}
	return out
}
