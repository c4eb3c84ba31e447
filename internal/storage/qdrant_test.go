//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

// setupTestStore connects to a local Qdrant instance. Skips the test
// when Qdrant is not running.
func setupTestStore(t *testing.T) *QdrantStore {
	store, err := NewQdrantStore("localhost", 6334, testDimension, nil)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	return store
}

// testNamespace returns a unique namespace and registers its cleanup.
func testNamespace(t *testing.T, store *QdrantStore) string {
	namespace := "feira_qa_test_" + uuid.New().String()
	t.Cleanup(func() {
		_ = store.DeleteNamespace(context.Background(), namespace)
	})
	return namespace
}

func testVector(id string, fill float32, metadata map[string]any) Vector {
	values := make([]float32, testDimension)
	for i := range values {
		values[i] = fill
	}
	return Vector{ID: id, Values: values, Metadata: metadata}
}

func TestUpsertAndQueryRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	namespace := testNamespace(t, store)

	vec := testVector(uuid.New().String(), 0.1, map[string]any{
		"q":             "Qual a altura máxima do estande?",
		"a":             "3 metros.",
		"t":             "Regras de montagem",
		"collection_id": "7",
		"record_id":     "1",
	})
	require.NoError(t, store.Upsert(ctx, namespace, []Vector{vec}))

	results, err := store.Query(ctx, namespace, vec.Values, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, vec.ID, result.ID)
	assert.Greater(t, result.Score, 0.9, "identical vectors should score near 1")
	assert.Equal(t, "Qual a altura máxima do estande?", result.Payload["q"])
	assert.Equal(t, "3 metros.", result.Payload["a"])
	assert.Equal(t, "7", result.Payload["collection_id"])
}

func TestQueryWithFilter(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	namespace := testNamespace(t, store)

	vectors := []Vector{
		testVector(uuid.New().String(), 0.1, map[string]any{"collection_id": "7", "record_id": "1"}),
		testVector(uuid.New().String(), 0.1, map[string]any{"collection_id": "9", "record_id": "2"}),
	}
	require.NoError(t, store.Upsert(ctx, namespace, vectors))

	results, err := store.Query(ctx, namespace, vectors[0].Values, 10, map[string]string{"collection_id": "7"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Payload["record_id"])
}

func TestQueryMissingNamespace(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	query := make([]float32, testDimension)
	results, err := store.Query(context.Background(), "feira_qa_absent_"+uuid.New().String(), query, 10, nil)
	require.NoError(t, err, "a missing namespace is not an error")
	assert.Empty(t, results)
}

func TestStats(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	namespace := testNamespace(t, store)

	stats, err := store.Stats(ctx, namespace)
	require.NoError(t, err)
	assert.False(t, stats.Exists)

	require.NoError(t, store.Upsert(ctx, namespace, []Vector{
		testVector(uuid.New().String(), 0.2, map[string]any{"record_id": "1"}),
	}))

	stats, err = store.Stats(ctx, namespace)
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, uint64(1), stats.VectorCount)
}

func TestDeleteNamespace(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	namespace := testNamespace(t, store)

	require.NoError(t, store.Upsert(ctx, namespace, []Vector{
		testVector(uuid.New().String(), 0.2, map[string]any{"record_id": "1"}),
	}))
	require.NoError(t, store.DeleteNamespace(ctx, namespace))

	stats, err := store.Stats(ctx, namespace)
	require.NoError(t, err)
	assert.False(t, stats.Exists, "delete must drop the whole namespace")

	// Deleting again is a no-op, not an error.
	require.NoError(t, store.DeleteNamespace(ctx, namespace))
}

func TestNamespaceIsolation(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	nsA := testNamespace(t, store)
	nsB := testNamespace(t, store)

	vec := testVector(uuid.New().String(), 0.3, map[string]any{"record_id": "1"})
	require.NoError(t, store.Upsert(ctx, nsA, []Vector{vec}))

	results, err := store.Query(ctx, nsB, vec.Values, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "vectors must not leak across namespaces")
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	namespace := testNamespace(t, store)
	wrong := Vector{ID: uuid.New().String(), Values: make([]float32, testDimension+1)}

	err := store.Upsert(context.Background(), namespace, []Vector{wrong})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQueryRejectsWrongDimension(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	namespace := testNamespace(t, store)
	_, err := store.Query(context.Background(), namespace, make([]float32, testDimension+1), 10, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestUpsertLargeBatch(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	namespace := testNamespace(t, store)

	// More than two internal batches of 100.
	vectors := make([]Vector, 250)
	for i := range vectors {
		vectors[i] = testVector(uuid.New().String(), 0.5, map[string]any{"record_id": "r"})
	}
	require.NoError(t, store.Upsert(ctx, namespace, vectors))

	stats, err := store.Stats(ctx, namespace)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), stats.VectorCount)
}

func TestUpsertOverwritesSameID(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	namespace := testNamespace(t, store)
	id := uuid.New().String()

	require.NoError(t, store.Upsert(ctx, namespace, []Vector{
		testVector(id, 0.1, map[string]any{"a": "primeira versão"}),
	}))
	require.NoError(t, store.Upsert(ctx, namespace, []Vector{
		testVector(id, 0.1, map[string]any{"a": "segunda versão"}),
	}))

	stats, err := store.Stats(ctx, namespace)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.VectorCount, "re-upserting the same ID must overwrite")
}
