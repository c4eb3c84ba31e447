package storage

// Vector is one (id, embedding, metadata) triple bound for a namespace.
// Metadata carries everything needed to rebuild a full retrieval result
// without a secondary lookup, so text fields should stay short.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// ScoredPoint is a nearest-neighbor match returned by Query.
// Score is the cosine similarity, higher is more similar.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// NamespaceStats reports whether a namespace exists and how many
// vectors it holds.
type NamespaceStats struct {
	Exists      bool
	VectorCount uint64
}

// UpsertBatchSize bounds the number of points per upsert request.
const UpsertBatchSize = 100
