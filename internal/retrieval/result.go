package retrieval

// Source tells which search path produced a result. Vector scores are
// cosine similarities and lexical scores are substring-match heuristics;
// the two scales are not comparable with each other.
type Source string

const (
	SourceVector  Source = "vector"
	SourceLexical Source = "lexical"
)

// Result is one ranked retrieval hit. Created fresh per query, never
// persisted.
type Result struct {
	ID               string   `json:"id"`
	Score            float64  `json:"score"`
	Question         string   `json:"question"`
	Answer           string   `json:"answer"`
	Context          string   `json:"context"`
	SimilarQuestions []string `json:"similar_questions,omitempty"`
	CollectionID     string   `json:"collection_id"`
	RecordID         string   `json:"record_id"`
	Source           Source   `json:"source"`
}

// ChunkResult is one ranked manual-chunk hit.
type ChunkResult struct {
	ID           string  `json:"id"`
	Score        float64 `json:"score"`
	HeaderPath   string  `json:"header_path"`
	Content      string  `json:"content"`
	ChunkIndex   int     `json:"chunk_index"`
	CollectionID string  `json:"collection_id"`
}
