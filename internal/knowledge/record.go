// Package knowledge defines the question/answer records the RAG core
// indexes and retrieves, and the read-only store they come from.
package knowledge

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Record is a question/answer pair belonging to one fair ("feira").
// It is the unit of both indexing and retrieval.
type Record struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	Answer           string   `json:"answer"`
	Context          string   `json:"context"`
	SimilarQuestions []string `json:"similar_questions,omitempty"`
	CollectionID     string   `json:"collection_id"`
	VectorID         string   `json:"vector_id,omitempty"`
}

// EmbeddingText concatenates the record's fields into the single string
// that gets embedded. Similar questions are appended so paraphrases of
// the canonical question land close to it in vector space.
func (r Record) EmbeddingText() string {
	var b strings.Builder
	b.WriteString("Pergunta: ")
	b.WriteString(r.Question)
	b.WriteString(" Resposta: ")
	b.WriteString(r.Answer)
	b.WriteString(" Contexto: ")
	b.WriteString(r.Context)
	for _, sq := range r.SimilarQuestions {
		b.WriteString(" Pergunta similar: ")
		b.WriteString(sq)
	}
	return b.String()
}

// QANamespace returns the vector namespace holding a fair's Q&A records.
func QANamespace(collectionID string) string {
	return "feira_qa_" + collectionID
}

// ChunkNamespace returns the vector namespace holding a fair's manual chunks.
func ChunkNamespace(collectionID string) string {
	return "feira_chunks_" + collectionID
}

// VectorID derives the vector point ID for a record. Qdrant point IDs must
// be UUIDs, so the record ID is hashed into a name-based UUID; the same
// record always maps to the same point, which makes re-upserts overwrite
// instead of accumulate.
func VectorID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("qa_"+recordID)).String()
}

// ChunkVectorID derives the vector point ID for a manual chunk.
func ChunkVectorID(collectionID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("chunk_"+collectionID+"_"+strconv.Itoa(index))).String()
}
