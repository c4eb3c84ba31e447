package knowledge

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestEmbeddingText(t *testing.T) {
	rec := Record{
		ID:               "42",
		Question:         "Qual a altura máxima do estande?",
		Answer:           "A altura máxima permitida é de 3 metros.",
		Context:          "Regras de montagem",
		SimilarQuestions: []string{"altura máxima do estande", "qual o limite de altura"},
	}

	text := rec.EmbeddingText()

	if !strings.HasPrefix(text, "Pergunta: Qual a altura máxima do estande?") {
		t.Errorf("embedding text does not start with the question: %q", text)
	}
	if !strings.Contains(text, " Resposta: A altura máxima permitida é de 3 metros.") {
		t.Errorf("embedding text missing answer: %q", text)
	}
	if !strings.Contains(text, " Contexto: Regras de montagem") {
		t.Errorf("embedding text missing context: %q", text)
	}
	if strings.Count(text, "Pergunta similar: ") != 2 {
		t.Errorf("expected 2 similar-question segments, got %d in %q",
			strings.Count(text, "Pergunta similar: "), text)
	}
}

func TestEmbeddingText_NoSimilarQuestions(t *testing.T) {
	rec := Record{
		Question: "Onde fica o estacionamento?",
		Answer:   "No subsolo do pavilhão.",
	}

	text := rec.EmbeddingText()

	if strings.Contains(text, "Pergunta similar") {
		t.Errorf("unexpected similar-question segment in %q", text)
	}
	// Empty context still appears as a labelled empty field.
	if !strings.Contains(text, " Contexto: ") {
		t.Errorf("embedding text missing context label: %q", text)
	}
}

func TestNamespaces(t *testing.T) {
	if got := QANamespace("7"); got != "feira_qa_7" {
		t.Errorf("QANamespace: expected feira_qa_7, got %q", got)
	}
	if got := ChunkNamespace("7"); got != "feira_chunks_7" {
		t.Errorf("ChunkNamespace: expected feira_chunks_7, got %q", got)
	}
}

func TestVectorID_Deterministic(t *testing.T) {
	a := VectorID("42")
	b := VectorID("42")
	if a != b {
		t.Errorf("same record produced different IDs: %q vs %q", a, b)
	}
	if a == VectorID("43") {
		t.Error("different records produced the same ID")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("vector ID is not a valid UUID: %v", err)
	}
}

func TestChunkVectorID_Deterministic(t *testing.T) {
	a := ChunkVectorID("7", 0)
	if a != ChunkVectorID("7", 0) {
		t.Error("same chunk produced different IDs")
	}
	if a == ChunkVectorID("7", 1) {
		t.Error("different chunk indexes produced the same ID")
	}
	if a == ChunkVectorID("8", 0) {
		t.Error("different collections produced the same ID")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("chunk vector ID is not a valid UUID: %v", err)
	}
}

func TestVectorID_DistinctFromChunkID(t *testing.T) {
	// Records and chunks live in separate namespaces but must never
	// collide even if written to the same one by mistake.
	if VectorID("7_0") == ChunkVectorID("7", 0) {
		t.Error("record and chunk ID derivations collide")
	}
}
