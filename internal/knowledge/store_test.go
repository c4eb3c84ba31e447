package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStore_FiltersByCollection(t *testing.T) {
	store := NewMemoryStore(
		Record{ID: "1", Question: "a", CollectionID: "7"},
		Record{ID: "2", Question: "b", CollectionID: "8"},
	)
	store.Add(Record{ID: "3", Question: "c", CollectionID: "7"})

	records, err := store.Records(context.Background(), "7")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for collection 7, got %d", len(records))
	}

	all, err := store.Records(context.Background(), "")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records without a collection filter, got %d", len(all))
	}
}

func TestFileStore_LoadsAndFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	data := `[
		{"id": "1", "question": "Qual a altura máxima do estande?", "answer": "3 metros.", "collection_id": "7"},
		{"id": "2", "question": "Onde fica o credenciamento?", "answer": "Entrada principal.", "collection_id": "9",
		 "similar_questions": ["local do credenciamento"]}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	records, err := store.Records(context.Background(), "7")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record for collection 7, got %d", len(records))
	}
	if records[0].Question != "Qual a altura máxima do estande?" {
		t.Errorf("unexpected question: %q", records[0].Question)
	}

	all, err := store.Records(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 records in total, got %d", len(all))
	}
	if len(all[1].SimilarQuestions) != 1 {
		t.Errorf("similar questions not parsed: %+v", all[1])
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	if _, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected an error for a missing records file")
	}
}

func TestFileStore_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Error("expected an error for malformed records file")
	}
}
