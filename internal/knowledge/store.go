package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Store enumerates the knowledge records of a collection. It is the
// read-only boundary to the relational store owned by the web layer;
// the RAG core never writes through it.
type Store interface {
	// Records returns the records of the given collection. An empty
	// collectionID returns records from every collection.
	Records(ctx context.Context, collectionID string) ([]Record, error)
}

// MemoryStore is an in-memory Store, used in tests and for seeding demos.
type MemoryStore struct {
	records []Record
}

// NewMemoryStore creates a MemoryStore holding the given records.
func NewMemoryStore(records ...Record) *MemoryStore {
	return &MemoryStore{records: records}
}

// Add appends a record to the store.
func (s *MemoryStore) Add(r Record) {
	s.records = append(s.records, r)
}

// Records implements Store.
func (s *MemoryStore) Records(_ context.Context, collectionID string) ([]Record, error) {
	if collectionID == "" {
		out := make([]Record, len(s.records))
		copy(out, s.records)
		return out, nil
	}
	var out []Record
	for _, r := range s.records {
		if r.CollectionID == collectionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// FileStore reads records from a JSON file holding an array of Record
// objects. The file is parsed once at construction; the CLI and server
// use it as their record source.
type FileStore struct {
	records []Record
}

// NewFileStore loads records from the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse records file %s: %w", path, err)
	}
	return &FileStore{records: records}, nil
}

// Records implements Store.
func (s *FileStore) Records(_ context.Context, collectionID string) ([]Record, error) {
	if collectionID == "" {
		out := make([]Record, len(s.records))
		copy(out, s.records)
		return out, nil
	}
	var out []Record
	for _, r := range s.records {
		if r.CollectionID == collectionID {
			out = append(out, r)
		}
	}
	return out, nil
}
