// Package vector stores embedding vectors with metadata and answers
// top-k cosine similarity queries over them.
package vector

import "context"

// MetaType is the metadata key holding the record's entity type.
const MetaType = "type"

// Record is a stored vector with its metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Type returns the record's metadata type, or "" when absent.
func (r Record) Type() string {
	return metaType(r.Metadata)
}

// Match is a query hit. Score is the cosine similarity in [-1, 1].
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Filter restricts a query to records of one type. An empty Type matches all records.
type Filter struct {
	Type string
}

// Query is a top-k similarity request.
type Query struct {
	Vector []float32
	TopK   int
	Filter *Filter
}

func (q Query) filterType() string {
	if q.Filter == nil {
		return ""
	}
	return q.Filter.Type
}

// Store defines the interface for vector storage backends.
type Store interface {
	// Upsert inserts or replaces each record by id. Malformed records are
	// skipped. Metadata the backend cannot encode fails the whole call.
	Upsert(ctx context.Context, records []Record) error

	// Query returns at most TopK matches ordered by descending score.
	Query(ctx context.Context, q Query) ([]Match, error)

	// Fetch returns the subset of ids that exist.
	Fetch(ctx context.Context, ids []string) (map[string]Record, error)

	// Close releases the backend's connections
	Close() error
}

// malformed returns why r cannot be stored, or "" when it can.
func malformed(r Record, dims int) string {
	switch {
	case r.ID == "":
		return "empty id"
	case len(r.Vector) == 0:
		return "empty vector"
	case dims > 0 && len(r.Vector) != dims:
		return "dimension mismatch"
	}
	return ""
}

func metaType(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	t, _ := meta[MetaType].(string)
	return t
}

func copyVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
