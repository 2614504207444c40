package retrieval

import (
	"context"
	"time"
)

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity; a Qdrant-backed implementation is available for larger corpora.
//
// Contract notes shared by all backends:
//   - Upsert of one batch is atomic: a concurrent Search sees either none or
//     all of the batch's records, never a partially written batch.
//   - Search scores are cosine similarity (higher = more similar), results
//     sorted descending, ties broken by original insertion order.
//   - Reset is mutually exclusive with in-flight upserts and searches, and
//     searching an empty store returns an empty result, never an error.
type VectorStore interface {
	// Upsert stores records atomically. A duplicate record ID overwrites.
	Upsert(ctx context.Context, records []Record) error

	// Search returns the top-K most similar records, at most k of them.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	// Reset deletes all stored records. Idempotent.
	Reset(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Record is a stored chunk with its embedding and provenance metadata.
type Record struct {
	ID         string
	DocumentID string
	Sequence   int
	Text       string
	CharStart  int
	CharEnd    int
	SourceName string
	SourceExt  string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord is a Record with a similarity score attached. It is the
// ephemeral per-query retrieval result, discarded after synthesis.
type ScoredRecord struct {
	Record
	Score float32
}
