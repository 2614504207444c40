package retrieval

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by Retrieve when no documents have been
// ingested yet. Callers surface it as a "no documents" condition rather
// than an internal failure.
var ErrNotInitialized = errors.New("no documents have been ingested yet")

// Retriever combines embedding and vector search to find relevant passages.
// Results scoring below minScore are dropped before synthesis sees them.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
	minScore float32
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore, minScore float32) *Retriever {
	return &Retriever{embedder: embedder, store: store, minScore: minScore}
}

// Retrieve embeds the query and returns the top-K most similar records above
// the minimum score threshold, best first. Returns ErrNotInitialized when the
// store holds no records at all.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredRecord, error) {
	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotInitialized
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	// The store returns results sorted descending, so the first sub-threshold
	// score marks the cut.
	for i, s := range scored {
		if s.Score < r.minScore {
			return scored[:i], nil
		}
	}
	return scored, nil
}
