package retrieval

import (
	"context"
	"fmt"

	"github.com/quilldocs/quill/internal/engine"
	"golang.org/x/sync/errgroup"
)

// EmbeddingError wraps a failure from the embedding model, carrying the
// index of the text that failed within its batch (-1 for single embeds).
type EmbeddingError struct {
	Index int
	Err   error
}

func (e *EmbeddingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("embedding text: %v", e.Err)
	}
	return fmt.Sprintf("embedding text %d: %v", e.Index, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Embedder wraps an Engine to generate text embeddings.
type Embedder struct {
	engine engine.Engine
	model  string
}

// NewEmbedder creates an Embedder using the given Engine and model name.
func NewEmbedder(e engine.Engine, model string) *Embedder {
	return &Embedder{engine: e, model: model}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, &EmbeddingError{Index: -1, Err: err}
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently,
// preserving input order. Returns nil (not error) for empty/nil input.
// A single failure aborts the whole batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the engine.

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.engine.Embed(gCtx, e.model, text)
			if err != nil {
				return &EmbeddingError{Index: i, Err: err}
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
