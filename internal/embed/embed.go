// Package embed defines the embedding capability consumed by the indexing
// core. Embedding production (model serving, OCR/ASR text, etc.) lives in
// the external content pipeline; this package only shapes the boundary and
// provides a zero-vector implementation for model-less runs.
package embed

import (
	"context"
)

// Embedder produces fixed-dimension embeddings for text.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension D.
	Dimensions() int

	// Name identifies the embedding source (for cache keys and logs).
	Name() string
}

// Func adapts a plain function to the Embedder interface. This is the
// injection point for the external content pipeline's embedding backend.
type Func struct {
	Fn   func(ctx context.Context, text string) ([]float32, error)
	Dim  int
	Desc string
}

// Embed implements Embedder.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.Fn(ctx, text)
}

// Dimensions implements Embedder.
func (f Func) Dimensions() int { return f.Dim }

// Name implements Embedder.
func (f Func) Name() string {
	if f.Desc == "" {
		return "func"
	}
	return f.Desc
}

// ZeroEmbedder returns all-zero vectors. It backs deployments that run
// with models disabled: vector search degrades to nothing while text
// search keeps working, and the indexing path stays exercisable in tests.
type ZeroEmbedder struct {
	dim int
}

// NewZeroEmbedder creates a ZeroEmbedder with the given dimension.
func NewZeroEmbedder(dim int) *ZeroEmbedder {
	return &ZeroEmbedder{dim: dim}
}

// Embed implements Embedder.
func (e *ZeroEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dim), nil
}

// Dimensions implements Embedder.
func (e *ZeroEmbedder) Dimensions() int { return e.dim }

// Name implements Embedder.
func (e *ZeroEmbedder) Name() string { return "zero" }
