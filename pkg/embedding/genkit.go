package embedding

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitEmbedder calls a registered genkit embedder, e.g. "ark/doubao-embedding-text-240715".
type GenkitEmbedder struct {
	g    *genkit.Genkit
	name string
	dims int
}

var _ Embedder = (*GenkitEmbedder)(nil)

// NewGenkitEmbedder creates an embedder bound to a genkit instance.
func NewGenkitEmbedder(g *genkit.Genkit, embedderName string, dims int) *GenkitEmbedder {
	return &GenkitEmbedder{g: g, name: embedderName, dims: dims}
}

// Embed generates the vector for text and normalizes it to unit length.
func (e *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}

	resp, err := genkit.Embed(ctx, e.g, ai.WithEmbedderName(e.name), ai.WithTextDocs(text))
	if err != nil {
		return nil, fmt.Errorf("genkit embed %s: %w", e.name, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vec := resp.Embeddings[0].Embedding
	if e.dims > 0 && len(vec) != e.dims {
		return nil, fmt.Errorf("%w: embedder %s returned %d dimensions, want %d", ErrInvalidInput, e.name, len(vec), e.dims)
	}

	return Normalize(append([]float32(nil), vec...)), nil
}

// Dimensions returns the configured vector length.
func (e *GenkitEmbedder) Dimensions() int {
	return e.dims
}
