// Package embedding turns text into fixed-length unit vectors.
//
// The deterministic fingerprint is the default backend. External providers
// (genkit, OpenAI) satisfy the same Embedder contract and are usually wrapped
// in Resilient and Cached before being handed to the matching engine.
package embedding

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultDimensions is the vector length used when none is configured.
const DefaultDimensions = 1536

// ErrInvalidInput marks failures caused by the request itself. Errors wrapping
// it are never retried.
var ErrInvalidInput = errors.New("invalid embedding input")

// Embedder converts text into a unit-length vector of Dimensions() values.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// EmbedBatch embeds every text independently. The output slice is index-aligned
// with texts; the first failure cancels the remaining work.
func EmbedBatch(ctx context.Context, e Embedder, texts []string, concurrency int) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(ctx, text)
			if err != nil {
				return errors.WithMessagef(err, "embed text %d", i)
			}
			out[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize scales v to unit L2 norm in place. A zero vector is left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}

	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
