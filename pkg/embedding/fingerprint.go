package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"strings"
)

const (
	seedRange   = 10000
	baseSigma   = 0.2
	boostBase   = 0.5
	boostPerHit = 0.2
	keywordSpan = 10 // indices owned by each keyword
)

// keywords drive the only semantic signal of the fingerprint. Keyword i owns
// indices i, i+len(keywords), i+2*len(keywords), ... so ownership is disjoint
// and spread over the leading dimensions.
var keywords = []string{
	"python",
	"flask",
	"django",
	"react",
	"javascript",
	"node",
	"java",
	"backend",
	"frontend",
	"developer",
	"api",
	"web",
	"database",
	"sql",
	"postgresql",
	"mongodb",
	"docker",
	"aws",
	"cloud",
	"microservices",
}

// Keywords returns the boost vocabulary in table order.
func Keywords() []string {
	return append([]string(nil), keywords...)
}

// KeywordsIn returns the boost keywords occurring in text, case-insensitively,
// in table order. Substring hits count ("java" inside "javascript").
func KeywordsIn(text string) []string {
	lower := strings.ToLower(text)

	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// keywordIndices returns the dimensions owned by the keyword at position pos.
func keywordIndices(pos int) []int {
	indices := make([]int, 0, keywordSpan)
	for i := 0; i < keywordSpan; i++ {
		indices = append(indices, pos+i*len(keywords))
	}
	return indices
}

// Fingerprint maps text to a deterministic unit vector of length dims.
//
// The lowercased text seeds a Gaussian base vector; boost keywords then add
// weight to their owned dimensions so that texts sharing vocabulary land
// closer together.
func Fingerprint(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultDimensions
	}

	lower := strings.ToLower(text)

	sum := sha256.Sum256([]byte(lower))
	seed := binary.BigEndian.Uint64(sum[:8]) % seedRange
	rng := rand.New(rand.NewPCG(seed, 0))

	vec := make([]float64, dims)
	for i := range vec {
		vec[i] = rng.NormFloat64() * baseSigma
	}

	for pos, kw := range keywords {
		n := strings.Count(lower, kw)
		if n == 0 {
			continue
		}

		boost := boostBase + boostPerHit*float64(n)
		for _, idx := range keywordIndices(pos) {
			if idx < dims {
				vec[idx] += boost
			}
		}
	}

	var sq float64
	for _, x := range vec {
		sq += x * x
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		norm = 1.0
	}

	out := make([]float32, dims)
	for i, x := range vec {
		out[i] = float32(x / norm)
	}
	return out
}

// FingerprintEmbedder serves Fingerprint through the Embedder interface.
type FingerprintEmbedder struct {
	dims int
}

var _ Embedder = (*FingerprintEmbedder)(nil)

// NewFingerprintEmbedder creates a fingerprint embedder. dims <= 0 selects
// DefaultDimensions.
func NewFingerprintEmbedder(dims int) *FingerprintEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &FingerprintEmbedder{dims: dims}
}

// Embed returns the fingerprint of text. It only fails on a cancelled context.
func (f *FingerprintEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Fingerprint(text, f.dims), nil
}

// Dimensions returns the vector length.
func (f *FingerprintEmbedder) Dimensions() int {
	return f.dims
}
