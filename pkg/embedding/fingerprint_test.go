package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestFingerprint(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := Fingerprint("Senior Python developer with Flask", DefaultDimensions)
		b := Fingerprint("Senior Python developer with Flask", DefaultDimensions)
		assert.Equal(t, a, b)
	})

	t.Run("length", func(t *testing.T) {
		assert.Len(t, Fingerprint("hello", DefaultDimensions), 1536)
		assert.Len(t, Fingerprint("hello", 64), 64)
		assert.Len(t, Fingerprint("hello", 0), DefaultDimensions)
	})

	t.Run("unit norm", func(t *testing.T) {
		texts := []string{
			"",
			"x",
			"Python Flask backend developer",
			"python python python python python docker aws cloud",
			"Watercolor painting instructor",
		}
		for _, text := range texts {
			assert.InDelta(t, 1.0, l2(Fingerprint(text, DefaultDimensions)), 1e-6, "text %q", text)
		}
	})

	t.Run("unit norm with small dimensions", func(t *testing.T) {
		// keyword indices beyond dims are ignored
		assert.InDelta(t, 1.0, l2(Fingerprint("microservices cloud aws", 8)), 1e-6)
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t,
			Fingerprint("Python Developer", DefaultDimensions),
			Fingerprint("python developer", DefaultDimensions),
		)
	})

	t.Run("different text different vector", func(t *testing.T) {
		assert.NotEqual(t,
			Fingerprint("react frontend engineer", DefaultDimensions),
			Fingerprint("django backend engineer", DefaultDimensions),
		)
	})

	t.Run("keyword repetition increases similarity", func(t *testing.T) {
		heavy := Fingerprint("python python python docker docker docker aws aws aws", DefaultDimensions)
		light := Fingerprint("python docker aws engineer", DefaultDimensions)
		unrelated := Fingerprint("unrelated text with no keywords", DefaultDimensions)

		assert.Less(t, cosine(heavy, unrelated), cosine(heavy, light))
	})

	t.Run("shared vocabulary clusters", func(t *testing.T) {
		job := Fingerprint("Python Flask backend developer", DefaultDimensions)
		match := Fingerprint("Senior Python developer with Flask and REST API experience", DefaultDimensions)
		other := Fingerprint("Watercolor painting instructor", DefaultDimensions)

		assert.Greater(t, cosine(job, match), cosine(job, other))
	})
}

func TestKeywordIndices(t *testing.T) {
	seen := make(map[int]string)
	for pos, kw := range keywords {
		indices := keywordIndices(pos)
		require.Len(t, indices, keywordSpan)
		for _, idx := range indices {
			owner, dup := seen[idx]
			assert.False(t, dup, "index %d owned by %s and %s", idx, owner, kw)
			seen[idx] = kw
		}
	}
	assert.Len(t, keywords, 20)
}

func TestKeywordsIn(t *testing.T) {
	assert.Equal(t, []string{"python", "flask", "backend", "developer"}, KeywordsIn("Python Flask backend developer"))
	assert.Equal(t, []string{"javascript", "java"}, KeywordsIn("JavaScript"))
	assert.Empty(t, KeywordsIn("Watercolor painting instructor"))
}

func TestFingerprintEmbedder(t *testing.T) {
	e := NewFingerprintEmbedder(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())

	vec, err := e.Embed(context.Background(), "Docker and AWS")
	require.NoError(t, err)
	assert.Equal(t, Fingerprint("docker and aws", DefaultDimensions), vec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(ctx, "Docker and AWS")
	assert.ErrorIs(t, err, context.Canceled)
}
