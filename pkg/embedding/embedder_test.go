package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder 用于测试的 Embedder，按调用次数返回结果
type stubEmbedder struct {
	dims  int
	calls atomic.Int32
	fn    func(call int32, text string) ([]float32, error)

	mu    sync.Mutex
	texts []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	call := s.calls.Add(1)
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return s.fn(call, text)
}

func (s *stubEmbedder) Dimensions() int {
	return s.dims
}

func TestEmbedBatch(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		e := NewFingerprintEmbedder(32)
		texts := []string{"python", "react", "docker", "aws", "painting"}

		out, err := EmbedBatch(context.Background(), e, texts, 2)
		require.NoError(t, err)
		require.Len(t, out, len(texts))
		for i, text := range texts {
			assert.Equal(t, Fingerprint(text, 32), out[i], "index %d", i)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		out, err := EmbedBatch(context.Background(), NewFingerprintEmbedder(8), nil, 0)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("first error fails the batch", func(t *testing.T) {
		boom := errors.New("boom")
		e := &stubEmbedder{dims: 4, fn: func(_ int32, text string) ([]float32, error) {
			if text == "bad" {
				return nil, boom
			}
			return []float32{1, 0, 0, 0}, nil
		}}

		out, err := EmbedBatch(context.Background(), e, []string{"ok", "bad", "ok"}, 1)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, out)
	})
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-7)
	assert.InDelta(t, 0.8, v[1], 1e-7)

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}
