package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastResilience() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries:      3,
		InitialInterval: "1ms",
		MaxInterval:     "2ms",
		BreakerFailures: 100,
		BreakerTimeout:  "1s",
	}
}

func TestResilient(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		next := &stubEmbedder{dims: 2, fn: func(call int32, _ string) ([]float32, error) {
			if call < 3 {
				return nil, errors.New("provider unavailable")
			}
			return []float32{1, 0}, nil
		}}

		r, err := NewResilient("test", next, fastResilience())
		require.NoError(t, err)

		vec, err := r.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, vec)
		assert.EqualValues(t, 3, next.calls.Load())
		assert.Equal(t, 2, r.Dimensions())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		next := &stubEmbedder{dims: 2, fn: func(int32, string) ([]float32, error) {
			return nil, errors.New("provider unavailable")
		}}

		r, err := NewResilient("test", next, fastResilience())
		require.NoError(t, err)

		_, err = r.Embed(context.Background(), "hello")
		require.Error(t, err)
		// first attempt plus three retries
		assert.EqualValues(t, 4, next.calls.Load())
	})

	t.Run("invalid input is not retried", func(t *testing.T) {
		next := &stubEmbedder{dims: 2, fn: func(int32, string) ([]float32, error) {
			return nil, fmt.Errorf("%w: too long", ErrInvalidInput)
		}}

		r, err := NewResilient("test", next, fastResilience())
		require.NoError(t, err)

		_, err = r.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.EqualValues(t, 1, next.calls.Load())
	})

	t.Run("open breaker short-circuits", func(t *testing.T) {
		next := &stubEmbedder{dims: 2, fn: func(int32, string) ([]float32, error) {
			return nil, errors.New("provider unavailable")
		}}

		cfg := fastResilience()
		cfg.MaxRetries = 0
		cfg.BreakerFailures = 2
		r, err := NewResilient("test", next, cfg)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err = r.Embed(context.Background(), "hello")
			require.Error(t, err)
		}

		_, err = r.Embed(context.Background(), "hello")
		require.Error(t, err)
		assert.EqualValues(t, 2, next.calls.Load())
	})

	t.Run("rate limited calls still succeed", func(t *testing.T) {
		next := &stubEmbedder{dims: 1, fn: func(int32, string) ([]float32, error) {
			return []float32{1}, nil
		}}

		cfg := fastResilience()
		cfg.RatePerSecond = 1000
		cfg.Burst = 1
		r, err := NewResilient("test", next, cfg)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := r.Embed(context.Background(), "hello")
			require.NoError(t, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		next := &stubEmbedder{dims: 1, fn: func(int32, string) ([]float32, error) {
			return nil, errors.New("provider unavailable")
		}}

		r, err := NewResilient("test", next, fastResilience())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = r.Embed(ctx, "hello")
		assert.Error(t, err)
	})
}

func TestResilienceConfigValidate(t *testing.T) {
	cfg := DefaultResilienceConfig()
	assert.NoError(t, cfg.Validate())

	cfg.InitialInterval = "soon"
	assert.Error(t, cfg.Validate())

	cfg = DefaultResilienceConfig()
	cfg.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}
