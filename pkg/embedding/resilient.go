package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Zereker/talentmatch/pkg/log"
)

// ResilienceConfig bounds how an external provider is called.
type ResilienceConfig struct {
	MaxRetries      int     `toml:"max_retries"`
	InitialInterval string  `toml:"initial_interval"`
	MaxInterval     string  `toml:"max_interval"`
	RatePerSecond   float64 `toml:"rate_per_second"` // 0 disables rate limiting
	Burst           int     `toml:"burst"`
	BreakerFailures uint32  `toml:"breaker_failures"` // consecutive failures before the breaker opens
	BreakerTimeout  string  `toml:"breaker_timeout"`
}

// DefaultResilienceConfig returns the settings used when a section is omitted.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries:      3,
		InitialInterval: "200ms",
		MaxInterval:     "2s",
		Burst:           1,
		BreakerFailures: 5,
		BreakerTimeout:  "30s",
	}
}

// Validate checks resilience configuration
func (c *ResilienceConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	for name, v := range map[string]string{
		"initial_interval": c.InitialInterval,
		"max_interval":     c.MaxInterval,
		"breaker_timeout":  c.BreakerTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s is invalid: %v", name, err)
		}
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("rate_per_second must not be negative")
	}
	return nil
}

// Resilient wraps a remote Embedder with rate limiting, a circuit breaker and
// bounded exponential retries. Errors wrapping ErrInvalidInput and an open
// breaker are returned without retrying.
type Resilient struct {
	next       Embedder
	logger     *slog.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	initial    time.Duration
	maxWait    time.Duration
}

var _ Embedder = (*Resilient)(nil)

// NewResilient wraps next. name identifies the breaker in logs.
func NewResilient(name string, next Embedder, cfg ResilienceConfig) (*Resilient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid resilience config")
	}

	r := &Resilient{
		next:       next,
		logger:     log.Logger("embedding").With("provider", name),
		maxRetries: cfg.MaxRetries,
		initial:    parseDurationOr(cfg.InitialInterval, 200*time.Millisecond),
		maxWait:    parseDurationOr(cfg.MaxInterval, 2*time.Second),
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: parseDurationOr(cfg.BreakerTimeout, 30*time.Second),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// caller mistakes say nothing about provider health
			return err == nil || errors.Is(err, ErrInvalidInput)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})

	return r, nil
}

// Embed calls the wrapped provider, retrying transient failures.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var (
		vec      []float32
		attempts int
	)

	op := func() error {
		attempts++

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		out, err := r.breaker.Execute(func() (interface{}, error) {
			return r.next.Embed(ctx, text)
		})
		if err != nil {
			if ctx.Err() != nil ||
				errors.Is(err, ErrInvalidInput) ||
				errors.Is(err, gobreaker.ErrOpenState) ||
				errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			r.logger.Debug("embed attempt failed", "attempt", attempts, "error", err)
			return err
		}

		vec = out.([]float32)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.maxWait
	b.MaxElapsedTime = 0
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		r.logger.Warn("embed failed", "attempts", attempts, "error", err)
		return nil, errors.WithMessagef(err, "embed failed after %d attempts", attempts)
	}

	return vec, nil
}

// Dimensions returns the wrapped provider's vector length.
func (r *Resilient) Dimensions() int {
	return r.next.Dimensions()
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
