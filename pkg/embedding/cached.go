package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Zereker/talentmatch/pkg/log"
)

// CacheConfig configures the two cache levels in front of an Embedder.
type CacheConfig struct {
	Enabled   bool   `toml:"enabled"`
	Size      int    `toml:"size"`      // L1 entries
	TTL       string `toml:"ttl"`       // L2 (redis) expiry, empty means no expiry
	Namespace string `toml:"namespace"` // L2 key prefix, usually the model name
}

// Validate checks cache configuration
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Size <= 0 {
		return fmt.Errorf("size must be positive")
	}
	if c.TTL != "" {
		if _, err := time.ParseDuration(c.TTL); err != nil {
			return fmt.Errorf("ttl is invalid: %v", err)
		}
	}
	return nil
}

// Cached memoizes embeddings in an in-process LRU and, when a redis client is
// given, in redis. Cache failures are logged and bypassed.
type Cached struct {
	next      Embedder
	logger    *slog.Logger
	l1        *lru.Cache[string, []float32]
	l2        *redis.Client
	ttl       time.Duration
	namespace string
}

var _ Embedder = (*Cached)(nil)

// NewCached wraps next. l2 may be nil.
func NewCached(next Embedder, l2 *redis.Client, cfg CacheConfig) (*Cached, error) {
	size := cfg.Size
	if size <= 0 {
		size = 1024
	}

	l1, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, errors.Wrap(err, "create lru cache")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}

	return &Cached{
		next:      next,
		logger:    log.Logger("embedding.cache"),
		l1:        l1,
		l2:        l2,
		ttl:       parseDurationOr(cfg.TTL, 0),
		namespace: namespace,
	}, nil
}

// Embed returns a cached vector or computes and stores a new one.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if vec, ok := c.l1.Get(key); ok {
		return append([]float32(nil), vec...), nil
	}

	if vec, ok := c.getL2(ctx, key); ok {
		c.l1.Add(key, vec)
		return append([]float32(nil), vec...), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := append([]float32(nil), vec...)
	c.l1.Add(key, stored)
	c.setL2(ctx, key, stored)

	return vec, nil
}

// Dimensions returns the wrapped embedder's vector length.
func (c *Cached) Dimensions() int {
	return c.next.Dimensions()
}

// Len returns the number of L1 entries.
func (c *Cached) Len() int {
	return c.l1.Len()
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "talentmatch:emb:" + c.namespace + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) getL2(ctx context.Context, key string) ([]float32, bool) {
	if c.l2 == nil {
		return nil, false
	}

	data, err := c.l2.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", "error", err)
		}
		return nil, false
	}

	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

func (c *Cached) setL2(ctx context.Context, key string, vec []float32) {
	if c.l2 == nil {
		return
	}

	if err := c.l2.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "error", err)
	}
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector payload length %d", len(data))
	}

	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
