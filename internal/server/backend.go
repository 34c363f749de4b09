package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Zereker/talentmatch/internal/interview"
	"github.com/Zereker/talentmatch/pkg/embedding"
	"github.com/Zereker/talentmatch/pkg/genkit"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/mq"
	"github.com/Zereker/talentmatch/pkg/vector"
)

// DefaultTopic receives async index events when kafka is disabled or has no topic
const DefaultTopic = "talentmatch.index"

// newEmbedder builds the configured provider. Remote providers are wrapped
// with retries and a breaker, and any provider may sit behind the cache.
// rdb may be nil.
func newEmbedder(ctx context.Context, cfg EmbeddingConfig, rdb *goredis.Client) (embedding.Embedder, error) {
	var (
		embedder  embedding.Embedder
		namespace string
	)

	switch cfg.Provider {
	case ProviderFingerprint, "":
		embedder = embedding.NewFingerprintEmbedder(cfg.Dimensions)
		namespace = ProviderFingerprint
	case ProviderGenkit:
		g, err := genkit.New(ctx, cfg.Genkit)
		if err != nil {
			return nil, errors.WithMessage(err, "init genkit")
		}
		embedder = embedding.NewGenkitEmbedder(g, cfg.Genkit.Embedder, cfg.Dimensions)
		namespace = cfg.Genkit.Embedder
	case ProviderOpenAI:
		embedder = embedding.NewOpenAIEmbedder(cfg.OpenAI, cfg.Dimensions)
		namespace = ProviderOpenAI + "/" + cfg.OpenAI.Model
	default:
		return nil, errors.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	if cfg.Provider == ProviderGenkit || cfg.Provider == ProviderOpenAI {
		resilience := cfg.Resilience
		if resilience == (embedding.ResilienceConfig{}) {
			resilience = embedding.DefaultResilienceConfig()
		}

		wrapped, err := embedding.NewResilient(cfg.Provider, embedder, resilience)
		if err != nil {
			return nil, err
		}
		embedder = wrapped
	}

	if cfg.Cache.Enabled {
		cache := cfg.Cache
		if cache.Namespace == "" {
			cache.Namespace = namespace
		}

		cached, err := embedding.NewCached(embedder, rdb, cache)
		if err != nil {
			return nil, errors.WithMessage(err, "init embedding cache")
		}
		embedder = cached
	}

	return embedder, nil
}

// newStore opens the configured backend and makes sure its index exists.
func newStore(ctx context.Context, cfg StoreConfig, dims int) (vector.Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return vector.NewMemoryStore(
			vector.WithDimensions(dims),
			vector.WithLogger(log.Logger("vector.memory")),
		), nil

	case BackendOpenSearch:
		store, err := vector.NewOpenSearchStore(cfg.OpenSearch)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndex(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	case BackendQdrant:
		store, err := vector.NewQdrantStore(cfg.Qdrant)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, errors.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// newAssistant builds the interview assistant. The template provider has
// no model, so questions come from skill templates and evaluation is off.
func newAssistant(ctx context.Context, cfg interview.Config) (*interview.Assistant, error) {
	var model interview.Model

	switch cfg.Provider {
	case interview.ProviderTemplate, "":
	case interview.ProviderGenkit:
		g, err := genkit.New(ctx, cfg.Genkit)
		if err != nil {
			return nil, errors.WithMessage(err, "init genkit")
		}
		model = interview.NewGenkitModel(g, cfg.Genkit.Generator)
	case interview.ProviderOpenAI:
		model = interview.NewOpenAIModel(cfg.OpenAI)
	default:
		return nil, errors.Errorf("unknown interview provider: %s", cfg.Provider)
	}

	var opts []interview.Option
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, errors.Wrap(err, "parse interview timeout")
		}
		opts = append(opts, interview.WithTimeout(d))
	}
	return interview.NewAssistant(model, opts...), nil
}

// newQueue returns the kafka producer when kafka is enabled and an
// in-process queue otherwise, together with the topic async events use.
func newQueue(cfg mq.KafkaConfig) (mq.MessageQueue, string, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	if !cfg.Enabled {
		return mq.NewInMemoryQueue(), topic, nil
	}

	producer, err := mq.NewKafkaProducer(cfg)
	if err != nil {
		return nil, "", errors.WithMessage(err, "create kafka producer")
	}
	return producer, topic, nil
}
