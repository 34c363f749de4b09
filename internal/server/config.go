package server

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Zereker/talentmatch/internal/interview"
	"github.com/Zereker/talentmatch/pkg/embedding"
	"github.com/Zereker/talentmatch/pkg/genkit"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/mq"
	"github.com/Zereker/talentmatch/pkg/redis"
	"github.com/Zereker/talentmatch/pkg/vector"
)

// Embedding providers
const (
	ProviderFingerprint = "fingerprint"
	ProviderGenkit      = "genkit"
	ProviderOpenAI      = "openai"
)

// Store backends
const (
	BackendMemory     = "memory"
	BackendOpenSearch = "opensearch"
	BackendQdrant     = "qdrant"
)

// Environment variables that fill empty API keys
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvArkKey    = "ARK_API_KEY"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig     `toml:"server"`
	Log       log.Config       `toml:"log"`
	Embedding EmbeddingConfig  `toml:"embedding"`
	Store     StoreConfig      `toml:"store"`
	Redis     redis.Config     `toml:"redis"`
	Kafka     mq.KafkaConfig   `toml:"kafka"`
	Interview interview.Config `toml:"interview"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Mode         string `toml:"mode"` // http, mcp, or both
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
	MaxBodyBytes int64  `toml:"max_body_bytes"` // 0 keeps the http default
}

// EmbeddingConfig selects and configures the embedder
type EmbeddingConfig struct {
	Provider   string                     `toml:"provider"` // fingerprint, genkit, or openai
	Dimensions int                        `toml:"dimensions"`
	Genkit     genkit.Config              `toml:"genkit"`
	OpenAI     embedding.OpenAIConfig     `toml:"openai"`
	Resilience embedding.ResilienceConfig `toml:"resilience"`
	Cache      embedding.CacheConfig      `toml:"cache"`
}

// StoreConfig selects and configures the vector store
type StoreConfig struct {
	Backend    string                  `toml:"backend"` // memory, opensearch, or qdrant
	OpenSearch vector.OpenSearchConfig `toml:"opensearch"`
	Qdrant     vector.QdrantConfig     `toml:"qdrant"`
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Mode == "" {
		s.Mode = "http" // default mode
	}
	switch s.Mode {
	case "http", "mcp", "both":
		// valid
	default:
		return fmt.Errorf("invalid mode: %s, must be http, mcp, or both", s.Mode)
	}
	if s.Mode == "mcp" {
		return nil
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port is required and must be between 1 and 65535")
	}
	for name, v := range map[string]string{"read_timeout": s.ReadTimeout, "write_timeout": s.WriteTimeout} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s is invalid: %v", name, err)
		}
	}
	return nil
}

// Validate checks embedding configuration
func (e *EmbeddingConfig) Validate() error {
	if e.Provider == "" {
		e.Provider = ProviderFingerprint
	}
	if e.Dimensions == 0 {
		e.Dimensions = embedding.DefaultDimensions
	}
	if e.Dimensions < 0 {
		return fmt.Errorf("dimensions must be positive")
	}

	switch e.Provider {
	case ProviderFingerprint:
		// no external settings
	case ProviderGenkit:
		if e.Genkit.Embedder == "" {
			return fmt.Errorf("genkit: embedder is required")
		}
		if err := e.Genkit.Validate(); err != nil {
			return fmt.Errorf("genkit: %w", err)
		}
		if dim, _ := e.Genkit.EmbedderDim(); dim != e.Dimensions {
			return fmt.Errorf("genkit: embedder %s returns %d dimensions, embedding.dimensions is %d", e.Genkit.Embedder, dim, e.Dimensions)
		}
	case ProviderOpenAI:
		if err := e.OpenAI.Validate(); err != nil {
			return fmt.Errorf("openai: %w", err)
		}
	default:
		return fmt.Errorf("invalid provider: %s, must be fingerprint, genkit, or openai", e.Provider)
	}

	if err := e.Resilience.Validate(); err != nil {
		return fmt.Errorf("resilience: %w", err)
	}
	if err := e.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks store configuration against the embedding dimension
func (s *StoreConfig) Validate(dims int) error {
	if s.Backend == "" {
		s.Backend = BackendMemory
	}

	switch s.Backend {
	case BackendMemory:
		return nil
	case BackendOpenSearch:
		if s.OpenSearch.EmbeddingDim == 0 {
			s.OpenSearch.EmbeddingDim = dims
		}
		if err := s.OpenSearch.Validate(); err != nil {
			return fmt.Errorf("opensearch: %w", err)
		}
		if s.OpenSearch.EmbeddingDim != dims {
			return fmt.Errorf("opensearch: embedding_dim %d does not match embedding dimensions %d", s.OpenSearch.EmbeddingDim, dims)
		}
	case BackendQdrant:
		if s.Qdrant.Dim == 0 {
			s.Qdrant.Dim = dims
		}
		if err := s.Qdrant.Validate(); err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		if s.Qdrant.Dim != dims {
			return fmt.Errorf("qdrant: dim %d does not match embedding dimensions %d", s.Qdrant.Dim, dims)
		}
	default:
		return fmt.Errorf("invalid backend: %s, must be memory, opensearch, or qdrant", s.Backend)
	}
	return nil
}

// Validate checks all configuration fields
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	if err := c.Store.Validate(c.Embedding.Dimensions); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}

	if err := c.Interview.Validate(); err != nil {
		return fmt.Errorf("interview: %w", err)
	}

	return nil
}

// applyEnv fills API keys left empty in the file from the environment.
func (c *Config) applyEnv() {
	if c.Embedding.OpenAI.APIKey == "" {
		c.Embedding.OpenAI.APIKey = os.Getenv(EnvOpenAIKey)
	}
	if c.Embedding.Genkit.Ark.APIKey == "" {
		c.Embedding.Genkit.Ark.APIKey = os.Getenv(EnvArkKey)
	}
	if c.Interview.OpenAI.APIKey == "" {
		c.Interview.OpenAI.APIKey = os.Getenv(EnvOpenAIKey)
	}
	if c.Interview.Genkit.Ark.APIKey == "" {
		c.Interview.Genkit.Ark.APIKey = os.Getenv(EnvArkKey)
	}
}

// ParseConfig parses TOML data, applies environment overrides and validates
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadConfig reads and parses the configuration file
func LoadConfig(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	return ParseConfig(data)
}
