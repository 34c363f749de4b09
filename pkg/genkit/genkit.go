// Package genkit bootstraps a genkit instance whose plugins register the
// embedding models used by pkg/embedding and the chat models used by
// internal/interview.
package genkit

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/pkg/errors"
)

// Model types
const (
	ModelTypeLLM       = "llm"
	ModelTypeEmbedding = "embedding"
)

// ModelConfig holds configuration for a single model
type ModelConfig struct {
	Name  string `toml:"name"`  // Registration name (e.g., "doubao-embedding")
	Type  string `toml:"type"`  // llm or embedding, empty means embedding
	Model string `toml:"model"` // Vendor model identifier
	Dim   int    `toml:"dim"`   // Output dimension, embedding only
}

// Validate validates a model config
func (m *ModelConfig) Validate(index int) error {
	if m.Name == "" {
		return fmt.Errorf("models[%d].name is required", index)
	}
	if m.Model == "" {
		return fmt.Errorf("models[%d].model is required", index)
	}

	switch m.kind() {
	case ModelTypeEmbedding:
		if m.Dim <= 0 {
			return fmt.Errorf("models[%d].dim must be positive", index)
		}
	case ModelTypeLLM:
	default:
		return fmt.Errorf("models[%d].type %q must be llm or embedding", index, m.Type)
	}
	return nil
}

func (m *ModelConfig) kind() string {
	if m.Type == "" {
		return ModelTypeEmbedding
	}
	return m.Type
}

// Config holds genkit configuration
type Config struct {
	Ark ArkConfig `toml:"ark"`

	// Embedder is the fully qualified embedder used for matching, e.g. "ark/doubao-embedding-text-240715".
	Embedder string `toml:"embedder"`

	// Generator is the fully qualified chat model used for interview questions, e.g. "ark/doubao-seed-1-6-250615".
	Generator string `toml:"generator"`
}

// Validate checks genkit configuration
func (c *Config) Validate() error {
	if c.Embedder == "" && c.Generator == "" {
		return fmt.Errorf("embedder or generator is required")
	}
	if err := c.Ark.Validate(); err != nil {
		return fmt.Errorf("ark: %w", err)
	}
	if c.Embedder != "" {
		if _, ok := c.Ark.lookup(c.Embedder, ModelTypeEmbedding); !ok {
			return fmt.Errorf("embedder %q is not one of the configured ark embedding models", c.Embedder)
		}
	}
	if c.Generator != "" {
		if _, ok := c.Ark.lookup(c.Generator, ModelTypeLLM); !ok {
			return fmt.Errorf("generator %q is not one of the configured ark llm models", c.Generator)
		}
	}
	return nil
}

// EmbedderDim reports the output dimension of the configured embedder.
func (c *Config) EmbedderDim() (int, bool) {
	m, ok := c.Ark.lookup(c.Embedder, ModelTypeEmbedding)
	return m.Dim, ok
}

// New initializes a genkit instance with the configured vendor plugins.
func New(ctx context.Context, cfg Config) (*genkit.Genkit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}

	return genkit.Init(ctx, genkit.WithPlugins(NewArkPlugin(cfg.Ark))), nil
}

// NewWithPlugins initializes genkit with custom plugins.
func NewWithPlugins(ctx context.Context, plugins ...api.Plugin) *genkit.Genkit {
	return genkit.Init(ctx, genkit.WithPlugins(plugins...))
}

// NewForTest initializes genkit with a mock plugin.
// Returns the mock plugin for configuring responses.
func NewForTest(ctx context.Context, cfg MockConfig) (*genkit.Genkit, *MockPlugin) {
	mockPlugin := NewMockPlugin(cfg)
	return NewWithPlugins(ctx, mockPlugin), mockPlugin
}
