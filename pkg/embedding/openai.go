package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI embeddings backend.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// Validate checks OpenAI configuration
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// OpenAIEmbedder implements Embedder using the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder producing dims-length vectors.
func NewOpenAIEmbedder(cfg OpenAIConfig, dims int) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(cfg.Model),
		dims:   dims,
	}
}

// Embed requests one embedding and normalizes it to unit length.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.dims,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vec := resp.Data[0].Embedding
	if e.dims > 0 && len(vec) != e.dims {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, want %d", ErrInvalidInput, e.model, len(vec), e.dims)
	}

	return Normalize(append([]float32(nil), vec...)), nil
}

// Dimensions returns the configured vector length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}
