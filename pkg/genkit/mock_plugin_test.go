package genkit

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPlugin_DefaultBehavior(t *testing.T) {
	ctx := context.Background()
	g, mockPlugin := NewForTest(ctx, DefaultMockConfig())
	require.NotNil(t, g)

	embedder := genkit.LookupEmbedder(g, "mock/test-embedding")
	require.NotNil(t, embedder, "mock embedder should be registered")

	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText("hello", nil)},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Embeddings, 1)
	assert.Len(t, resp.Embeddings[0].Embedding, 1536)
	assert.Equal(t, []string{"hello"}, mockPlugin.Inputs("test-embedding"))

	model := genkit.LookupModel(g, "mock/test-llm")
	require.NotNil(t, model, "mock model should be registered")

	text, err := genkit.GenerateText(ctx, g, ai.WithModelName("mock/test-llm"), ai.WithPrompt("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text, "unscripted models echo the prompt")
	assert.Equal(t, []string{"hello"}, mockPlugin.Inputs("test-llm"))
}

func TestMockPlugin_ModelResponses(t *testing.T) {
	ctx := context.Background()
	g, mockPlugin := NewForTest(ctx, DefaultMockConfig())

	mockPlugin.SetModelTextResponse("test-llm", `{"score": 8}`)
	resp, err := genkit.Generate(ctx, g, ai.WithModelName("mock/test-llm"), ai.WithSystem("grader"), ai.WithPrompt("grade this"))
	require.NoError(t, err)

	var out struct {
		Score int `json:"score"`
	}
	require.NoError(t, resp.Output(&out))
	assert.Equal(t, 8, out.Score)

	mockPlugin.SetModelError("test-llm", errors.New("quota exceeded"))
	_, err = genkit.Generate(ctx, g, ai.WithModelName("mock/test-llm"), ai.WithPrompt("grade this"))
	assert.Error(t, err)
}

func TestMockPlugin_CustomResponses(t *testing.T) {
	ctx := context.Background()
	g, mockPlugin := NewForTest(ctx, MockConfig{
		Provider: "ark",
		Models:   []ModelConfig{{Name: "doubao-embedding", Model: "doubao-embedding", Dim: 3}},
	})

	customVector := []float32{0.1, 0.2, 0.3}
	mockPlugin.SetEmbedderVectorResponse("doubao-embedding", customVector)

	resp, err := genkit.Embed(ctx, g, ai.WithEmbedderName("ark/doubao-embedding"), ai.WithTextDocs("python developer"))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 1)
	assert.Equal(t, customVector, resp.Embeddings[0].Embedding)

	mockPlugin.SetEmbedderError("doubao-embedding", errors.New("quota exceeded"))
	_, err = genkit.Embed(ctx, g, ai.WithEmbedderName("ark/doubao-embedding"), ai.WithTextDocs("python developer"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{
		Embedder: "ark/doubao-embedding-text-240715",
		Ark: ArkConfig{
			APIKey: "key",
			Models: []ModelConfig{{Name: "doubao-embedding", Model: "doubao-embedding-text-240715", Dim: 2560}},
		},
	}
	assert.NoError(t, cfg.Validate())

	dim, ok := cfg.EmbedderDim()
	assert.True(t, ok)
	assert.Equal(t, 2560, dim)

	cfg.Embedder = "ark/doubao-embedding"
	assert.ErrorContains(t, cfg.Validate(), "not one of the configured ark embedding models")
	cfg.Embedder = "ark/doubao-embedding-text-240715"

	cfg.Ark.Models = append(cfg.Ark.Models, ModelConfig{Name: "doubao-seed", Type: ModelTypeLLM, Model: "doubao-seed-1-6-250615"})
	cfg.Generator = "ark/doubao-seed-1-6-250615"
	assert.NoError(t, cfg.Validate(), "llm models need no dim")

	cfg.Generator = "ark/doubao-embedding-text-240715"
	assert.ErrorContains(t, cfg.Validate(), "not one of the configured ark llm models")

	cfg.Embedder, cfg.Generator = "", "ark/doubao-seed-1-6-250615"
	assert.NoError(t, cfg.Validate(), "a generator alone is enough")
	cfg.Embedder, cfg.Generator = "ark/doubao-embedding-text-240715", ""

	cfg.Ark.Models[1].Type = "vision"
	assert.ErrorContains(t, cfg.Validate(), "must be llm or embedding")
	cfg.Ark.Models = cfg.Ark.Models[:1]

	cfg.Ark.Models = append(cfg.Ark.Models, cfg.Ark.Models[0])
	assert.ErrorContains(t, cfg.Validate(), "duplicate model")
	cfg.Ark.Models = cfg.Ark.Models[:1]

	cfg.Ark.Models[0].Dim = 0
	assert.Error(t, cfg.Validate())

	cfg.Ark.Models[0].Dim = 2560
	cfg.Embedder = ""
	assert.Error(t, cfg.Validate())
}

func TestNewArkPlugin_DefaultBaseURL(t *testing.T) {
	p := NewArkPlugin(ArkConfig{APIKey: "key"})
	assert.Equal(t, DefaultArkBaseURL, p.BaseURL)
	assert.Equal(t, "ark", p.Name())
}
