package genkit

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/openai/openai-go/option"
)

const (
	arkProvider = "ark"

	// DefaultArkBaseURL is the Volcengine Ark OpenAI-compatible endpoint.
	DefaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
)

// ArkConfig configures the embedding and chat models served by Volcengine Ark.
type ArkConfig struct {
	APIKey  string        `toml:"api_key"`
	BaseURL string        `toml:"base_url"` // defaults to DefaultArkBaseURL
	Models  []ModelConfig `toml:"models"`
}

func (c *ArkConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}

	seen := make(map[string]bool, len(c.Models))
	for i := range c.Models {
		if err := c.Models[i].Validate(i); err != nil {
			return err
		}
		if seen[c.Models[i].Model] {
			return fmt.Errorf("models[%d]: duplicate model %q", i, c.Models[i].Model)
		}
		seen[c.Models[i].Model] = true
	}
	return nil
}

// lookup returns the model of the given type registered under a qualified name.
func (c *ArkConfig) lookup(name, typ string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if arkModelName(m) == name && m.kind() == typ {
			return m, true
		}
	}
	return ModelConfig{}, false
}

func arkModelName(m ModelConfig) string {
	return arkProvider + "/" + m.Model
}

// ArkPlugin registers one genkit model or embedder per configured Ark model.
type ArkPlugin struct {
	compat_oai.OpenAICompatible
	models []ModelConfig
}

func NewArkPlugin(cfg ArkConfig) *ArkPlugin {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultArkBaseURL
	}

	return &ArkPlugin{
		OpenAICompatible: compat_oai.OpenAICompatible{
			APIKey:   cfg.APIKey,
			BaseURL:  baseURL,
			Provider: arkProvider,
			Opts:     []option.RequestOption{option.WithHeader("Content-Type", "application/json")},
		},
		models: cfg.Models,
	}
}

func (p *ArkPlugin) Name() string {
	return arkProvider
}

// Init implements api.Plugin.
func (p *ArkPlugin) Init(ctx context.Context) []api.Action {
	p.OpenAICompatible.Init(ctx)

	actions := make([]api.Action, 0, len(p.models))
	for _, m := range p.models {
		switch m.kind() {
		case ModelTypeLLM:
			model := p.DefineModel(p.Provider, m.Model, ai.ModelOptions{
				Label: "Ark " + m.Name,
				Supports: &ai.ModelSupports{
					Multiturn:  true,
					SystemRole: true,
				},
			})
			actions = append(actions, model.(api.Action))

		case ModelTypeEmbedding:
			e := p.DefineEmbedder(p.Provider, m.Model, &ai.EmbedderOptions{
				Label:      "Ark " + m.Name,
				Dimensions: m.Dim,
			})
			actions = append(actions, e.(api.Action))
		}
	}
	return actions
}
