package interview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	oaiparams "github.com/openai/openai-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Zereker/talentmatch/pkg/log"
)

// Prompt is one system + user exchange with a chat model.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Model completes a prompt with text.
type Model interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// GenkitModel calls a chat model registered on a genkit instance,
// e.g. "ark/doubao-seed-1-6-250615".
type GenkitModel struct {
	g      *genkit.Genkit
	name   string
	logger *slog.Logger
}

var _ Model = (*GenkitModel)(nil)

func NewGenkitModel(g *genkit.Genkit, name string) *GenkitModel {
	return &GenkitModel{g: g, name: name, logger: log.Logger("interview.genkit")}
}

func (m *GenkitModel) Complete(ctx context.Context, p Prompt) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(m.name),
		ai.WithSystem("%s", p.System),
		ai.WithPrompt("%s", p.User),
		ai.WithConfig(oaiparams.ChatCompletionNewParams{
			MaxTokens:   oaiparams.Int(int64(p.MaxTokens)),
			Temperature: oaiparams.Float(p.Temperature),
		}),
	}

	resp, err := genkit.Generate(ctx, m.g, opts...)
	if err != nil {
		return "", fmt.Errorf("genkit generate %s: %w", m.name, err)
	}
	if resp.Usage != nil {
		m.logger.Debug("llm response",
			"model", m.name,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)
	}
	return resp.Text(), nil
}

// OpenAIConfig configures the OpenAI chat backend.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"` // defaults to gpt-3.5-turbo
}

// Validate checks OpenAI configuration
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.Model == "" {
		c.Model = openai.GPT3Dot5Turbo
	}
	return nil
}

// OpenAIModel calls the OpenAI chat completions API.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

var _ Model = (*OpenAIModel)(nil)

func NewOpenAIModel(cfg OpenAIConfig) *OpenAIModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIModel{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (m *OpenAIModel) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat %s: %w", m.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat %s: no choices", m.model)
	}
	return resp.Choices[0].Message.Content, nil
}
