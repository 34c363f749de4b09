package genkit

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// EmbedFunc answers an embed request in place of a vendor.
type EmbedFunc func(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)

// GenerateFunc answers a model request in place of a vendor.
type GenerateFunc func(ctx context.Context, req *ai.ModelRequest) (*ai.ModelResponse, error)

// MockConfig configures the test plugin. Provider defaults to "mock";
// use "ark" to register under the production embedder names.
type MockConfig struct {
	Provider string
	Models   []ModelConfig
}

// DefaultMockConfig registers mock/test-embedding with 1536 dimensions and
// the mock/test-llm chat model.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		Models: []ModelConfig{
			{Name: "test-embedding", Model: "test-embedding", Dim: 1536},
			{Name: "test-llm", Type: ModelTypeLLM, Model: "test-llm"},
		},
	}
}

// MockPlugin registers scripted embedders and models and records what they
// receive. Unscripted embedders return zero vectors; unscripted models echo
// the last user message.
type MockPlugin struct {
	provider string
	models   []ModelConfig

	mu      sync.Mutex
	script  map[string]EmbedFunc
	replies map[string]GenerateFunc
	inputs  map[string][]string
}

func NewMockPlugin(cfg MockConfig) *MockPlugin {
	if cfg.Provider == "" {
		cfg.Provider = "mock"
	}
	return &MockPlugin{
		provider: cfg.Provider,
		models:   cfg.Models,
		script:   make(map[string]EmbedFunc),
		replies:  make(map[string]GenerateFunc),
		inputs:   make(map[string][]string),
	}
}

func (p *MockPlugin) Name() string {
	return "mock"
}

// Init implements api.Plugin.
func (p *MockPlugin) Init(context.Context) []api.Action {
	actions := make([]api.Action, 0, len(p.models))
	for _, m := range p.models {
		switch m.kind() {
		case ModelTypeLLM:
			model := ai.NewModel(p.provider+"/"+m.Name, &ai.ModelOptions{
				Label:    "Mock " + m.Name,
				Supports: &ai.ModelSupports{Multiturn: true, SystemRole: true},
			}, p.generateFunc(m))
			actions = append(actions, model.(api.Action))

		case ModelTypeEmbedding:
			e := ai.NewEmbedder(p.provider+"/"+m.Name, &ai.EmbedderOptions{
				Label:      "Mock " + m.Name,
				Dimensions: m.Dim,
			}, p.embedFunc(m))
			actions = append(actions, e.(api.Action))
		}
	}
	return actions
}

func (p *MockPlugin) generateFunc(m ModelConfig) ai.ModelFunc {
	return func(ctx context.Context, req *ai.ModelRequest, _ ai.ModelStreamCallback) (*ai.ModelResponse, error) {
		var last string
		for _, msg := range req.Messages {
			if msg.Role == ai.RoleUser {
				last = msg.Text()
			}
		}

		p.mu.Lock()
		p.inputs[m.Name] = append(p.inputs[m.Name], last)
		fn := p.replies[m.Name]
		p.mu.Unlock()

		if fn != nil {
			return fn(ctx, req)
		}
		return textResponse(req, last), nil
	}
}

func (p *MockPlugin) embedFunc(m ModelConfig) EmbedFunc {
	return func(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
		p.mu.Lock()
		for _, doc := range req.Input {
			p.inputs[m.Name] = append(p.inputs[m.Name], docText(doc))
		}
		fn := p.script[m.Name]
		p.mu.Unlock()

		if fn != nil {
			return fn(ctx, req)
		}
		return constant(req, make([]float32, m.Dim)), nil
	}
}

// SetEmbedderResponse scripts an embedder by its model name.
func (p *MockPlugin) SetEmbedderResponse(name string, fn EmbedFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script[name] = fn
}

// SetEmbedderVectorResponse makes every input embed to vector.
func (p *MockPlugin) SetEmbedderVectorResponse(name string, vector []float32) {
	p.SetEmbedderResponse(name, func(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
		return constant(req, vector), nil
	})
}

func (p *MockPlugin) SetEmbedderError(name string, err error) {
	p.SetEmbedderResponse(name, func(context.Context, *ai.EmbedRequest) (*ai.EmbedResponse, error) {
		return nil, err
	})
}

// SetModelResponse scripts a chat model by its model name.
func (p *MockPlugin) SetModelResponse(name string, fn GenerateFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[name] = fn
}

// SetModelTextResponse makes a chat model always answer text.
func (p *MockPlugin) SetModelTextResponse(name, text string) {
	p.SetModelResponse(name, func(_ context.Context, req *ai.ModelRequest) (*ai.ModelResponse, error) {
		return textResponse(req, text), nil
	})
}

func (p *MockPlugin) SetModelError(name string, err error) {
	p.SetModelResponse(name, func(context.Context, *ai.ModelRequest) (*ai.ModelResponse, error) {
		return nil, err
	})
}

// Inputs returns the texts an embedder or the last user messages a model
// has received, in call order.
func (p *MockPlugin) Inputs(name string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inputs[name]...)
}

func textResponse(req *ai.ModelRequest, text string) *ai.ModelResponse {
	return &ai.ModelResponse{
		Request: req,
		Message: ai.NewModelTextMessage(text),
		Usage:   &ai.GenerationUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func constant(req *ai.EmbedRequest, vector []float32) *ai.EmbedResponse {
	out := make([]*ai.Embedding, len(req.Input))
	for i := range out {
		out[i] = &ai.Embedding{Embedding: vector}
	}
	return &ai.EmbedResponse{Embeddings: out}
}

func docText(doc *ai.Document) string {
	var text string
	for _, part := range doc.Content {
		if part.IsText() {
			text += part.Text
		}
	}
	return text
}
