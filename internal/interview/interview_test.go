package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/talentmatch/internal/domain"
	"github.com/Zereker/talentmatch/pkg/genkit"
	"github.com/Zereker/talentmatch/pkg/log"
)

func newTestAssistant(model Model) *Assistant {
	return NewAssistant(model, WithLogger(log.Discard()))
}

var questionReq = domain.QuestionRequest{
	JobDescription:  "Backend engineer building REST APIs, 50% remote",
	JobSkills:       []string{"Python", "Flask", "PostgreSQL"},
	CandidateSkills: []string{"python", "Django"},
}

func TestAssistant_QuestionsFromModel(t *testing.T) {
	model := NewMockModel("Here you go:\n1. How do you design a REST API?\n2) Explain Flask blueprints.\n- What is an index in PostgreSQL?\n\nGood luck!")
	a := newTestAssistant(model)

	set, err := a.Questions(context.Background(), questionReq)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionSourceModel, set.Source)
	assert.Equal(t, []string{
		"How do you design a REST API?",
		"Explain Flask blueprints.",
		"What is an index in PostgreSQL?",
	}, set.Questions)
	assert.Equal(t, 3, set.Count)
	assert.Empty(t, set.Note)

	require.Len(t, model.Calls, 1)
	prompt := model.Calls[0]
	assert.Contains(t, prompt.User, "50% remote", "descriptions are not treated as format strings")
	assert.Contains(t, prompt.User, "Required Skills: Python, Flask, PostgreSQL")
	assert.Contains(t, prompt.User, "Candidate Skills: python, Django")
	assert.Equal(t, 500, prompt.MaxTokens)
	assert.InDelta(t, 0.7, prompt.Temperature, 1e-9)
}

func TestAssistant_QuestionsFallback(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		note  string
	}{
		{"no model", nil, "no interview model is configured"},
		{"model error", &MockModel{CompleteFunc: func(context.Context, Prompt) (string, error) {
			return "", errors.New("quota exceeded")
		}}, "quota exceeded"},
		{"unnumbered reply", NewMockModel("I cannot help with that."), "no numbered questions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAssistant(tt.model)
			set, err := a.Questions(context.Background(), questionReq)
			require.NoError(t, err)
			assert.Equal(t, domain.QuestionSourceTemplate, set.Source)
			assert.Contains(t, set.Note, tt.note)
			assert.Equal(t, TemplateQuestions(questionReq.JobSkills, questionReq.CandidateSkills), set.Questions)
			assert.Equal(t, len(set.Questions), set.Count)
		})
	}
}

func TestAssistant_QuestionsRequireDescription(t *testing.T) {
	model := NewMockModel("1. Anything?")
	a := newTestAssistant(model)

	_, err := a.Questions(context.Background(), domain.QuestionRequest{JobDescription: " \n\t"})
	assert.ErrorIs(t, err, ErrEmptyDescription)
	assert.Empty(t, model.Calls)
}

func TestAssistant_QuestionsTimeout(t *testing.T) {
	model := &MockModel{CompleteFunc: func(ctx context.Context, _ Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	a := NewAssistant(model, WithLogger(log.Discard()), WithTimeout(10*time.Millisecond))

	set, err := a.Questions(context.Background(), questionReq)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionSourceTemplate, set.Source)
	assert.Contains(t, set.Note, context.DeadlineExceeded.Error())
}

func TestAssistant_Evaluate(t *testing.T) {
	ctx := context.Background()
	answer := domain.AnswerRequest{
		Question: "How do you design a REST API?",
		Answer:   "Resources, verbs, status codes and versioning.",
		Context:  "Backend engineer",
	}

	t.Run("json reply", func(t *testing.T) {
		model := NewMockModel("```json\n{\"score\": 8, \"feedback\": \"Solid\", \"improvements\": \"Mention pagination\"}\n```")
		eval, err := newTestAssistant(model).Evaluate(ctx, answer)
		require.NoError(t, err)
		assert.Equal(t, domain.Evaluation{Score: 8, Feedback: "Solid", Improvements: "Mention pagination"}, eval)

		require.Len(t, model.Calls, 1)
		assert.Contains(t, model.Calls[0].User, "Question: How do you design a REST API?")
		assert.Contains(t, model.Calls[0].User, "Context: Backend engineer")
		assert.Equal(t, 300, model.Calls[0].MaxTokens)
	})

	t.Run("unreadable reply", func(t *testing.T) {
		eval, err := newTestAssistant(NewMockModel("Pretty good answer overall.")).Evaluate(ctx, answer)
		require.NoError(t, err)
		assert.Equal(t, defaultEvaluation(), eval)
	})

	t.Run("model error", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		model := &MockModel{CompleteFunc: func(context.Context, Prompt) (string, error) { return "", boom }}
		_, err := newTestAssistant(model).Evaluate(ctx, answer)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no model", func(t *testing.T) {
		_, err := newTestAssistant(nil).Evaluate(ctx, answer)
		assert.ErrorIs(t, err, ErrNoModel)
	})

	t.Run("blank answer", func(t *testing.T) {
		model := NewMockModel(`{"score": 5}`)
		_, err := newTestAssistant(model).Evaluate(ctx, domain.AnswerRequest{Question: "Why Go?", Answer: "  "})
		assert.ErrorIs(t, err, ErrEmptyAnswer)
		assert.Empty(t, model.Calls)
	})
}

func TestGenkitModel(t *testing.T) {
	ctx := context.Background()
	g, mockPlugin := genkit.NewForTest(ctx, genkit.DefaultMockConfig())
	mockPlugin.SetModelTextResponse("test-llm", "1. Describe your Go testing strategy.\n2. How do you profile a service?")

	a := newTestAssistant(NewGenkitModel(g, "mock/test-llm"))
	set, err := a.Questions(ctx, questionReq)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionSourceModel, set.Source)
	assert.Equal(t, []string{"Describe your Go testing strategy.", "How do you profile a service?"}, set.Questions)

	inputs := mockPlugin.Inputs("test-llm")
	require.Len(t, inputs, 1)
	assert.Contains(t, inputs[0], "Backend engineer building REST APIs, 50% remote")

	mockPlugin.SetModelTextResponse("test-llm", `{"score": 12, "feedback": "Great", "improvements": "None"}`)
	eval, err := a.Evaluate(ctx, domain.AnswerRequest{Question: "Why Go?", Answer: "Simplicity."})
	require.NoError(t, err)
	assert.Equal(t, 10, eval.Score, "scores are clamped to 10")

	mockPlugin.SetModelError("test-llm", errors.New("quota exceeded"))
	set, err = a.Questions(ctx, questionReq)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionSourceTemplate, set.Source)
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderTemplate, cfg.Provider)

	cfg = Config{Provider: ProviderOpenAI, OpenAI: OpenAIConfig{APIKey: "sk-test"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)

	cfg = Config{Provider: ProviderOpenAI}
	assert.ErrorContains(t, cfg.Validate(), "api_key is required")

	cfg = Config{Provider: ProviderGenkit, Genkit: genkit.Config{
		Generator: "ark/doubao-seed-1-6-250615",
		Ark: genkit.ArkConfig{
			APIKey: "key",
			Models: []genkit.ModelConfig{{Name: "doubao-seed", Type: genkit.ModelTypeLLM, Model: "doubao-seed-1-6-250615"}},
		},
	}}
	assert.NoError(t, cfg.Validate())

	cfg.Genkit.Generator = ""
	assert.ErrorContains(t, cfg.Validate(), "generator is required")

	cfg = Config{Provider: "claude"}
	assert.ErrorContains(t, cfg.Validate(), "invalid provider")

	cfg = Config{Timeout: "soon"}
	assert.ErrorContains(t, cfg.Validate(), "timeout is invalid")
}
