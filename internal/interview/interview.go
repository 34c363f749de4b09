// Package interview drafts interview questions for a job and grades
// candidate answers with a chat model. Question generation falls back to
// skill templates when no model is configured or the model fails.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/talentmatch/internal/domain"
	"github.com/Zereker/talentmatch/pkg/genkit"
	"github.com/Zereker/talentmatch/pkg/log"
)

// Providers
const (
	ProviderTemplate = "template"
	ProviderGenkit   = "genkit"
	ProviderOpenAI   = "openai"
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 20 * time.Second

var (
	ErrEmptyDescription = errors.New("job description is required")
	ErrEmptyAnswer      = errors.New("question and answer are required")
	ErrNoModel          = errors.New("no interview model is configured")
)

// Config selects the model behind the assistant
type Config struct {
	Provider string        `toml:"provider"` // template, genkit, or openai
	Timeout  string        `toml:"timeout"`
	Genkit   genkit.Config `toml:"genkit"`
	OpenAI   OpenAIConfig  `toml:"openai"`
}

// Validate checks interview configuration
func (c *Config) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderTemplate
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("timeout is invalid: %v", err)
		}
	}

	switch c.Provider {
	case ProviderTemplate:
	case ProviderGenkit:
		if c.Genkit.Generator == "" {
			return fmt.Errorf("genkit: generator is required")
		}
		if err := c.Genkit.Validate(); err != nil {
			return fmt.Errorf("genkit: %w", err)
		}
	case ProviderOpenAI:
		if err := c.OpenAI.Validate(); err != nil {
			return fmt.Errorf("openai: %w", err)
		}
	default:
		return fmt.Errorf("invalid provider: %s, must be template, genkit, or openai", c.Provider)
	}
	return nil
}

// Assistant generates questions and evaluates answers. A nil model keeps
// question generation on templates and makes Evaluate fail with ErrNoModel.
type Assistant struct {
	model   Model
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Assistant
type Option func(*Assistant)

// WithLogger sets the assistant logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// WithTimeout bounds each model call; zero or less disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		a.timeout = d
	}
}

func NewAssistant(model Model, opts ...Option) *Assistant {
	a := &Assistant{
		model:   model,
		timeout: DefaultTimeout,
		logger:  log.Logger("interview"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

const (
	questionSystem = "You are a technical hiring manager creating interview questions."
	questionPrompt = `Generate 5-7 technical interview questions for a candidate applying to this role:

Job Description: %s

Required Skills: %s
Candidate Skills: %s

Generate relevant technical questions that assess:
1. Technical proficiency in required skills
2. Problem-solving abilities
3. Relevant experience
4. Cultural fit for technical roles

Return only the questions as a numbered list.`

	evaluationSystem = "You are an experienced technical interviewer evaluating candidate responses."
	evaluationPrompt = `Evaluate this interview answer:

Question: %s
Answer: %s
Context: %s

Provide:
1. A score from 1-10
2. Brief feedback on the answer quality
3. Suggestions for improvement

Format as JSON: {"score": number, "feedback": "text", "improvements": "text"}`
)

// Questions drafts interview questions for a job. Only a blank job
// description is an error; model failures are logged and answered from
// templates, with Note saying why.
func (a *Assistant) Questions(ctx context.Context, req domain.QuestionRequest) (domain.QuestionSet, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return domain.QuestionSet{}, ErrEmptyDescription
	}

	note := "no interview model is configured"
	if a.model != nil {
		questions, err := a.modelQuestions(ctx, req)
		if err == nil {
			return newQuestionSet(questions, domain.QuestionSourceModel, ""), nil
		}
		a.logger.Warn("question generation failed, using templates", "error", err)
		note = "model unavailable: " + err.Error()
	}

	return newQuestionSet(TemplateQuestions(req.JobSkills, req.CandidateSkills), domain.QuestionSourceTemplate, note), nil
}

func (a *Assistant) modelQuestions(ctx context.Context, req domain.QuestionRequest) ([]string, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	text, err := a.model.Complete(ctx, Prompt{
		System:      questionSystem,
		User:        fmt.Sprintf(questionPrompt, req.JobDescription, strings.Join(req.JobSkills, ", "), strings.Join(req.CandidateSkills, ", ")),
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	questions := parseQuestions(text)
	if len(questions) == 0 {
		return nil, errors.New("reply contained no numbered questions")
	}
	return questions, nil
}

// Evaluate grades an answer. A reply that is not the requested JSON still
// counts as evaluated and yields defaultEvaluation.
func (a *Assistant) Evaluate(ctx context.Context, req domain.AnswerRequest) (domain.Evaluation, error) {
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		return domain.Evaluation{}, ErrEmptyAnswer
	}
	if a.model == nil {
		return domain.Evaluation{}, ErrNoModel
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	text, err := a.model.Complete(ctx, Prompt{
		System:      evaluationSystem,
		User:        fmt.Sprintf(evaluationPrompt, req.Question, req.Answer, req.Context),
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return domain.Evaluation{}, errors.WithMessage(err, "evaluate answer")
	}

	eval, err := parseEvaluation(text)
	if err != nil {
		a.logger.Warn("unreadable evaluation, using default", "error", err)
		return defaultEvaluation(), nil
	}
	return eval, nil
}

func (a *Assistant) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func newQuestionSet(questions []string, source, note string) domain.QuestionSet {
	return domain.QuestionSet{
		Questions: questions,
		Count:     len(questions),
		Source:    source,
		Note:      note,
	}
}
