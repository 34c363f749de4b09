package interview

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/talentmatch/internal/domain"
)

// Score bounds of an evaluation.
const (
	minScore = 1
	maxScore = 10
)

func defaultEvaluation() domain.Evaluation {
	return domain.Evaluation{
		Score:        7,
		Feedback:     "Answer was evaluated but parsing failed",
		Improvements: "Provide more specific examples and details",
	}
}

// parseEvaluation reads the first JSON object in a model reply, so code
// fences and chatter around it are ignored. The score is rounded and
// clamped to 1-10.
func parseEvaluation(text string) (domain.Evaluation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return domain.Evaluation{}, errors.New("no JSON object in reply")
	}

	var raw struct {
		Score        *float64 `json:"score"`
		Feedback     string   `json:"feedback"`
		Improvements string   `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return domain.Evaluation{}, errors.Wrap(err, "decode evaluation")
	}
	if raw.Score == nil {
		return domain.Evaluation{}, errors.New("evaluation has no score")
	}

	score := int(math.Round(*raw.Score))
	score = max(minScore, min(maxScore, score))

	return domain.Evaluation{
		Score:        score,
		Feedback:     raw.Feedback,
		Improvements: raw.Improvements,
	}, nil
}
