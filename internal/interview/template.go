package interview

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits of a template question set.
const (
	maxTemplateSkills    = 5
	maxSkillQuestions    = 8
	generalQuestionCount = 2
)

var skillTemplates = []string{
	"Tell us about your experience with %s.",
	"Describe a challenging project where you used %s.",
	"How do you stay updated with the latest trends in %s?",
	"What's your approach to debugging issues in %s?",
	"Can you explain a complex concept related to %s?",
	"How do you ensure code quality when working with %s?",
	"Describe your experience with testing in %s.",
	"What best practices do you follow when using %s?",
	"How do you handle performance optimization in %s?",
	"Describe your experience with version control in %s projects.",
}

var generalQuestions = []string{
	"What interests you about this position?",
	"Describe your ideal work environment.",
	"How do you handle tight deadlines?",
	"What's your experience with agile development?",
	"How do you approach learning new technologies?",
}

// TemplateQuestions builds questions without a model. Skills both sides
// share come first, then the remaining job skills, then the remaining
// candidate skills. Templates are dealt round-robin over the top skills so
// each of them is asked about before any is asked about twice.
func TemplateQuestions(jobSkills, candidateSkills []string) []string {
	skills := rankSkills(jobSkills, candidateSkills)
	if len(skills) > maxTemplateSkills {
		skills = skills[:maxTemplateSkills]
	}

	questions := make([]string, 0, maxSkillQuestions+generalQuestionCount)
	seen := make(map[string]bool, maxSkillQuestions)

deal:
	for _, tmpl := range skillTemplates {
		for _, skill := range skills {
			if len(questions) >= maxSkillQuestions {
				break deal
			}
			q := fmt.Sprintf(tmpl, strings.ToLower(skill))
			if !seen[q] {
				seen[q] = true
				questions = append(questions, q)
			}
		}
	}

	return append(questions, generalQuestions[:generalQuestionCount]...)
}

// rankSkills merges both skill lists without duplicates, ignoring case and
// surrounding space, with the overlap first.
func rankSkills(jobSkills, candidateSkills []string) []string {
	key := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	onJob := make(map[string]bool, len(jobSkills))
	for _, s := range jobSkills {
		onJob[key(s)] = true
	}

	var overlap, rest []string
	seen := make(map[string]bool, len(jobSkills)+len(candidateSkills))
	add := func(dst *[]string, s string) {
		k := key(s)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		*dst = append(*dst, strings.TrimSpace(s))
	}

	for _, s := range candidateSkills {
		if onJob[key(s)] {
			add(&overlap, s)
		}
	}
	for _, s := range jobSkills {
		add(&rest, s)
	}
	for _, s := range candidateSkills {
		add(&rest, s)
	}
	return append(overlap, rest...)
}

var listMarker = regexp.MustCompile(`^(?:\d+\s*[.)]|[-*•])(?:\s+|$)`)

// parseQuestions keeps the numbered or bulleted lines of a model reply,
// stripped of their markers.
func parseQuestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		loc := listMarker.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if q := strings.TrimSpace(line[loc[1]:]); q != "" {
			out = append(out, q)
		}
	}
	return out
}
