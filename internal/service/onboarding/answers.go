package onboarding

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/model"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
)

// normalizeSteps checks every question and assigns ids to those without one.
func normalizeSteps(steps []model.OnboardingStep) (model.OnboardingSteps, error) {
	if len(steps) == 0 {
		return nil, apperrors.BadRequest("template needs at least one step", nil)
	}

	out := make(model.OnboardingSteps, len(steps))
	seen := make(map[string]bool)
	for i, step := range steps {
		if len(step.Questions) == 0 {
			return nil, apperrors.BadRequest(fmt.Sprintf("step %q has no questions", step.Title), nil)
		}
		questions := make([]model.OnboardingQuestion, len(step.Questions))
		copy(questions, step.Questions)

		for j := range questions {
			q := &questions[j]
			q.ID = strings.TrimSpace(q.ID)
			if q.ID == "" {
				q.ID = uuid.NewString()[:8]
			}
			if seen[q.ID] {
				return nil, apperrors.BadRequest(fmt.Sprintf("question id %q is used more than once", q.ID), nil)
			}
			seen[q.ID] = true

			switch q.Kind {
			case model.QuestionSingleChoice, model.QuestionMultiChoice:
				if len(q.Options) == 0 {
					return nil, apperrors.BadRequest(fmt.Sprintf("question %q needs options", q.Label), nil)
				}
			case model.QuestionScale:
				if q.Min == nil || q.Max == nil || *q.Min >= *q.Max {
					return nil, apperrors.BadRequest(fmt.Sprintf("question %q needs min below max", q.Label), nil)
				}
			case model.QuestionText, model.QuestionBoolean, model.QuestionDate:
			default:
				return nil, apperrors.BadRequest(fmt.Sprintf("question %q has unknown kind %q", q.Label, q.Kind), nil)
			}
		}
		out[i] = step
		out[i].Questions = questions
	}
	return out, nil
}

// validateAnswers checks answers against the template and returns only the
// answers to known questions. All problems are reported together.
func validateAnswers(tpl *model.OnboardingTemplate, answers map[string]interface{}) (model.JSONMap, error) {
	clean := make(model.JSONMap)
	known := make(map[string]bool)
	var problems []string

	for _, q := range tpl.Questions() {
		known[q.ID] = true
		v, ok := answers[q.ID]
		if !ok || v == nil || isBlank(v) {
			if q.Required {
				problems = append(problems, fmt.Sprintf("%s is required", q.Label))
			}
			continue
		}
		if err := checkAnswer(q, v); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", q.Label, err))
			continue
		}
		clean[q.ID] = v
	}
	for id := range answers {
		if !known[id] {
			problems = append(problems, fmt.Sprintf("unknown question %q", id))
		}
	}

	if len(problems) > 0 {
		return nil, apperrors.BadRequest("invalid answers: "+strings.Join(problems, "; "), nil)
	}
	return clean, nil
}

func isBlank(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func checkAnswer(q model.OnboardingQuestion, v interface{}) error {
	switch q.Kind {
	case model.QuestionText:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("must be text")
		}
	case model.QuestionSingleChoice:
		s, ok := v.(string)
		if !ok || !contains(q.Options, s) {
			return fmt.Errorf("must be one of %s", strings.Join(q.Options, ", "))
		}
	case model.QuestionMultiChoice:
		choices, ok := stringSlice(v)
		if !ok {
			return fmt.Errorf("must be a list of options")
		}
		for _, c := range choices {
			if !contains(q.Options, c) {
				return fmt.Errorf("%q is not an option", c)
			}
		}
	case model.QuestionScale:
		n, ok := number(v)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("must be a whole number")
		}
		if n < float64(*q.Min) || n > float64(*q.Max) {
			return fmt.Errorf("must be between %d and %d", *q.Min, *q.Max)
		}
	case model.QuestionBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("must be true or false")
		}
	case model.QuestionDate:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be a date")
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("must be a date in YYYY-MM-DD form")
		}
	}
	return nil
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

func stringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
