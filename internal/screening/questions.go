package screening

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Question categories and difficulties accepted in a normalized bank.
const (
	CategoryAptitude  = "aptitude"
	CategoryTechnical = "technical"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question is a single multiple-choice question in its normalized form.
type Question struct {
	ID                 string   `json:"id"`
	Prompt             string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Explanation        string   `json:"explanation,omitempty"`
	Category           string   `json:"category"`
	Difficulty         string   `json:"difficulty"`
}

// Validate checks structural integrity of a single question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return errors.New("question id required")
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("question %s: prompt required", q.ID)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %s: at least two options required", q.ID)
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return fmt.Errorf("question %s: correct option index %d out of range [0,%d)", q.ID, q.CorrectOptionIndex, len(q.Options))
	}
	switch q.Category {
	case CategoryAptitude, CategoryTechnical:
	default:
		return fmt.Errorf("question %s: unknown category %q", q.ID, q.Category)
	}
	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("question %s: unknown difficulty %q", q.ID, q.Difficulty)
	}
	return nil
}

// ErrUnknownBankShape indicates the raw question bank matched neither the flat
// list nor the grouped {aptitude,technical} shape.
var ErrUnknownBankShape = errors.New("question bank: unrecognized shape")

// rawQuestion tolerates the two historical index fields: "correctOptionIndex"
// and the legacy "correct". When both are present the modern field wins.
type rawQuestion struct {
	ID                 string   `json:"id"`
	Prompt             string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correctOptionIndex"`
	Correct            *int     `json:"correct"`
	Explanation        string   `json:"explanation"`
	Category           string   `json:"category"`
	Difficulty         string   `json:"difficulty"`
}

func (r rawQuestion) toQuestion(defaultCategory string) (Question, error) {
	q := Question{
		ID:          r.ID,
		Prompt:      r.Prompt,
		Options:     r.Options,
		Explanation: r.Explanation,
		Category:    r.Category,
		Difficulty:  r.Difficulty,
	}
	switch {
	case r.CorrectOptionIndex != nil:
		q.CorrectOptionIndex = *r.CorrectOptionIndex
	case r.Correct != nil:
		q.CorrectOptionIndex = *r.Correct
	default:
		return Question{}, fmt.Errorf("question %s: missing correct option index", r.ID)
	}
	if q.Category == "" {
		q.Category = defaultCategory
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// groupedBank is the legacy grouped shape {aptitude: [...], technical: [...]}.
type groupedBank struct {
	Aptitude  []rawQuestion `json:"aptitude"`
	Technical []rawQuestion `json:"technical"`
}

// NormalizeQuestionBank turns raw question-bank JSON into one canonical ordered
// sequence, aptitude items before technical items, preserving question ids.
// Both legacy shapes are accepted; anything else fails with ErrUnknownBankShape.
func NormalizeQuestionBank(raw json.RawMessage) ([]Question, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, ErrUnknownBankShape
	}
	switch trimmed[0] {
	case '[':
		var flat []rawQuestion
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownBankShape, err)
		}
		return normalizeFlat(flat)
	case '{':
		var grouped groupedBank
		if err := json.Unmarshal(raw, &grouped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownBankShape, err)
		}
		if len(grouped.Aptitude) == 0 && len(grouped.Technical) == 0 {
			return nil, ErrUnknownBankShape
		}
		out := make([]Question, 0, len(grouped.Aptitude)+len(grouped.Technical))
		for _, r := range grouped.Aptitude {
			q, err := r.toQuestion(CategoryAptitude)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		for _, r := range grouped.Technical {
			q, err := r.toQuestion(CategoryTechnical)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	default:
		return nil, ErrUnknownBankShape
	}
}

func normalizeFlat(flat []rawQuestion) ([]Question, error) {
	if len(flat) == 0 {
		return nil, ErrUnknownBankShape
	}
	// Stable partition: aptitude first, technical after, original order kept
	// within each category.
	var aptitude, technical []Question
	for _, r := range flat {
		q, err := r.toQuestion(CategoryTechnical)
		if err != nil {
			return nil, err
		}
		if q.Category == CategoryAptitude {
			aptitude = append(aptitude, q)
		} else {
			technical = append(technical, q)
		}
	}
	return append(aptitude, technical...), nil
}

// SplitByCategory returns the aptitude and technical slices of a normalized bank.
func SplitByCategory(bank []Question) (aptitude, technical []Question) {
	for _, q := range bank {
		if q.Category == CategoryAptitude {
			aptitude = append(aptitude, q)
		} else {
			technical = append(technical, q)
		}
	}
	return aptitude, technical
}

// ValidateBank validates every question in a normalized bank.
func ValidateBank(bank []Question) error {
	if len(bank) == 0 {
		return errors.New("question bank is empty")
	}
	for _, q := range bank {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}
