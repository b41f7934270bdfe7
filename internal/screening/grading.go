package screening

import (
	"errors"
	"math"
)

// Grading errors raised instead of silently producing a score.
var (
	ErrNoQuestions         = errors.New("grading: no questions to grade")
	ErrAnswerCountMismatch = errors.New("grading: answers length does not match question bank length")
)

// AnswerDetail records the outcome for a single question. Both indices are kept
// so callers can map back to option text without re-deriving the answer key.
type AnswerDetail struct {
	QuestionID         string `json:"questionId"`
	IsCorrect          bool   `json:"isCorrect"`
	UserAnswerIndex    *int   `json:"userAnswerIndex"`
	CorrectAnswerIndex int    `json:"correctAnswerIndex"`
}

// GradingResult is the deterministic outcome of grading one submission.
type GradingResult struct {
	Score   int            `json:"score"`
	Correct int            `json:"correct"`
	Total   int            `json:"total"`
	Details []AnswerDetail `json:"details"`
}

// Grade scores answers against the normalized question bank. A nil slot is an
// unanswered question and always counts as incorrect. The answers slice must be
// aligned to the bank order and of equal length.
func Grade(answers []*int, questions []Question) (GradingResult, error) {
	if len(questions) == 0 {
		return GradingResult{}, ErrNoQuestions
	}
	if len(answers) != len(questions) {
		return GradingResult{}, ErrAnswerCountMismatch
	}

	result := GradingResult{
		Total:   len(questions),
		Details: make([]AnswerDetail, 0, len(questions)),
	}
	for i, q := range questions {
		detail := AnswerDetail{
			QuestionID:         q.ID,
			UserAnswerIndex:    answers[i],
			CorrectAnswerIndex: q.CorrectOptionIndex,
		}
		if answers[i] != nil && *answers[i] == q.CorrectOptionIndex {
			detail.IsCorrect = true
			result.Correct++
		}
		result.Details = append(result.Details, detail)
	}
	result.Score = int(math.Round(100 * float64(result.Correct) / float64(result.Total)))
	return result, nil
}
