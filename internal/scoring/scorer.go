// Package scoring turns a raw resume and a job profile into a screening
// verdict using a chat model, with deterministic guard rails applied on top of
// whatever the model returns.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hireloop/screener/internal/helpers"
	"github.com/hireloop/screener/internal/screening"
	"github.com/hireloop/screener/provider"
)

var screeningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "screener_screenings_total",
	Help: "Resume screenings completed, by verdict.",
}, []string{"capped"})

// ErrBadModelOutput means the model response could not be parsed into a
// screening verdict even after a retry.
var ErrBadModelOutput = errors.New("model produced unparseable screening output")

// MissingSkillCap is the highest score a resume can keep when the model flags
// any required skill as absent. It sits below the screening pass mark so a
// missing hard requirement always routes the candidate away from auto-pass.
const MissingSkillCap = 55

// JobProfile is the role a resume is screened against.
type JobProfile struct {
	Title       string
	Description string
	Skills      []string
}

// Result is the parsed and clamped screening verdict. Questions is the
// one-time assessment bank the model generates alongside the score; it is
// normalized and validated before the verdict is accepted.
type Result struct {
	Score          int                  `json:"score"`
	Summary        string               `json:"summary"`
	MissingSkills  []string             `json:"missing_skills"`
	Questions      []screening.Question `json:"questions,omitempty"`
	CandidateName  string               `json:"candidate_name,omitempty"`
	CandidateEmail string               `json:"candidate_email,omitempty"`
	Capped         bool                 `json:"-"`
}

// Scorer screens resumes against a job profile.
type Scorer struct {
	provider       provider.Provider
	maxResumeRunes int
	logger         *log.Logger
}

func NewScorer(p provider.Provider, maxResumeRunes int, logger *log.Logger) *Scorer {
	if maxResumeRunes <= 0 {
		maxResumeRunes = 12000
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SCREEN] ", log.LstdFlags)
	}
	return &Scorer{provider: p, maxResumeRunes: maxResumeRunes, logger: logger}
}

// Score asks the model for a structured verdict on the resume, retrying once
// when the reply cannot be parsed. The returned score is clamped to [0,100]
// and capped at MissingSkillCap when any required skill is reported missing.
func (s *Scorer) Score(ctx context.Context, job JobProfile, resumeText string) (Result, error) {
	resumeText = strings.TrimSpace(resumeText)
	if resumeText == "" {
		return Result{}, fmt.Errorf("empty resume text: %w", ErrBadModelOutput)
	}
	if runes := []rune(resumeText); len(runes) > s.maxResumeRunes {
		resumeText = string(runes[:s.maxResumeRunes])
	}

	messages := []provider.Message{
		{Role: "system", Content: screeningSystemPrompt},
		{Role: "user", Content: s.buildPrompt(job, resumeText)},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := s.provider.Complete(ctx, messages)
		if err != nil {
			return Result{}, fmt.Errorf("screen resume: %w", err)
		}
		res, err := s.parse(raw)
		if err == nil {
			s.applyGuards(job, &res)
			screeningsTotal.WithLabelValues(fmt.Sprintf("%t", res.Capped)).Inc()
			return res, nil
		}
		lastErr = err
		s.logger.Printf("attempt %d: rejected model output: %v", attempt+1, err)
		messages = append(messages,
			provider.Message{Role: "assistant", Content: raw},
			provider.Message{Role: "user", Content: "The previous output was invalid: " + err.Error() + ". Return ONLY the corrected JSON object."},
		)
	}
	return Result{}, fmt.Errorf("%w: %v", ErrBadModelOutput, lastErr)
}

func (s *Scorer) parse(raw string) (Result, error) {
	payload, err := helpers.ExtractJSON(raw)
	if err != nil {
		return Result{}, err
	}
	var verdict struct {
		Score          int             `json:"score"`
		Summary        string          `json:"summary"`
		MissingSkills  []string        `json:"missing_skills"`
		Questions      json.RawMessage `json:"questions"`
		CandidateName  string          `json:"candidate_name"`
		CandidateEmail string          `json:"candidate_email"`
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&verdict); err != nil {
		return Result{}, fmt.Errorf("decode screening verdict: %w", err)
	}
	if strings.TrimSpace(verdict.Summary) == "" {
		return Result{}, errors.New("verdict has no summary")
	}
	res := Result{
		Score:          verdict.Score,
		Summary:        verdict.Summary,
		MissingSkills:  verdict.MissingSkills,
		CandidateName:  verdict.CandidateName,
		CandidateEmail: verdict.CandidateEmail,
	}
	// The question bank rides along in the verdict; when the model supplied
	// one it must normalize cleanly, otherwise the whole verdict is rejected.
	if len(verdict.Questions) > 0 && string(verdict.Questions) != "null" {
		bank, err := screening.NormalizeQuestionBank(verdict.Questions)
		if err != nil {
			return Result{}, fmt.Errorf("verdict question bank: %w", err)
		}
		res.Questions = bank
	}
	return res, nil
}

// applyGuards enforces the deterministic rules the model is not trusted with.
func (s *Scorer) applyGuards(job JobProfile, res *Result) {
	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}
	if len(res.MissingSkills) == 0 {
		return
	}
	required := make(map[string]bool, len(job.Skills))
	for _, sk := range job.Skills {
		required[strings.ToLower(strings.TrimSpace(sk))] = true
	}
	for _, missing := range res.MissingSkills {
		if required[strings.ToLower(strings.TrimSpace(missing))] && res.Score > MissingSkillCap {
			res.Score = MissingSkillCap
			res.Capped = true
			return
		}
	}
}

func (s *Scorer) buildPrompt(job JobProfile, resumeText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Job title: %s\n", job.Title)
	if job.Description != "" {
		fmt.Fprintf(&sb, "Job description: %s\n", job.Description)
	}
	if len(job.Skills) > 0 {
		fmt.Fprintf(&sb, "Required skills: %s\n", strings.Join(job.Skills, ", "))
	}
	sb.WriteString("\nResume:\n")
	sb.WriteString(resumeText)
	sb.WriteString(`

Evaluate the resume against the role and respond with a JSON object:
{
  "score": <0-100 integer fit score>,
  "summary": "<3-5 sentence assessment>",
  "missing_skills": ["<required skills with no evidence in the resume>"],
  "questions": [ { "id": "apt-1", "question": "...", "options": ["...","...","...","..."], "correctOptionIndex": 0, "category": "aptitude", "difficulty": "easy" } ],
  "candidate_name": "<name if stated, else empty>",
  "candidate_email": "<email if stated, else empty>"
}
The questions array is the candidate's assessment bank: aptitude questions first, then technical ones for the listed skills, mixed difficulty, exactly 4 options each.
List a skill in missing_skills only when the resume shows no evidence of it. Respond with the JSON object alone.`)
	return sb.String()
}

const screeningSystemPrompt = `You are a technical recruiter screening resumes. You judge only what the resume states, you never infer unstated experience, and you respond with JSON only.`
