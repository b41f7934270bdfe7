package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hireloop/screener/internal/rag"
	"github.com/hireloop/screener/internal/screening"
	"github.com/hireloop/screener/internal/store"
)

type bankGenerator interface {
	Generate(ctx context.Context, req rag.GenerateRequest) ([]screening.Question, error)
}

// SessionsHandler manages assessment sessions: regenerating a fresh grounded
// question bank and handing the candidate a sanitized view of it.
type SessionsHandler struct {
	Store     *store.Store
	Generator bankGenerator
	Aptitude  int
	Technical int
}

func (h *SessionsHandler) Register(apps *echo.Group) {
	apps.POST("/:id/session", h.start)
	apps.GET("/:id/questions", h.questions)
}

// QuestionView is a question with the answer key stripped.
type QuestionView struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// start regenerates the question bank from the knowledge base and opens a
// session. Allowed only while the application awaits its test and no answers
// have been recorded.
func (h *SessionsHandler) start(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	difficulty := strings.ToLower(strings.TrimSpace(req.Difficulty))
	switch difficulty {
	case "":
		difficulty = screening.DifficultyMedium
	case screening.DifficultyEasy, screening.DifficultyMedium, screening.DifficultyHard:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "difficulty must be easy, medium, or hard")
	}

	rec, err := h.Store.GetApplication(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "application not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if rec.Status != screening.StatusTestPending {
		return echo.NewHTTPError(http.StatusConflict, "application is not awaiting a test")
	}
	job, err := h.Store.GetJob(ctx, rec.JobID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	bank, err := h.Generator.Generate(ctx, rag.GenerateRequest{
		JobTitle:       job.Title,
		Skills:         job.Skills,
		Difficulty:     difficulty,
		AptitudeCount:  h.Aptitude,
		TechnicalCount: h.Technical,
	})
	if err != nil {
		return mapModelError(err)
	}
	raw, err := json.Marshal(bank)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.ReplaceQuestionBank(ctx, id, raw); err != nil {
		if errors.Is(err, store.ErrAnswersLocked) {
			return echo.NewHTTPError(http.StatusConflict, "answers already recorded, bank is locked")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sessionID, err := h.Store.CreateAssessmentSession(ctx, store.SessionRecord{
		ApplicationID: id,
		JobID:         rec.JobID,
		Difficulty:    difficulty,
		QuestionBank:  raw,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	apt, tech := screening.SplitByCategory(bank)
	return c.JSON(http.StatusCreated, SessionResponse{
		SessionID:     sessionID,
		ApplicationID: id,
		Difficulty:    difficulty,
		Aptitude:      len(apt),
		Technical:     len(tech),
	})
}

// questions returns the candidate view of the bank: ids, prompts, and options
// only. The answer key never leaves the server before submission.
func (h *SessionsHandler) questions(c echo.Context) error {
	rec, err := h.Store.GetApplication(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "application not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := screening.CheckSubmit(rec.Status); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	bank, err := screening.NormalizeQuestionBank(rec.QuestionBank)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]QuestionView, 0, len(bank))
	for _, q := range bank {
		out = append(out, QuestionView{
			ID:         q.ID,
			Question:   q.Prompt,
			Options:    q.Options,
			Category:   q.Category,
			Difficulty: q.Difficulty,
		})
	}
	return c.JSON(http.StatusOK, out)
}
