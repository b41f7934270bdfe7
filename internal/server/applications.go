package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hireloop/screener/internal/notify"
	"github.com/hireloop/screener/internal/rag"
	"github.com/hireloop/screener/internal/runtime"
	"github.com/hireloop/screener/internal/screening"
	"github.com/hireloop/screener/internal/scoring"
	"github.com/hireloop/screener/internal/store"
	"github.com/hireloop/screener/provider"
)

type resumeScorer interface {
	Score(ctx context.Context, job scoring.JobProfile, resumeText string) (scoring.Result, error)
}

var gradingsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "screener_gradings_total",
	Help: "Assessment submissions graded.",
})

// ApplicationsHandler runs the screening pipeline and the status state machine.
type ApplicationsHandler struct {
	Store     *store.Store
	Scorer    resumeScorer
	Publisher notify.Publisher
	Secret    []byte
	Logger    *log.Logger
}

func (h *ApplicationsHandler) Register(jobs, apps *echo.Group) {
	jobs.POST("/:id/applications", h.create)
	apps.GET("/:id", h.get)
	apps.POST("/:id/submit", h.submit)
	apps.POST("/:id/reject", h.reject)
	apps.POST("/:id/disqualify", h.disqualify)
	apps.POST("/:id/offer", h.offer)
	apps.POST("/:id/hire", h.hire)
}

func (h *ApplicationsHandler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

// create screens the resume, decides TEST_PENDING or REJECTED, and for passing
// candidates generates the one-time question bank before the row is written.
func (h *ApplicationsHandler) create(c echo.Context) error {
	var req CreateApplicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ResumeText) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resume_text required")
	}
	ctx := c.Request().Context()

	job, err := h.Store.GetJob(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !job.Active {
		return echo.NewHTTPError(http.StatusConflict, "job is no longer accepting applications")
	}

	verdict, err := h.Scorer.Score(ctx, scoring.JobProfile{
		Title:       job.Title,
		Description: job.Description,
		Skills:      job.Skills,
	}, req.ResumeText)
	if err != nil {
		return mapModelError(err)
	}
	if req.CandidateName == "" {
		req.CandidateName = verdict.CandidateName
	}
	if req.CandidateEmail == "" {
		req.CandidateEmail = verdict.CandidateEmail
	}

	outcome := screening.ScreeningOutcome(verdict.Score)
	rec := store.ApplicationRecord{
		JobID:          job.ID,
		CandidateName:  req.CandidateName,
		CandidateEmail: req.CandidateEmail,
		ResumeText:     req.ResumeText,
		ScreeningScore: verdict.Score,
		Summary:        verdict.Summary,
		MissingSkills:  verdict.MissingSkills,
		Status:         outcome,
	}
	if outcome == screening.StatusRejected {
		rec.RejectReason = "screening score below threshold"
	}

	if outcome == screening.StatusTestPending {
		// The bank rides in the screening verdict and is written exactly once,
		// at this transition.
		if len(verdict.Questions) == 0 {
			return echo.NewHTTPError(http.StatusBadGateway, "screening verdict carried no question bank")
		}
		raw, err := json.Marshal(verdict.Questions)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		rec.QuestionBank = raw
	}

	id, err := h.Store.CreateApplication(ctx, rec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(ctx, notify.TransitionEvent{
		ApplicationID: id,
		JobID:         job.ID,
		CandidateName: rec.CandidateName,
		From:          string(screening.StatusNew),
		To:            string(outcome),
		Reason:        rec.RejectReason,
		Score:         &verdict.Score,
	})

	resp := ApplicationResponse{
		ID:             id,
		JobID:          job.ID,
		CandidateName:  rec.CandidateName,
		CandidateEmail: rec.CandidateEmail,
		ScreeningScore: verdict.Score,
		Summary:        verdict.Summary,
		MissingSkills:  verdict.MissingSkills,
		Status:         string(outcome),
		RejectReason:   rec.RejectReason,
	}
	if outcome == screening.StatusTestPending {
		tok, err := runtime.SignToken(id, runtime.RoleCandidate, h.Secret, 7*24*time.Hour)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		resp.CandidateToken = tok
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *ApplicationsHandler) get(c echo.Context) error {
	rec, err := h.Store.GetApplication(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "application not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toApplicationResponse(rec))
}

// submit grades the candidate's answer sheet and settles the assessment. The
// write is a compare-and-set on status and the empty answer sheet, so a second
// submission always loses.
func (h *ApplicationsHandler) submit(c echo.Context) error {
	id := c.Param("id")
	if role, _ := c.Get("role").(string); role == runtime.RoleCandidate {
		if sub, _ := c.Get("user_id").(string); sub != id {
			return echo.NewHTTPError(http.StatusForbidden, "token does not match application")
		}
	}

	var req SubmitAnswersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	rec, err := h.Store.GetApplication(ctx, id)
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
	result, err := screening.Grade(req.Answers, bank)
	if errors.Is(err, screening.ErrAnswerCountMismatch) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, screening.ErrNoQuestions) {
		return echo.NewHTTPError(http.StatusConflict, "application has no question bank")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	gradingsTotal.Inc()

	outcome := screening.AssessmentOutcome(result.Score)
	rawAnswers, err := json.Marshal(req.Answers)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Store.RecordSubmission(ctx, id, rawAnswers, result.Score, outcome); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return echo.NewHTTPError(http.StatusConflict, "assessment already settled")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(ctx, notify.TransitionEvent{
		ApplicationID: id,
		JobID:         rec.JobID,
		CandidateName: rec.CandidateName,
		From:          string(screening.StatusTestPending),
		To:            string(outcome),
		Score:         &result.Score,
	})
	return c.JSON(http.StatusOK, SubmitAnswersResponse{
		Score:   result.Score,
		Correct: result.Correct,
		Total:   result.Total,
		Status:  string(outcome),
	})
}

func (h *ApplicationsHandler) reject(c echo.Context) error {
	return h.decide(c, func(current screening.Status, reason string) (screening.Status, string, error) {
		if err := screening.CheckManualReject(current, reason); err != nil {
			return "", "", err
		}
		return screening.StatusRejected, reason, nil
	}, true)
}

// disqualify is the proctoring path: a violation rejects the application from
// any live status. Proctors fire without prose, so an empty reason defaults to
// the generic violation code.
func (h *ApplicationsHandler) disqualify(c echo.Context) error {
	return h.decide(c, func(current screening.Status, reason string) (screening.Status, string, error) {
		if reason == "" {
			reason = "proctor_violation"
		}
		if err := screening.CheckDisqualify(current); err != nil {
			return "", "", err
		}
		return screening.StatusRejected, reason, nil
	}, true)
}

func (h *ApplicationsHandler) offer(c echo.Context) error {
	return h.decide(c, func(current screening.Status, _ string) (screening.Status, string, error) {
		if err := screening.CheckOffer(current); err != nil {
			return "", "", err
		}
		return screening.StatusOffer, "", nil
	}, false)
}

func (h *ApplicationsHandler) hire(c echo.Context) error {
	return h.decide(c, func(current screening.Status, _ string) (screening.Status, string, error) {
		if err := screening.CheckHire(current); err != nil {
			return "", "", err
		}
		return screening.StatusHired, "", nil
	}, false)
}

func (h *ApplicationsHandler) decide(c echo.Context, next func(screening.Status, string) (screening.Status, string, error), wantReason bool) error {
	var req DecisionRequest
	if wantReason {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		req.Reason = strings.TrimSpace(req.Reason)
	}
	id := c.Param("id")
	ctx := c.Request().Context()

	rec, err := h.Store.GetApplication(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "application not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	to, reason, err := next(rec.Status, req.Reason)
	if errors.Is(err, screening.ErrReasonRequired) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	if err := h.Store.TransitionStatus(ctx, id, rec.Status, to, reason); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return echo.NewHTTPError(http.StatusConflict, "application changed concurrently, retry")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(ctx, notify.TransitionEvent{
		ApplicationID: id,
		JobID:         rec.JobID,
		CandidateName: rec.CandidateName,
		From:          string(rec.Status),
		To:            string(to),
		Reason:        reason,
	})

	rec.Status = to
	rec.RejectReason = reason
	return c.JSON(http.StatusOK, toApplicationResponse(rec))
}

// publish is fire-and-forget: a notification failure never rolls back a
// decision that already committed.
func (h *ApplicationsHandler) publish(ctx context.Context, event notify.TransitionEvent) {
	if h.Publisher == nil {
		return
	}
	if _, err := h.Publisher.PublishTransition(ctx, event); err != nil {
		h.logger().Printf("publish transition for %s: %v", event.ApplicationID, err)
	}
}

func toApplicationResponse(rec store.ApplicationRecord) ApplicationResponse {
	resp := ApplicationResponse{
		ID:             rec.ID,
		JobID:          rec.JobID,
		CandidateName:  rec.CandidateName,
		CandidateEmail: rec.CandidateEmail,
		ScreeningScore: rec.ScreeningScore,
		Summary:        rec.Summary,
		MissingSkills:  rec.MissingSkills,
		Status:         string(rec.Status),
		RejectReason:   rec.RejectReason,
	}
	if rec.AssessmentScore.Valid {
		v := int(rec.AssessmentScore.Int64)
		resp.AssessmentScore = &v
	}
	return resp
}

func mapModelError(err error) error {
	if errors.Is(err, provider.ErrUpstream) {
		return echo.NewHTTPError(http.StatusBadGateway, "model service unavailable, try again later")
	}
	if errors.Is(err, scoring.ErrBadModelOutput) || errors.Is(err, rag.ErrBadGeneration) {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if errors.Is(err, rag.ErrNoContext) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
