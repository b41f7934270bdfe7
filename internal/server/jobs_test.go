package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/hireloop/screener/internal/store"
)

func TestCreateJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	h := &JobsHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`INSERT INTO jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("job-1"))

	ctx, rec := newJSONContext(t, http.MethodPost, "/api/jobs",
		`{"title":"Backend Engineer","description":"Builds services","skills":["Go","Postgres"]}`)
	if err := h.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp IDResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "job-1" {
		t.Fatalf("unexpected id %q", resp.ID)
	}
}

func TestCreateJobRequiresTitle(t *testing.T) {
	h := &JobsHandler{}
	ctx, _ := newJSONContext(t, http.MethodPost, "/api/jobs", `{"description":"no title"}`)
	err := h.create(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestListJobsActiveOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	h := &JobsHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`SELECT id, title, description, skills, active, created_at FROM jobs`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "skills", "active", "created_at"}).
			AddRow("job-1", "Backend Engineer", "Builds services", "{Go}", true, time.Now()))

	ctx, rec := newJSONContext(t, http.MethodGet, "/api/jobs", "")
	if err := h.list(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	var resp []JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].Title != "Backend Engineer" || len(resp[0].Skills) != 1 {
		t.Fatalf("unexpected jobs %+v", resp)
	}
}

func TestDeactivateJobNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	h := &JobsHandler{Store: &store.Store{DB: db}}

	mock.ExpectExec(`UPDATE jobs SET active=FALSE WHERE id=\$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, _ := newJSONContext(t, http.MethodDelete, "/api/jobs/missing", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	err = h.deactivate(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
