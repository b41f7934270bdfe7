package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hireloop/screener/internal/screening"
)

// Store wraps the Postgres connection. All mutations of application status go
// through compare-and-swap updates so the guard and the transition are one
// atomic statement.
type Store struct {
	DB *sql.DB
}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when a CAS transition matched zero rows:
	// a concurrent writer moved the application first.
	ErrStatusConflict = errors.New("status changed concurrently")
	// ErrAnswersLocked is returned when a submission would overwrite an
	// already-recorded answer set.
	ErrAnswersLocked = errors.New("answers already recorded")
	// ErrNoChunksForSource is returned when a chunk deletion removed zero
	// rows; callers cannot distinguish "never indexed" from "already gone".
	ErrNoChunksForSource = errors.New("no chunks stored for source")
)

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations (recruiter accounts)

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

// Job postings

// JobRecord is a stored job posting.
type JobRecord struct {
	ID          string
	Title       string
	Description string
	Skills      []string
	Active      bool
	CreatedAt   time.Time
}

func (s *Store) CreateJob(ctx context.Context, title, description string, skills []string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("job title required")
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO jobs (title, description, skills, active)
VALUES ($1,$2,$3,TRUE)
RETURNING id`, title, description, pq.Array(skills)).Scan(&id)
	return id, err
}

func (s *Store) GetJob(ctx context.Context, id string) (JobRecord, error) {
	var rec JobRecord
	err := s.DB.QueryRowContext(ctx, `
SELECT id, title, description, skills, active, created_at FROM jobs WHERE id=$1`, id).
		Scan(&rec.ID, &rec.Title, &rec.Description, pq.Array(&rec.Skills), &rec.Active, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *Store) ListJobs(ctx context.Context, activeOnly bool) ([]JobRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, description, skills, active, created_at FROM jobs
WHERE ($1 = FALSE OR active = TRUE)
ORDER BY created_at DESC`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JobRecord
	for rows.Next() {
		var rec JobRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, pq.Array(&rec.Skills), &rec.Active, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeactivateJob soft-deactivates a posting; rows referenced by applications
// stay intact.
func (s *Store) DeactivateJob(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE jobs SET active=FALSE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Applications

// ApplicationRecord is a stored candidate application.
type ApplicationRecord struct {
	ID              string
	JobID           string
	CandidateName   string
	CandidateEmail  string
	ResumeText      string
	ScreeningScore  int
	Summary         string
	MissingSkills   []string
	QuestionBank    json.RawMessage
	Answers         json.RawMessage
	AssessmentScore sql.NullInt64
	Status          screening.Status
	RejectReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateApplication inserts a screened application. The screening transition
// (NEW -> TEST_PENDING or NEW -> REJECTED) and the one-time question bank
// generation happen before the insert, so the row is born post-screening.
func (s *Store) CreateApplication(ctx context.Context, rec ApplicationRecord) (string, error) {
	if rec.Status != screening.StatusTestPending && rec.Status != screening.StatusRejected {
		return "", fmt.Errorf("application must be created post-screening, got status %s", rec.Status)
	}
	bank := rec.QuestionBank
	if len(bank) == 0 {
		bank = json.RawMessage(`[]`)
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO applications
  (job_id, candidate_name, candidate_email, resume_text, screening_score, summary, missing_skills, question_bank, answers, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'[]'::jsonb,$9)
RETURNING id`,
		nullableString(rec.JobID), rec.CandidateName, rec.CandidateEmail, rec.ResumeText,
		rec.ScreeningScore, rec.Summary, pq.Array(rec.MissingSkills), []byte(bank), string(rec.Status)).Scan(&id)
	return id, err
}

func (s *Store) GetApplication(ctx context.Context, id string) (ApplicationRecord, error) {
	var (
		rec    ApplicationRecord
		jobID  sql.NullString
		bank   []byte
		ans    []byte
		status string
		reason sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, job_id, candidate_name, candidate_email, resume_text, screening_score, summary,
       missing_skills, question_bank, answers, assessment_score, status, reject_reason,
       created_at, updated_at
FROM applications WHERE id=$1`, id).Scan(
		&rec.ID, &jobID, &rec.CandidateName, &rec.CandidateEmail, &rec.ResumeText,
		&rec.ScreeningScore, &rec.Summary, pq.Array(&rec.MissingSkills), &bank, &ans,
		&rec.AssessmentScore, &status, &reason, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ApplicationRecord{}, ErrNotFound
	}
	if err != nil {
		return ApplicationRecord{}, err
	}
	rec.JobID = jobID.String
	rec.QuestionBank = bank
	rec.Answers = ans
	rec.RejectReason = reason.String
	rec.Status, err = screening.ParseStatus(status)
	return rec, err
}

// TransitionStatus performs the atomic guard-then-act update: it moves the
// application from exactly `from` to `to` and reports ErrStatusConflict when a
// concurrent writer won the race. Rejections carry the reason code.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to screening.Status, reason string) error {
	if !screening.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", screening.ErrIllegalTransition, from, to)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE applications
SET status=$3, reject_reason=COALESCE(NULLIF($4,''), reject_reason), updated_at=NOW()
WHERE id=$1 AND status=$2`, id, string(from), string(to), reason)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusConflict
	}
	return nil
}

// RecordSubmission stores the graded answer set and the resulting status in
// one CAS statement. The guard requires status TEST_PENDING and an empty
// answers array, making the answers write-once.
func (s *Store) RecordSubmission(ctx context.Context, id string, answers json.RawMessage, score int, to screening.Status) error {
	if to != screening.StatusInterview && to != screening.StatusRejected {
		return fmt.Errorf("%w: TEST_PENDING -> %s", screening.ErrIllegalTransition, to)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE applications
SET answers=$2, assessment_score=$3, status=$4, updated_at=NOW()
WHERE id=$1 AND status=$5 AND answers = '[]'::jsonb`,
		id, []byte(answers), score, string(to), string(screening.StatusTestPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ReplaceQuestionBank swaps in a freshly generated (e.g. knowledge-grounded)
// question bank. Legal only while the assessment has not been taken.
func (s *Store) ReplaceQuestionBank(ctx context.Context, id string, bank json.RawMessage) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE applications
SET question_bank=$2, updated_at=NOW()
WHERE id=$1 AND status=$3 AND answers = '[]'::jsonb`,
		id, []byte(bank), string(screening.StatusTestPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAnswersLocked
	}
	return nil
}

// Knowledge documents and chunks

// DocumentRecord identifies an uploaded knowledge document.
type DocumentRecord struct {
	ID         string
	Name       string
	SourcePath string
	CreatedAt  time.Time
}

// ChunkRecord is an embedded slice of a document, immutable once stored.
type ChunkRecord struct {
	ID           string
	SourceID     string
	DocumentName string
	Ordinal      int
	Text         string
	Vector       []float32
	Metadata     map[string]interface{}
}

// ChunkSearchResult is a similarity hit against the chunk index.
type ChunkSearchResult struct {
	ChunkID      string
	SourceID     string
	DocumentName string
	Ordinal      int
	Text         string
	Distance     float64
	Metadata     map[string]interface{}
}

func (s *Store) CreateKnowledgeDocument(ctx context.Context, name, sourcePath string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO knowledge_documents (id, name, source_path) VALUES ($1,$2,$3)
ON CONFLICT (source_path) DO UPDATE SET name = EXCLUDED.name`, id, name, sourcePath)
	if err != nil {
		return "", err
	}
	// The conflict branch keeps the original id; read it back.
	var docID string
	if err := s.DB.QueryRowContext(ctx, `SELECT id FROM knowledge_documents WHERE source_path=$1`, sourcePath).Scan(&docID); err != nil {
		return "", err
	}
	return docID, nil
}

// UpsertChunk stores one chunk keyed by chunk id. Re-ingesting the same id
// overwrites instead of duplicating.
func (s *Store) UpsertChunk(ctx context.Context, rec ChunkRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("chunk id required")
	}
	if rec.SourceID == "" {
		return fmt.Errorf("chunk source id required")
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("embedding vector required")
	}
	vectorLiteral, err := encodeVectorLiteral(rec.Vector)
	if err != nil {
		return err
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO knowledge_chunks (chunk_id, source_id, document_name, ordinal, content, embedding, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6::vector,$7,NOW())
ON CONFLICT (chunk_id) DO UPDATE SET
  source_id = EXCLUDED.source_id,
  document_name = EXCLUDED.document_name,
  ordinal = EXCLUDED.ordinal,
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding,
  metadata = EXCLUDED.metadata,
  created_at = NOW();
`, rec.ID, rec.SourceID, rec.DocumentName, rec.Ordinal, rec.Text, vectorLiteral, metaBytes)
	return err
}

// SearchChunks returns the closest chunks for the supplied vector, optionally
// restricted to one source document.
func (s *Store) SearchChunks(ctx context.Context, vector []float32, sourceID string, topK int, threshold float64) ([]ChunkSearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 8
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT chunk_id, source_id, document_name, ordinal, content, metadata, embedding <=> $1::vector AS distance
FROM knowledge_chunks
WHERE ($2 = '' OR source_id = $2)
ORDER BY embedding <=> $1::vector
LIMIT $3
`, vecLiteral, sourceID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []ChunkSearchResult
	for rows.Next() {
		var (
			res       ChunkSearchResult
			metaBytes []byte
		)
		if err := rows.Scan(&res.ChunkID, &res.SourceID, &res.DocumentName, &res.Ordinal, &res.Text, &metaBytes, &res.Distance); err != nil {
			return nil, err
		}
		if threshold > 0 && res.Distance > threshold {
			continue
		}
		if len(metaBytes) > 0 {
			_ = json.Unmarshal(metaBytes, &res.Metadata)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// DeleteDocumentBySource removes a document row and all of its chunks in one
// transaction. Deleting the backing file never cascades here by itself;
// callers must invoke this explicitly. Zero chunk rows is reported as
// ErrNoChunksForSource so "not found" stays distinguishable from success.
func (s *Store) DeleteDocumentBySource(ctx context.Context, sourcePath string) (removed int64, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var docID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM knowledge_documents WHERE source_path=$1`, sourcePath).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE source_id=$1`, docID)
	if err != nil {
		return 0, err
	}
	removed, _ = res.RowsAffected()

	if _, err = tx.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id=$1`, docID); err != nil {
		return 0, err
	}
	if removed == 0 {
		err = ErrNoChunksForSource
		return 0, err
	}
	return removed, nil
}

// Assessment sessions

// SessionRecord is a transient knowledge-grounded question-bank handoff.
type SessionRecord struct {
	ID            string
	ApplicationID string
	JobID         string
	Difficulty    string
	QuestionBank  json.RawMessage
	CreatedAt     time.Time
}

func (s *Store) CreateAssessmentSession(ctx context.Context, rec SessionRecord) (string, error) {
	if rec.ApplicationID == "" {
		return "", fmt.Errorf("application id required")
	}
	if len(rec.QuestionBank) == 0 {
		return "", fmt.Errorf("question bank required")
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO assessment_sessions (application_id, job_id, difficulty, question_bank)
VALUES ($1,$2,$3,$4)
RETURNING id`, rec.ApplicationID, nullableString(rec.JobID), rec.Difficulty, []byte(rec.QuestionBank)).Scan(&id)
	return id, err
}

// helpers

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
