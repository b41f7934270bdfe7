package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hireloop/screener/internal/notify"
	"github.com/hireloop/screener/internal/screening"
	"github.com/hireloop/screener/internal/store"
)

func TestScreeningPipelineAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("pgvector/pgvector:pg16"),
		tcPostgres.WithDatabase("screener"),
		tcPostgres.WithUsername("screener"),
		tcPostgres.WithPassword("screener"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://screener:screener@%s:%s/screener?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrate init: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}

	jobID, err := st.CreateJob(ctx, "Backend Engineer", "Builds services", []string{"Go", "Postgres"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	bank, _ := json.Marshal([]screening.Question{
		{ID: "apt-1", Prompt: "2+2?", Options: []string{"3", "4", "5", "6"}, CorrectOptionIndex: 1, Category: "aptitude"},
		{ID: "tech-1", Prompt: "GET is?", Options: []string{"safe", "unsafe", "write", "none"}, CorrectOptionIndex: 0, Category: "technical"},
	})
	appID, err := st.CreateApplication(ctx, store.ApplicationRecord{
		JobID:          jobID,
		CandidateName:  "Ada",
		CandidateEmail: "ada@example.com",
		ResumeText:     "Ten years of Go.",
		ScreeningScore: 75,
		Summary:        "solid",
		QuestionBank:   bank,
		Status:         screening.StatusTestPending,
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}

	// First submission wins.
	if err := st.RecordSubmission(ctx, appID, json.RawMessage(`[1,0]`), 100, screening.StatusInterview); err != nil {
		t.Fatalf("record submission: %v", err)
	}
	// Second submission must lose the CAS.
	err = st.RecordSubmission(ctx, appID, json.RawMessage(`[0,0]`), 0, screening.StatusRejected)
	if !errors.Is(err, store.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict on resubmission, got %v", err)
	}

	rec, err := st.GetApplication(ctx, appID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if rec.Status != screening.StatusInterview || !rec.AssessmentScore.Valid || rec.AssessmentScore.Int64 != 100 {
		t.Fatalf("submission not persisted: %+v", rec)
	}

	// Walk the decision chain.
	if err := st.TransitionStatus(ctx, appID, screening.StatusInterview, screening.StatusOffer, ""); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := st.TransitionStatus(ctx, appID, screening.StatusOffer, screening.StatusHired, ""); err != nil {
		t.Fatalf("hire: %v", err)
	}
	err = st.TransitionStatus(ctx, appID, screening.StatusHired, screening.StatusRejected, "too late")
	if !errors.Is(err, screening.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition from HIRED, got %v", err)
	}
}

func TestKnowledgeChunksAgainstPgvector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("pgvector/pgvector:pg16"),
		tcPostgres.WithDatabase("screener"),
		tcPostgres.WithUsername("screener"),
		tcPostgres.WithPassword("screener"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, _ := pgC.Host(ctx)
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://screener:screener@%s:%s/screener?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrate init: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}

	docID, err := st.CreateKnowledgeDocument(ctx, "Handbook", "docs/handbook.txt")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	vec := func(fill float32) []float32 {
		v := make([]float32, 1536)
		for i := range v {
			v[i] = fill
		}
		return v
	}
	for i, fill := range []float32{0.1, 0.9} {
		rec := store.ChunkRecord{
			ID:           fmt.Sprintf("%s:%d", docID, i),
			SourceID:     docID,
			DocumentName: "Handbook",
			Ordinal:      i,
			Text:         fmt.Sprintf("chunk %d", i),
			Vector:       vec(fill),
		}
		if err := st.UpsertChunk(ctx, rec); err != nil {
			t.Fatalf("upsert chunk %d: %v", i, err)
		}
		// Idempotent: same id again must not duplicate.
		if err := st.UpsertChunk(ctx, rec); err != nil {
			t.Fatalf("re-upsert chunk %d: %v", i, err)
		}
	}

	hits, err := st.SearchChunks(ctx, vec(0.1), "", 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(hits))
	}
	if hits[0].Text != "chunk 0" {
		t.Fatalf("nearest chunk should rank first, got %+v", hits[0])
	}

	removed, err := st.DeleteDocumentBySource(ctx, "docs/handbook.txt")
	if err != nil {
		t.Fatalf("delete by source: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 chunks removed, got %d", removed)
	}
	_, err = st.DeleteDocumentBySource(ctx, "docs/handbook.txt")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTransitionEventsOverRedisStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = client.Close() }()

	const stream = "screener.transitions.test"
	if err := notify.EnsureGroup(ctx, client, stream, "test-group"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	pub := notify.NewStreamPublisher(client, stream, 100)
	id, err := pub.PublishTransition(ctx, notify.TransitionEvent{
		ApplicationID: "app-1",
		From:          "TEST_PENDING",
		To:            "INTERVIEW",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id == "" {
		t.Fatal("expected a stream entry id")
	}

	res, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    "test-group",
		Consumer: "consumer-1",
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    5 * time.Second,
	}).Result()
	if err != nil {
		t.Fatalf("xreadgroup: %v", err)
	}
	if len(res) != 1 || len(res[0].Messages) != 1 {
		t.Fatalf("expected one message, got %+v", res)
	}
	raw, ok := res[0].Messages[0].Values["event"].(string)
	if !ok {
		t.Fatalf("missing event payload: %+v", res[0].Messages[0].Values)
	}
	event, err := notify.UnmarshalEvent([]byte(raw))
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.ApplicationID != "app-1" || event.To != "INTERVIEW" || event.EventID == "" {
		t.Fatalf("event lost fields: %+v", event)
	}
}
