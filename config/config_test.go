package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
  "server": {"jwt_secret": "unit-test-secret"},
  "llm": {"api_key": "sk-test"},
  "storage": {"postgres": {"host": "localhost", "dbname": "screener", "user": "screener"}}
}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("default address missing, got %q", cfg.Server.Address)
	}
	if cfg.LLM.CompletionModel != "gpt-4o-mini" || cfg.LLM.Timeout != 60*time.Second {
		t.Fatalf("llm defaults missing: %+v", cfg.LLM)
	}
	if cfg.Screening.AptitudeQuestions != 5 || cfg.Screening.TechnicalQuestions != 10 || cfg.Screening.MaxResumeRunes != 12000 {
		t.Fatalf("screening defaults missing: %+v", cfg.Screening)
	}
	if cfg.Knowledge.SentencesPerChunk != 5 || cfg.Knowledge.EmbeddingDimensions != 1536 {
		t.Fatalf("knowledge defaults missing: %+v", cfg.Knowledge)
	}
	if cfg.Notify.Stream != "screener.transitions" || cfg.Notify.ConsumerGroup != "notifier" {
		t.Fatalf("notify defaults missing: %+v", cfg.Notify)
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, `{
  "llm": {"api_key": "sk-test"},
  "storage": {"postgres": {"host": "localhost", "dbname": "screener", "user": "screener"}}
}`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
}

func TestLoadConfigRequiresPostgres(t *testing.T) {
	path := writeConfig(t, `{
  "server": {"jwt_secret": "unit-test-secret"},
  "llm": {"api_key": "sk-test"}
}`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing postgres settings")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "screener"}
	want := "postgres://u:p@db:5432/screener?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("dsn mismatch: %q != %q", got, want)
	}
	p.URL = "postgres://explicit"
	if got := p.DSN(); got != "postgres://explicit" {
		t.Fatalf("url must win, got %q", got)
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache"}
	if !r.Enabled() || r.Addr() != "cache:6379" {
		t.Fatalf("unexpected redis addr %q enabled=%v", r.Addr(), r.Enabled())
	}
	if (RedisConfig{}).Enabled() {
		t.Fatal("empty host must disable redis")
	}
}
