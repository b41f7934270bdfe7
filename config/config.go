package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the screening service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Screening ScreeningConfig `mapstructure:"screening"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// LLMConfig contains the generative/embedding provider configuration.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // openai only for now
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be > 0")
	}
	return nil
}

// ScreeningConfig tunes the resume-screening and assessment pipeline.
type ScreeningConfig struct {
	MaxResumeRunes     int `mapstructure:"max_resume_runes"`
	AptitudeQuestions  int `mapstructure:"aptitude_questions"`
	TechnicalQuestions int `mapstructure:"technical_questions"`
}

// Normalize applies defaults for unset screening values.
func (s ScreeningConfig) Normalize() ScreeningConfig {
	if s.MaxResumeRunes <= 0 {
		s.MaxResumeRunes = 12000
	}
	if s.AptitudeQuestions <= 0 {
		s.AptitudeQuestions = 5
	}
	if s.TechnicalQuestions <= 0 {
		s.TechnicalQuestions = 10
	}
	return s
}

// KnowledgeConfig tunes document chunking and retrieval.
type KnowledgeConfig struct {
	SentencesPerChunk   int     `mapstructure:"sentences_per_chunk"`
	OverlapSentences    int     `mapstructure:"overlap_sentences"`
	MaxChunkRunes       int     `mapstructure:"max_chunk_runes"`
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions"`
	SearchTopK          int     `mapstructure:"search_top_k"`
	SearchThreshold     float64 `mapstructure:"search_threshold"`
	MaxDocumentBytes    int64   `mapstructure:"max_document_bytes"`
}

// Normalize applies defaults for unset knowledge values.
func (k KnowledgeConfig) Normalize() KnowledgeConfig {
	if k.SentencesPerChunk <= 0 {
		k.SentencesPerChunk = 5
	}
	if k.OverlapSentences < 0 {
		k.OverlapSentences = 0
	}
	if k.MaxChunkRunes <= 0 {
		k.MaxChunkRunes = 2000
	}
	if k.EmbeddingDimensions <= 0 {
		k.EmbeddingDimensions = 1536
	}
	if k.SearchTopK <= 0 {
		k.SearchTopK = 8
	}
	if k.MaxDocumentBytes <= 0 {
		k.MaxDocumentBytes = 4 << 20
	}
	return k
}

// StorageConfig contains storage and persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds the Postgres connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis backs the transition
// event stream; when host is empty the in-memory publisher is used instead.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

// Addr returns host:port with the default Redis port applied.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// NotifyConfig controls the transition notification stream.
type NotifyConfig struct {
	Stream        string `mapstructure:"stream"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MaxLen        int64  `mapstructure:"max_len"`
}

// Normalize applies defaults for unset notify values.
func (n NotifyConfig) Normalize() NotifyConfig {
	if strings.TrimSpace(n.Stream) == "" {
		n.Stream = "screener.transitions"
	}
	if strings.TrimSpace(n.ConsumerGroup) == "" {
		n.ConsumerGroup = "notifier"
	}
	if n.MaxLen <= 0 {
		n.MaxLen = 10000
	}
	return n
}

// LoadConfig loads config from file and SCREENER_* environment variables.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.timeout", "60s")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SCREENER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	config.Screening = config.Screening.Normalize()
	config.Knowledge = config.Knowledge.Normalize()
	config.Notify = config.Notify.Normalize()

	if err := config.Server.Validate(); err != nil {
		return nil, err
	}
	if err := config.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
