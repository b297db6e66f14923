package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProcessingModeInline = "inline"
	ProcessingModeAsync  = "async"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"study-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string  `envconfig:"CHAT_MODEL" default:"gpt-3.5-turbo"`
	OpenAIRPS           float64 `envconfig:"OPENAI_RPS" default:"0"`
	OpenAIBurst         int     `envconfig:"OPENAI_BURST" default:"1"`

	RAGMaxTokens     int     `envconfig:"RAG_MAX_TOKENS" default:"500"`
	RAGTemperature   float32 `envconfig:"RAG_TEMPERATURE" default:"0.3"`
	AgentMaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"800"`
	AgentTemperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0.7"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
	MaxChunks    int `envconfig:"MAX_CHUNKS" default:"5"`

	// Applied to each individual embedding or completion call.
	EmbedTimeout      time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"60s"`
	EmbedWorkers      int           `envconfig:"EMBED_WORKERS" default:"4"`

	ProcessingMode     string        `envconfig:"PROCESSING_MODE" default:"inline"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	WorkerBatchSize    int           `envconfig:"WORKER_BATCH_SIZE" default:"10"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"15728640"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	SignupEnabled bool `envconfig:"SIGNUP_ENABLED" default:"false"`

	// Bootstrap: create initial user and API key on startup
	InitUserName string `envconfig:"INIT_USER_NAME"`
	InitAPIKey   string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("STUDY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the retrieval pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("invalid config: CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap)
	}
	if c.MaxChunks <= 0 {
		return fmt.Errorf("invalid config: MAX_CHUNKS must be positive, got %d", c.MaxChunks)
	}
	if c.EmbedWorkers <= 0 {
		return fmt.Errorf("invalid config: EMBED_WORKERS must be positive, got %d", c.EmbedWorkers)
	}
	switch c.ProcessingMode {
	case ProcessingModeInline, ProcessingModeAsync:
	default:
		return fmt.Errorf("invalid config: PROCESSING_MODE must be %q or %q, got %q", ProcessingModeInline, ProcessingModeAsync, c.ProcessingMode)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) AsyncProcessing() bool {
	return c.ProcessingMode == ProcessingModeAsync
}
