// Package config loads and holds the application configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration populated by Init.
var Conf Config

// Config mirrors configs/config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	Vector        VectorConfig        `mapstructure:"vector"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	RAG           RAGConfig           `mapstructure:"rag"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig groups the optional MySQL chunk catalog and Redis.
// An empty DSN or address disables the corresponding store.
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig configures the asynchronous ingestion queue. Enabled=false
// makes document uploads ingest inline.
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

// VectorConfig selects the index backend: "memory", "elasticsearch" or "qdrant".
type VectorConfig struct {
	Backend    string `mapstructure:"backend"`
	Dimensions int    `mapstructure:"dimensions"`
}

// EmbeddingConfig configures the embedding provider ("openai" or "gemini").
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	BatchSize  int           `mapstructure:"batch_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	RateLimit  float64       `mapstructure:"rate_limit"`
}

// LLMConfig configures the generative provider ("openai" or "gemini").
type LLMConfig struct {
	Provider   string              `mapstructure:"provider"`
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	RateLimit  float64             `mapstructure:"rate_limit"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig holds the system rules and the markers wrapping evidence.
type LLMPromptConfig struct {
	Version  string `mapstructure:"version"`
	Rules    string `mapstructure:"rules"`
	RefStart string `mapstructure:"ref_start"`
	RefEnd   string `mapstructure:"ref_end"`
}

// RAGConfig holds the retrieval and generation tunables.
type RAGConfig struct {
	ChunkSize           int           `mapstructure:"chunk_size"`
	ChunkOverlap        int           `mapstructure:"chunk_overlap"`
	TopK                int           `mapstructure:"top_k"`
	MinScore            float64       `mapstructure:"min_score"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	Backoff             time.Duration `mapstructure:"backoff"`
	RecentFeedbackLimit int           `mapstructure:"recent_feedback_limit"`
}

type AuditConfig struct {
	ResponseLogPath string `mapstructure:"response_log_path"`
	FeedbackLogPath string `mapstructure:"feedback_log_path"`
}

// IngestConfig locates seed documents and, when MinIO is disabled, the
// local directory raw documents are kept in.
type IngestConfig struct {
	SeedDir     string `mapstructure:"seed_dir"`
	StoragePath string `mapstructure:"storage_path"`
}

// Validate rejects tunables the pipeline cannot run with.
func (c RAGConfig) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must be positive, got %d", c.TopK))
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		errs = append(errs, fmt.Errorf("rag.min_score must be in [0, 1], got %v", c.MinScore))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rag.call_timeout must be positive, got %s", c.CallTimeout))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("rag.max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "advisor-ingest")
	v.SetDefault("kafka.group_id", "advisor-gpt-go-consumer")

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "advisor-documents")

	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "advisor_chunks")

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.use_tls", false)
	v.SetDefault("qdrant.collection", "advisor_chunks")

	v.SetDefault("vector.backend", "memory")
	v.SetDefault("vector.dimensions", 1536)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 16)
	v.SetDefault("embedding.cache_ttl", 0)
	v.SetDefault("embedding.rate_limit", 0)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.rate_limit", 0)
	v.SetDefault("llm.generation.temperature", 0.1)
	v.SetDefault("llm.generation.top_p", 0)
	v.SetDefault("llm.generation.max_tokens", 1024)
	v.SetDefault("llm.prompt.version", "v1")
	v.SetDefault("llm.prompt.rules", "")
	v.SetDefault("llm.prompt.ref_start", "<<REF>>")
	v.SetDefault("llm.prompt.ref_end", "<<END>>")

	v.SetDefault("rag.chunk_size", 800)
	v.SetDefault("rag.chunk_overlap", 120)
	v.SetDefault("rag.top_k", 4)
	v.SetDefault("rag.min_score", 0.35)
	v.SetDefault("rag.call_timeout", 30*time.Second)
	v.SetDefault("rag.max_attempts", 2)
	v.SetDefault("rag.backoff", 500*time.Millisecond)
	v.SetDefault("rag.recent_feedback_limit", 10)

	v.SetDefault("audit.response_log_path", "./logs/audit.jsonl")
	v.SetDefault("audit.feedback_log_path", "./logs/feedback.jsonl")

	v.SetDefault("ingest.seed_dir", "initfile")
	v.SetDefault("ingest.storage_path", "./data/documents")
}

// Load reads configPath (optional), a .env file in the working directory
// (optional) and environment overrides such as RAG_TOP_K, then validates.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.RAG.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Init loads configPath into Conf and panics on failure.
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
