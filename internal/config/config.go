// Package config loads and holds the application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CVCHAT_LLM_API_KEY.
const EnvPrefix = "CVCHAT"

// Conf holds the configuration loaded by Init.
var Conf Config

// Config mirrors the structure of configs/config.yaml.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Tika        TikaConfig        `mapstructure:"tika"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	LLM         LLMConfig         `mapstructure:"llm"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig selects the relational driver and holds the Redis settings.
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"` // mysql | sqlite
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig is optional; an empty Addr disables ingestion status tracking.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig enables bearer auth on the API when Secret is set.
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig configures the embedding provider (openai | gemini).
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// LLMConfig configures the answer model (openai | gemini | anthropic).
type LLMConfig struct {
	Provider          string              `mapstructure:"provider"`
	APIKey            string              `mapstructure:"api_key"`
	BaseURL           string              `mapstructure:"base_url"`
	Model             string              `mapstructure:"model"`
	RequestsPerSecond float64             `mapstructure:"requests_per_second"`
	Burst             int                 `mapstructure:"burst"`
	Generation        LLMGenerationConfig `mapstructure:"generation"`
	Prompt            LLMPromptConfig     `mapstructure:"prompt"`
}

type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig overrides the built-in prompts; empty fields keep the defaults.
type LLMPromptConfig struct {
	System      string `mapstructure:"system"`
	FailureText string `mapstructure:"failure_text"`
}

// VectorStoreConfig selects the vector backend (qdrant | elasticsearch | weaviate | memory).
type VectorStoreConfig struct {
	Type             string              `mapstructure:"type"`
	CollectionPrefix string              `mapstructure:"collection_prefix"`
	Qdrant           QdrantConfig        `mapstructure:"qdrant"`
	Elasticsearch    ElasticsearchConfig `mapstructure:"elasticsearch"`
	Weaviate         WeaviateConfig      `mapstructure:"weaviate"`
}

// QdrantConfig addresses the gRPC port of a Qdrant server.
type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	Scheme string `mapstructure:"scheme"`
	APIKey string `mapstructure:"api_key"`
}

// ChunkingConfig holds the chunker parameters; Overlap counts sentences, not characters.
type ChunkingConfig struct {
	ChunkSize      int `mapstructure:"chunk_size"`
	Overlap        int `mapstructure:"overlap"`
	MinChunkLength int `mapstructure:"min_chunk_length"`
}

type RetrievalConfig struct {
	Limit int `mapstructure:"limit"`
}

// AuditConfig schedules the read-only consistency audit; an empty Cron disables it.
type AuditConfig struct {
	Cron string `mapstructure:"cron"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "cvchat.db")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "cv-ingestion")
	v.SetDefault("kafka.group_id", "cv-chat-go-consumer")

	v.SetDefault("tika.server_url", "")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "cvs")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.batch_size", 32)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama3-8b-8192")
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.generation.temperature", 0)
	v.SetDefault("llm.generation.top_p", 0)
	v.SetDefault("llm.generation.max_tokens", 0)
	v.SetDefault("llm.prompt.system", "")
	v.SetDefault("llm.prompt.failure_text", "")

	v.SetDefault("vector_store.type", "qdrant")
	v.SetDefault("vector_store.collection_prefix", "cv_")
	v.SetDefault("vector_store.qdrant.host", "localhost")
	v.SetDefault("vector_store.qdrant.port", 6334)
	v.SetDefault("vector_store.qdrant.use_tls", false)
	v.SetDefault("vector_store.qdrant.api_key", "")
	v.SetDefault("vector_store.elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("vector_store.elasticsearch.username", "")
	v.SetDefault("vector_store.elasticsearch.password", "")
	v.SetDefault("vector_store.weaviate.host", "localhost:8081")
	v.SetDefault("vector_store.weaviate.scheme", "http")
	v.SetDefault("vector_store.weaviate.api_key", "")

	v.SetDefault("chunking.chunk_size", 500)
	v.SetDefault("chunking.overlap", 1)
	v.SetDefault("chunking.min_chunk_length", 20)

	v.SetDefault("retrieval.limit", 3)

	v.SetDefault("audit.cron", "")
}

// Load reads the YAML file at configPath (if it exists), applies defaults and
// CVCHAT_* environment overrides, and returns the result.
func Load(configPath string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Init loads the configuration into Conf and panics on failure.
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}
