package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is built once in main and passed into component constructors.
// Pipeline code never reads configuration ambiently.
type Config struct {
	Server    ServerConfig
	Vector    VectorConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Search    SearchConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type VectorConfig struct {
	// Backend selects the vector store implementation: "flat" (file-backed,
	// default) or "milvus".
	Backend        string
	Path           string
	Endpoint       string
	CollectionName string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type EmbeddingConfig struct {
	// Provider selects the embedder: "hashing" (local, deterministic) or
	// "openai".
	Provider  string
	Model     string
	APIKey    string
	Dimension int
}

type LLMConfig struct {
	// Provider selects the generation backend: "openai", "gemini", or ""
	// (no backend; answers degrade to extractive mode).
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type ChunkingConfig struct {
	MaxSize int
	Overlap int
}

type RetrievalConfig struct {
	TopK int
}

type SearchConfig struct {
	Enabled    bool
	SerpAPIKey string
	MaxResults int
	SiteFilter string
	TimeoutSec int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/policy-rag")

	viper.SetEnvPrefix("POLICY_RAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("vector.backend", "flat")
	viper.SetDefault("vector.path", "./data/vector_db")
	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collectionName", "policy_chunks")

	viper.SetDefault("sqlite.path", "./data/policyrag.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("embedding.provider", "hashing")
	viper.SetDefault("embedding.model", "hashing-v1")
	viper.SetDefault("embedding.dimension", 384)

	viper.SetDefault("llm.provider", "")
	viper.SetDefault("llm.model", "gpt-3.5-turbo")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 512)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("chunking.maxSize", 700)
	viper.SetDefault("chunking.overlap", 10)

	viper.SetDefault("retrieval.topK", 5)

	viper.SetDefault("search.enabled", false)
	viper.SetDefault("search.maxResults", 3)
	viper.SetDefault("search.siteFilter", "")
	viper.SetDefault("search.timeoutSec", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
