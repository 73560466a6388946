package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int               `json:"port"`
	HTTP        HTTPConfig        `json:"http"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	Chunker     ChunkerConfig     `json:"chunker"`
	Ingest      IngestConfig      `json:"ingest"`
	FileStore   FileStoreConfig   `json:"file_store"`
	Jobs        JobsConfig        `json:"jobs"`
}

type HTTPConfig struct {
	CORSOrigins   []string `json:"cors_origins"`
	RateLimit     float64  `json:"rate_limit"`
	RateBurst     int      `json:"rate_burst"`
	MaxUploadSize int64    `json:"max_upload_size"`
}

type VectorStoreConfig struct {
	Provider string         `json:"provider"`
	Timeout  int            `json:"timeout"`
	Local    LocalConfig    `json:"local"`
	Supabase SupabaseConfig `json:"supabase"`
	Qdrant   QdrantConfig   `json:"qdrant"`
	Memory   MemoryConfig   `json:"memory"`
}

type LocalConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslmode"`
}

type SupabaseConfig struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type QdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"api_key"`
	UseTLS     bool   `json:"use_tls"`
	Collection string `json:"collection"`
}

type MemoryConfig struct {
	Namespace string `json:"namespace"`
}

type EmbeddingConfig struct {
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	Dimension int          `json:"dimension"`
	Timeout   int          `json:"timeout"`
	CacheSize int          `json:"cache_size"`
	CacheTTL  int          `json:"cache_ttl"`
	RateLimit float64      `json:"rate_limit"`
	RateBurst int          `json:"rate_burst"`
	Ollama    OllamaConfig `json:"ollama"`
	OpenAI    OpenAIConfig `json:"openai"`
	Gemini    GeminiConfig `json:"gemini"`
}

type OllamaConfig struct {
	BaseURL string `json:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type GeminiConfig struct {
	APIKey   string `json:"api_key"`
	TaskType string `json:"task_type"`
}

type ChunkerConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
}

type IngestConfig struct {
	Policy           string `json:"policy"`
	EmbedConcurrency int    `json:"embed_concurrency"`
}

type FileStoreConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type JobsConfig struct {
	IndexMaintenance string `json:"index_maintenance"`
	StoreStats       string `json:"store_stats"`
}

// envKeys maps supported environment variables to config keys.
var envKeys = map[string]string{
	"PORT":              "port",
	"LOG_LEVEL":         "log_config.level",
	"HTTP_RATE_LIMIT":   "http.rate_limit",
	"VECTOR_PROVIDER":   "vector_store.provider",
	"VECTOR_TIMEOUT":    "vector_store.timeout",
	"DB_DSN":            "vector_store.local.dsn",
	"DB_HOST":           "vector_store.local.host",
	"DB_PORT":           "vector_store.local.port",
	"DB_NAME":           "vector_store.local.database",
	"DB_USER":           "vector_store.local.user",
	"DB_PASSWORD":       "vector_store.local.password",
	"DB_SSLMODE":        "vector_store.local.sslmode",
	"SUPABASE_URL":      "vector_store.supabase.url",
	"SUPABASE_KEY":      "vector_store.supabase.key",
	"QDRANT_HOST":       "vector_store.qdrant.host",
	"QDRANT_PORT":       "vector_store.qdrant.port",
	"QDRANT_API_KEY":    "vector_store.qdrant.api_key",
	"QDRANT_USE_TLS":    "vector_store.qdrant.use_tls",
	"QDRANT_COLLECTION": "vector_store.qdrant.collection",
	"MEMORY_NAMESPACE":  "vector_store.memory.namespace",
	"EMBED_PROVIDER":    "embedding.provider",
	"EMBED_MODEL":       "embedding.model",
	"EMBED_DIMENSION":   "embedding.dimension",
	"EMBED_TIMEOUT":     "embedding.timeout",
	"EMBED_CACHE_SIZE":  "embedding.cache_size",
	"EMBED_RATE_LIMIT":  "embedding.rate_limit",
	"OLLAMA_HOST":       "embedding.ollama.base_url",
	"OPENAI_API_KEY":    "embedding.openai.api_key",
	"OPENAI_BASE_URL":   "embedding.openai.base_url",
	"GEMINI_API_KEY":    "embedding.gemini.api_key",
	"CHUNK_SIZE":        "chunker.size",
	"CHUNK_OVERLAP":     "chunker.overlap",
	"INGEST_POLICY":     "ingest.policy",
	"FILE_STORE_TYPE":   "file_store.type",
	"FILE_STORE_DIR":    "file_store.dir",
}

var (
	vectorProviders = []string{"local", "supabase", "memory", "qdrant"}
	embedProviders  = []string{"ollama", "openai", "gemini"}
)

func Default() *Config {
	cfg := &Config{
		Port: 8000,
		HTTP: HTTPConfig{
			RateBurst:     10,
			MaxUploadSize: 10 << 20,
		},
		VectorStore: VectorStoreConfig{
			Provider: "local",
			Timeout:  15,
			Local: LocalConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "salescoach_rag",
				User:     "postgres",
				Password: "postgres",
				SSLMode:  "disable",
			},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "documents",
			},
			Memory: MemoryConfig{Namespace: "default"},
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Dimension: 768,
			Timeout:   30,
			CacheTTL:  3600,
			Ollama:    OllamaConfig{BaseURL: "http://localhost:11434"},
		},
		Chunker: ChunkerConfig{Size: 500, Overlap: 100},
		Ingest:  IngestConfig{Policy: "replace", EmbedConcurrency: 1},
		Jobs: JobsConfig{
			IndexMaintenance: "0 * * * *",
			StoreStats:       "*/5 * * * *",
		},
	}
	cfg.LogConfig.Level = "info"
	cfg.LogConfig.Console = true
	return cfg
}

// Load layers defaults, an optional config file and the environment, with a
// .env file in the working directory feeding the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k := koanf.New(".")
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	c.VectorStore.Provider = strings.ToLower(strings.TrimSpace(c.VectorStore.Provider))
	if !contains(vectorProviders, c.VectorStore.Provider) {
		return fmt.Errorf("vector_store.provider must be one of %s", strings.Join(vectorProviders, "/"))
	}
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if !contains(embedProviders, c.Embedding.Provider) {
		return fmt.Errorf("embedding.provider must be one of %s", strings.Join(embedProviders, "/"))
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("chunker.size must be positive")
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunker.overlap must be in [0, chunker.size)")
	}
	c.Ingest.Policy = strings.ToLower(strings.TrimSpace(c.Ingest.Policy))
	if c.Ingest.Policy != "replace" && c.Ingest.Policy != "append" {
		return fmt.Errorf("ingest.policy must be replace or append")
	}
	if c.Ingest.EmbedConcurrency <= 0 {
		c.Ingest.EmbedConcurrency = 1
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	switch c.FileStore.Type {
	case "":
	case "local":
		if c.FileStore.Dir == "" {
			return fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if c.FileStore.S3.Endpoint == "" || c.FileStore.S3.Bucket == "" || c.FileStore.S3.SecretID == "" || c.FileStore.S3.SecretKey == "" {
			return fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	return nil
}

// VectorStoreParams returns the boot-time parameters of every provider,
// keyed by provider name.
func (c *Config) VectorStoreParams() map[string]interface{} {
	return map[string]interface{}{
		"local":    c.VectorStore.Local,
		"supabase": c.VectorStore.Supabase,
		"qdrant":   c.VectorStore.Qdrant,
		"memory":   c.VectorStore.Memory,
	}
}

func (c *Config) EmbeddingArgs() interface{} {
	switch c.Embedding.Provider {
	case "openai":
		return c.Embedding.OpenAI
	case "gemini":
		return map[string]interface{}{
			"api_key":               c.Embedding.Gemini.APIKey,
			"task_type":             c.Embedding.Gemini.TaskType,
			"output_dimensionality": c.Embedding.Dimension,
		}
	default:
		return c.Embedding.Ollama
	}
}

// FileStoreArgs returns nil when no file store is configured.
func (c *Config) FileStoreArgs() interface{} {
	switch c.FileStore.Type {
	case "local":
		return map[string]interface{}{"dir": c.FileStore.Dir}
	case "s3":
		return c.FileStore.S3
	default:
		return nil
	}
}

func (c *Config) VectorTimeout() time.Duration {
	return time.Duration(c.VectorStore.Timeout) * time.Second
}

func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.Timeout) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Embedding.CacheTTL) * time.Second
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
