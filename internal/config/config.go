package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdf-rag/internal/apperr"
)

const (
	DefaultPath = "./configs/config.yaml"

	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	ProviderMistral = "mistral"
	ProviderLocal   = "local"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"

	ReindexReplace = "replace"
	ReindexAppend  = "append"
)

type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Storage   StorageConfig `yaml:"storage"`
	OCR       OCRConfig     `yaml:"ocr"`
	Embedder  LLMConfig     `yaml:"embedder"`
	Generator LLMConfig     `yaml:"generator"`
	RAG       RAGConfig     `yaml:"rag"`
	Log       LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxUploadMB    int64         `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type StorageConfig struct {
	Backend        string         `yaml:"backend"`
	UploadDir      string         `yaml:"upload_dir"`
	ChunkDir       string         `yaml:"chunk_dir"`
	PersistDir     string         `yaml:"persist_dir"`
	CollectionName string         `yaml:"collection_name"`
	Compress       bool           `yaml:"compress"`
	EncryptionKey  string         `yaml:"encryption_key"`
	Postgres       PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type OCRConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// LLMConfig configures an OpenAI-compatible (or ollama) endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

type RAGConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	BatchSize         int    `yaml:"batch_size"`
	TopK              int    `yaml:"top_k"`
	MaxTokensContext  int    `yaml:"max_tokens_context"`
	TokenizerEncoding string `yaml:"tokenizer_encoding"`
	ReindexPolicy     string `yaml:"reindex_policy"`
	Workers           int    `yaml:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load resolves the configuration once: defaults, then the YAML file at path
// (optional), then .env, then the process environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, apperr.Configurationf("failed to parse %s: %v", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, apperr.Configurationf("failed to read %s: %v", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, apperr.Configurationf("failed to load .env: %v", err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			MaxUploadMB:    64,
			RequestTimeout: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend:        BackendChromem,
			UploadDir:      "data/uploads",
			ChunkDir:       "data/chunks",
			PersistDir:     "data/chroma_db",
			CollectionName: "documents",
		},
		OCR: OCRConfig{
			Provider: ProviderMistral,
			BaseURL:  "https://api.mistral.ai",
			Model:    "mistral-ocr-latest",
		},
		Embedder: LLMConfig{
			Provider: ProviderOpenAI,
			BaseURL:  "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
		},
		Generator: LLMConfig{
			Provider: ProviderOpenAI,
			BaseURL:  "https://router.requesty.ai/v1",
			Model:    "openai/gpt-4.1-nano",
		},
		RAG: RAGConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			BatchSize:         64,
			TopK:              4,
			MaxTokensContext:  10000,
			TokenizerEncoding: "cl100k_base",
			ReindexPolicy:     ReindexReplace,
			Workers:           1,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MISTRAL_API_KEY", &cfg.OCR.APIKey)
	str("OPENAI_API_KEY", &cfg.Embedder.APIKey)
	str("ROUTER_API_KEY", &cfg.Generator.APIKey)
	str("UPLOAD_DIR", &cfg.Storage.UploadDir)
	str("CHUNK_DIR", &cfg.Storage.ChunkDir)
	str("PERSIST_DIR", &cfg.Storage.PersistDir)
	str("COLLECTION_NAME", &cfg.Storage.CollectionName)
	str("POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	str("LOG_LEVEL", &cfg.Log.Level)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Configurationf("invalid PORT %q: %v", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = def.Server.RequestTimeout
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.OCR.Provider == "" {
		cfg.OCR.Provider = def.OCR.Provider
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = def.Embedder.Provider
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.RAG.BatchSize == 0 {
		cfg.RAG.BatchSize = def.RAG.BatchSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.RAG.MaxTokensContext == 0 {
		cfg.RAG.MaxTokensContext = def.RAG.MaxTokensContext
	}
	if cfg.RAG.ReindexPolicy == "" {
		cfg.RAG.ReindexPolicy = def.RAG.ReindexPolicy
	}
	if cfg.RAG.Workers <= 0 {
		cfg.RAG.Workers = 1
	}
}

// Validate checks credentials and storage locations required by the selected providers.
func (c *Config) Validate() error {
	var missing []string
	if c.Storage.UploadDir == "" {
		missing = append(missing, "storage.upload_dir (UPLOAD_DIR)")
	}
	if c.Storage.ChunkDir == "" {
		missing = append(missing, "storage.chunk_dir (CHUNK_DIR)")
	}
	if c.Storage.CollectionName == "" {
		missing = append(missing, "storage.collection_name (COLLECTION_NAME)")
	}
	switch c.Storage.Backend {
	case BackendChromem:
		if c.Storage.PersistDir == "" {
			missing = append(missing, "storage.persist_dir (PERSIST_DIR)")
		}
	case BackendPgvector:
		if c.Storage.Postgres.DSN == "" {
			missing = append(missing, "storage.postgres.dsn (POSTGRES_DSN)")
		}
	default:
		return apperr.Configurationf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.OCR.Provider {
	case ProviderMistral:
		if c.OCR.APIKey == "" {
			missing = append(missing, "ocr.api_key (MISTRAL_API_KEY)")
		}
	case ProviderLocal:
	default:
		return apperr.Configurationf("unknown ocr provider %q", c.OCR.Provider)
	}

	switch c.Embedder.Provider {
	case ProviderOpenAI:
		if c.Embedder.APIKey == "" {
			missing = append(missing, "embedder.api_key (OPENAI_API_KEY)")
		}
	case ProviderOllama:
	default:
		return apperr.Configurationf("unknown embedder provider %q", c.Embedder.Provider)
	}

	if c.Generator.APIKey == "" {
		missing = append(missing, "generator.api_key (ROUTER_API_KEY)")
	}

	if len(missing) > 0 {
		return apperr.Configurationf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.RAG.ChunkSize <= 0 {
		return apperr.Configurationf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap > c.RAG.ChunkSize {
		return apperr.Configurationf("rag.chunk_overlap must be within [0, %d], got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.ReindexPolicy != ReindexReplace && c.RAG.ReindexPolicy != ReindexAppend {
		return apperr.Configurationf("unknown rag.reindex_policy %q", c.RAG.ReindexPolicy)
	}
	if k := len(c.Storage.EncryptionKey); k != 0 && k != 32 {
		return apperr.Configurationf("storage.encryption_key must be 32 bytes, got %d", k)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	out.OCR.APIKey = mask(out.OCR.APIKey)
	out.Embedder.APIKey = mask(out.Embedder.APIKey)
	out.Generator.APIKey = mask(out.Generator.APIKey)
	out.Storage.EncryptionKey = mask(out.Storage.EncryptionKey)
	if out.Storage.Postgres.DSN != "" {
		out.Storage.Postgres.DSN = "***"
	}
	return out
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
