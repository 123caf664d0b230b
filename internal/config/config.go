package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"commercial-rag/internal/models"
)

const (
	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// LLMConfig describes a remote model endpoint.
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	Key       string `yaml:"key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

type EmbeddingConfig struct {
	Provider string  `yaml:"provider"`
	BaseURL  string  `yaml:"base_url"`
	Key      string  `yaml:"key"`
	Model    string  `yaml:"model"`
	RPS      float64 `yaml:"requests_per_second"`
}

type RAGConfig struct {
	DocumentsDir string `yaml:"documents_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
}

type VectorStoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Debug bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Pricing     models.Pricing    `yaml:"pricing"`
	Server      ServerConfig      `yaml:"server"`
	LogLevel    string            `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:   "https://api.anthropic.com/v1",
			Model:     models.DefaultModel,
			MaxTokens: models.DefaultMaxTokens,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
			Model:    "all-minilm",
		},
		RAG: RAGConfig{
			DocumentsDir: "data/documents",
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         models.DefaultTopK,
		},
		VectorStore: VectorStoreConfig{
			Backend:    BackendChromem,
			Path:       "data/chroma_db",
			Collection: models.DefaultCollection,
		},
		Pricing: models.Pricing{
			InputPerMillion:  3.0,
			OutputPerMillion: 15.0,
		},
		Server:   ServerConfig{Addr: ":8000"},
		LogLevel: "info",
	}
}

// LoadConfig reads the YAML file at path (missing file means defaults),
// loads a .env file if present and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("ANTHROPIC_API_KEY", &cfg.LLM.Key)
	str("ANTHROPIC_BASE_URL", &cfg.LLM.BaseURL)
	str("CLAUDE_MODEL", &cfg.LLM.Model)
	integer("CLAUDE_MAX_TOKENS", &cfg.LLM.MaxTokens)

	str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("EMBEDDING_API_KEY", &cfg.Embedding.Key)
	float("EMBEDDING_RPS", &cfg.Embedding.RPS)

	str("DOCUMENTS_DIR", &cfg.RAG.DocumentsDir)
	integer("CHUNK_SIZE", &cfg.RAG.ChunkSize)
	integer("CHUNK_OVERLAP", &cfg.RAG.ChunkOverlap)
	integer("TOP_K", &cfg.RAG.TopK)

	str("VECTOR_BACKEND", &cfg.VectorStore.Backend)
	str("VECTOR_STORE_DIR", &cfg.VectorStore.Path)
	str("DATABASE_URL", &cfg.Database.URL)

	float("CLAUDE_INPUT_PRICE_PER_MILLION", &cfg.Pricing.InputPerMillion)
	float("CLAUDE_OUTPUT_PRICE_PER_MILLION", &cfg.Pricing.OutputPerMillion)

	str("HTTP_ADDR", &cfg.Server.Addr)
	str("LOG_LEVEL", &cfg.LogLevel)

	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 {
		cfg.RAG.ChunkOverlap = def.RAG.ChunkOverlap
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = def.VectorStore.Backend
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = def.VectorStore.Collection
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaultEmbeddingURL[cfg.Embedding.Provider]
	}
}

// defaultEmbeddingURL is the endpoint used when no base URL is configured.
var defaultEmbeddingURL = map[string]string{
	ProviderOllama: "http://localhost:11434",
	ProviderOpenAI: "https://api.openai.com/v1",
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.VectorStore.Backend {
	case BackendChromem:
		if c.VectorStore.Path == "" {
			return errors.New("vector store path is required")
		}
	case BackendPGVector:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unsupported vector backend: %s", c.VectorStore.Backend)
	}
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Pricing.InputPerMillion < 0 || c.Pricing.OutputPerMillion < 0 {
		return errors.New("token prices must not be negative")
	}
	return nil
}
