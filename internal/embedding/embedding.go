package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"commercial-rag/internal/config"
)

const (
	probeText = "embedding model warmup"
	batchSize = 100
)

// Embedder is the single sentence-embedding model shared by indexing and
// querying.
type Embedder struct {
	embeddings.Embedder
	model     string
	dimension int
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Dimension returns the vector length produced by the model.
func (e *Embedder) Dimension() int { return e.dimension }

// New builds the embedder for the configured provider and probes it once.
// Any failure here means the engine cannot run.
func New(ctx context.Context, cfg *config.EmbeddingConfig) (*Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Loading embedding model")

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		client, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	case config.ProviderOpenAI:
		client, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	inner, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return probe(ctx, WithRateLimit(inner, cfg.RPS), cfg.Model)
}

func probe(ctx context.Context, e embeddings.Embedder, model string) (*Embedder, error) {
	vec, err := e.EmbedQuery(ctx, probeText)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding model %s: %w", model, err)
	}
	if len(vec) == 0 {
		return nil, errors.New("embedding model returned an empty vector")
	}
	log.Info().Str("model", model).Int("dimension", len(vec)).Msg("Embedding model ready")
	return &Embedder{Embedder: e, model: model, dimension: len(vec)}, nil
}

// Func adapts an embedder to a chromem-go embedding function.
func Func(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}
