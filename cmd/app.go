package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"commercial-rag/internal/chromemdb"
	"commercial-rag/internal/chunker"
	"commercial-rag/internal/config"
	"commercial-rag/internal/db"
	"commercial-rag/internal/embedding"
	"commercial-rag/internal/llmservice"
	"commercial-rag/internal/models"
	"commercial-rag/internal/parser"
	"commercial-rag/internal/rag"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg       *config.Config
	index     models.VectorIndex
	chromem   *chromemdb.VectorDBManager
	retriever *rag.Retriever
	closers   []func() error
}

// newApp loads the embedding model and opens the configured vector store.
// Both are required, so failures are fatal.
func newApp(ctx context.Context, cfg *config.Config) *app {
	embedder, err := embedding.New(ctx, &cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	log.Info().Str("model", embedder.Model()).Int("dimension", embedder.Dimension()).Msg("Embedding model ready")

	a := &app{cfg: cfg}
	switch cfg.VectorStore.Backend {
	case config.BackendPGVector:
		bunDB := db.NewDB(db.ConnectDB(&cfg.Database), cfg.Database.Debug)
		a.closers = append(a.closers, bunDB.Close)
		idx, err := db.NewPGVectorIndex(ctx, bunDB, cfg.VectorStore.Collection, embedder)
		if err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
		a.index = idx
	default:
		m, err := chromemdb.NewVectorDBManager(cfg.VectorStore.Path, cfg.VectorStore.Collection, false, embedder,
			chromemdb.WithCompression(cfg.VectorStore.Compress))
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating vector database manager")
		}
		a.index = m
		a.chromem = m
	}

	splitter := chunker.New(
		chunker.WithChunkSize(cfg.RAG.ChunkSize),
		chunker.WithOverlap(cfg.RAG.ChunkOverlap),
	)
	a.retriever = rag.NewRetriever(a.index, splitter, parser.LoadDocuments)
	return a
}

func (a *app) engine() *rag.Engine {
	client, err := llmservice.NewAnthropicClient(&a.cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing model client")
	}
	return rag.NewEngine(a.retriever, client,
		rag.WithModel(a.cfg.LLM.Model),
		rag.WithMaxTokens(a.cfg.LLM.MaxTokens),
		rag.WithTopK(a.cfg.RAG.TopK),
		rag.WithPricing(a.cfg.Pricing),
	)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
}
