package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"commercial-rag/internal/models"
)

// ErrReindexInProgress is reported when a rebuild is requested while another
// one is still running.
var ErrReindexInProgress = errors.New("reindex already in progress")

// Loader reads every supported document under root.
type Loader func(root string) []models.SourceDocument

// Chunker splits documents into indexable chunks.
type Chunker interface {
	SplitDocuments(docs []models.SourceDocument) []models.Chunk
}

// Retriever owns the vector index: it rebuilds it from a folder and serves
// similarity searches.
type Retriever struct {
	index   models.VectorIndex
	chunker Chunker
	load    Loader

	// reindexMu admits a single rebuild at a time.
	reindexMu sync.Mutex
}

func NewRetriever(index models.VectorIndex, chunker Chunker, load Loader) *Retriever {
	return &Retriever{index: index, chunker: chunker, load: load}
}

// ReindexAll rebuilds the index from every document under folder. The new
// content is built in a staging collection and swapped in at the end, so
// searches running meanwhile keep seeing the previous content. Failures are
// reported in the returned stats.
func (r *Retriever) ReindexAll(ctx context.Context, folder string) models.ReindexStats {
	start := time.Now()
	if !r.reindexMu.TryLock() {
		log.Warn().Str("folder", folder).Msg("Reindex rejected, another one is running")
		return failed(models.ReindexStats{}, ErrReindexInProgress, start)
	}
	defer r.reindexMu.Unlock()

	log.Info().Str("folder", folder).Msg("Starting full reindex")
	stats, err := r.rebuild(ctx, folder)
	if err != nil {
		log.Error().Err(err).Str("folder", folder).Msg("Reindex failed")
		return failed(stats, err, start)
	}

	stats.Status = models.StatusSuccess
	stats.Elapsed = time.Since(start)
	log.Info().
		Int("documents", stats.DocumentsFound).
		Int("chunks", stats.ChunksIndexed).
		Dur("elapsed", stats.Elapsed).
		Msg("Reindex complete")
	return stats
}

func (r *Retriever) rebuild(ctx context.Context, folder string) (models.ReindexStats, error) {
	var stats models.ReindexStats

	staging, err := r.index.NewStaging(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to start staging collection: %w", err)
	}

	docs := r.load(folder)
	stats.DocumentsFound = len(docs)
	chunks := r.chunker.SplitDocuments(docs)
	log.Info().Msgf("Split %d documents into %d chunks", len(docs), len(chunks))

	if err := ctx.Err(); err != nil {
		discard(ctx, staging)
		return stats, err
	}
	stats.ChunksIndexed = staging.Add(ctx, chunks)
	// Batches failing on a cancelled context are skipped by Add, so the
	// staging collection may be partial.
	if err := ctx.Err(); err != nil {
		discard(ctx, staging)
		return stats, err
	}

	if err := staging.Commit(ctx); err != nil {
		discard(ctx, staging)
		return stats, fmt.Errorf("failed to commit new collection: %w", err)
	}
	return stats, nil
}

func discard(ctx context.Context, s models.Staging) {
	if err := s.Discard(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("Failed to discard staging collection")
	}
}

func failed(stats models.ReindexStats, err error, start time.Time) models.ReindexStats {
	stats.Status = models.StatusError
	stats.Error = err.Error()
	stats.Err = err
	stats.Elapsed = time.Since(start)
	return stats
}

// Search returns the topK chunks closest to query. topK <= 0 means the
// default of 5.
func (r *Retriever) Search(ctx context.Context, query string, topK int) []models.SearchResult {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return r.index.Query(ctx, query, topK)
}

// Reset empties the live index. It fails with ErrReindexInProgress while a
// rebuild is running.
func (r *Retriever) Reset(ctx context.Context) error {
	if !r.reindexMu.TryLock() {
		return ErrReindexInProgress
	}
	defer r.reindexMu.Unlock()
	return r.index.Reset(ctx)
}

// Count returns the number of chunks in the live index.
func (r *Retriever) Count(ctx context.Context) int {
	return r.index.Count(ctx)
}
