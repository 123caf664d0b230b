package models

import "context"

// VectorIndex is a persistent embedding-indexed chunk store.
type VectorIndex interface {
	// Add embeds and stores chunks in fixed-size batches. A failed batch is
	// logged and skipped; the number of chunks stored is returned.
	Add(ctx context.Context, chunks []Chunk) int
	// Query returns the topK nearest chunks to text. It never fails: an
	// empty query or a backend error yields an empty list.
	Query(ctx context.Context, text string, topK int) []SearchResult
	// Reset drops the live collection and recreates it empty.
	Reset(ctx context.Context) error
	Count(ctx context.Context) int
	// NewStaging starts building a replacement collection.
	NewStaging(ctx context.Context) (Staging, error)
}

// Staging is a collection being built off to the side of the live one.
type Staging interface {
	Add(ctx context.Context, chunks []Chunk) int
	// Commit atomically makes the staging collection the live one and
	// drops the previous collection.
	Commit(ctx context.Context) error
	Discard(ctx context.Context) error
}
