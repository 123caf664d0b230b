package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPricingCost(t *testing.T) {
	p := Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0}

	assert.InDelta(t, 18.0, p.Cost(1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.0105, p.Cost(1000, 500), 1e-9)
	assert.Zero(t, p.Cost(0, 0))
	// rounded to 6 decimals
	assert.InDelta(t, 0.000002, Pricing{InputPerMillion: 1.7}.Cost(1, 0), 1e-12)
}

func TestNewSearchResult(t *testing.T) {
	r := NewSearchResult("c1", "text", map[string]string{"source": "a.pdf"}, 0.2)
	assert.Equal(t, ChunkID("c1"), r.ChunkID)
	assert.InDelta(t, 0.8, r.Similarity, 1e-9)
	assert.Equal(t, "a.pdf", r.Source)

	r = NewSearchResult("c2", "text", map[string]string{}, 0)
	assert.Equal(t, UnknownSource, r.Source)
}

func TestChunkMetadata(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Chunk{
		ID: "id-1", Source: "guide.md", Path: "/docs/guide.md", Size: 42,
		Format: ".md", Index: 3, Start: 900, IndexedAt: at,
	}
	meta := c.Metadata()
	assert.Equal(t, "guide.md", meta["source"])
	assert.Equal(t, "42", meta["size"])
	assert.Equal(t, ".md", meta["type"])
	assert.Equal(t, "3", meta["chunk_index"])
	assert.Equal(t, "900", meta["start_index"])
	assert.Equal(t, "2026-01-02T03:04:05Z", meta["timestamp"])
	assert.NotContains(t, meta, "title")

	c.Title = "Guide"
	assert.Equal(t, "Guide", c.Metadata()["title"])
}

func TestElapsedSeconds(t *testing.T) {
	o := QueryOutcome{Elapsed: 1234 * time.Millisecond}
	assert.Equal(t, 1.23, o.ElapsedSeconds())
	s := ReindexStats{Elapsed: 2500 * time.Millisecond}
	assert.Equal(t, 2.5, s.ElapsedSeconds())
}
