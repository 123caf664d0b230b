package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DocumentID identifies a source document by its absolute file path.
type DocumentID string

// ChunkID is an opaque, globally unique chunk identifier.
type ChunkID string

// NewChunkID returns a fresh random chunk identifier.
func NewChunkID() ChunkID {
	return ChunkID(uuid.NewString())
}

func (id ChunkID) String() string { return string(id) }

// SourceDocument is the plain text extracted from one file.
type SourceDocument struct {
	ID       DocumentID
	Filename string
	Path     string
	Content  string
	Size     int64
	Format   string
	Title    string
	Pages    int
}

// Chunk is a bounded slice of a SourceDocument's text. Start and End are
// rune offsets into the document content.
type Chunk struct {
	ID         ChunkID
	DocumentID DocumentID
	Source     string
	Path       string
	Size       int64
	Format     string
	Title      string
	Index      int
	Start      int
	End        int
	Content    string
	IndexedAt  time.Time
}

// Metadata returns the flat metadata stored next to the chunk vector.
func (c Chunk) Metadata() map[string]string {
	meta := map[string]string{
		"source":      c.Source,
		"path":        c.Path,
		"size":        strconv.FormatInt(c.Size, 10),
		"type":        c.Format,
		"chunk_id":    c.ID.String(),
		"chunk_index": strconv.Itoa(c.Index),
		"start_index": strconv.Itoa(c.Start),
		"timestamp":   c.IndexedAt.Format(time.RFC3339Nano),
	}
	if c.Title != "" {
		meta["title"] = c.Title
	}
	return meta
}

// SearchResult is one ranked retrieval hit.
type SearchResult struct {
	ChunkID    ChunkID           `json:"chunk_id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity_score"`
	Source     string            `json:"source"`
}

// NewSearchResult builds a result from backend fields, converting the
// backend distance into a similarity score.
func NewSearchResult(id, content string, metadata map[string]string, distance float64) SearchResult {
	source := metadata["source"]
	if source == "" {
		source = UnknownSource
	}
	return SearchResult{
		ChunkID:    ChunkID(id),
		Content:    content,
		Metadata:   metadata,
		Similarity: 1 - distance,
		Source:     source,
	}
}

// DocumentInfo describes a file in the documents directory.
type DocumentInfo struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Modified  time.Time `json:"modified"`
	Extension string    `json:"extension"`
}
