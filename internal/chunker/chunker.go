// Package chunker splits document text into overlapping passages.
//
// Each chunk ends on the highest-priority separator found in its window
// (paragraph break, then line break, then space, then a hard cut), and the
// following chunk starts exactly overlap characters before that end. All
// lengths and offsets are counted in runes.
package chunker

import (
	"time"
	"unicode"

	"commercial-rag/internal/models"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order; "" means a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Span is a chunk of text with its rune offsets in the source.
type Span struct {
	Start int
	End   int
	Text  string
}

// Splitter is a deterministic recursive-separator text splitter.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators [][]rune
	newID      func() models.ChunkID
	now        func() time.Time
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the number of characters shared by adjacent chunks.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = toRunes(separators)
		}
	}
}

func WithIDFunc(fn func() models.ChunkID) Option {
	return func(s *Splitter) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(s *Splitter) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New creates a Splitter. An overlap that is not smaller than the chunk
// size is reduced to half the chunk size.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
		newID:      models.NewChunkID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 2
	}
	return s
}

func (s *Splitter) ChunkSize() int { return s.chunkSize }
func (s *Splitter) Overlap() int   { return s.overlap }

// SplitText splits text into spans of at most ChunkSize runes. Spans that
// contain only whitespace are dropped.
func (s *Splitter) SplitText(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var spans []Span
	pos := 0
	for {
		end := n
		if n-pos > s.chunkSize {
			end = s.breakPoint(runes, pos)
		}
		if !isBlank(runes[pos:end]) {
			spans = append(spans, Span{Start: pos, End: end, Text: string(runes[pos:end])})
		}
		if end == n {
			break
		}
		pos = end - s.overlap
	}
	return spans
}

// breakPoint picks the end of the chunk starting at pos. The end must lie in
// (pos+overlap, pos+chunkSize] so the next chunk always moves forward.
func (s *Splitter) breakPoint(runes []rune, pos int) int {
	limit := pos + s.chunkSize
	low := pos + s.overlap
	for _, sep := range s.separators {
		if len(sep) == 0 {
			return limit
		}
		for b := limit; b > low; b-- {
			if b-len(sep) >= pos && endsWith(runes[:b], sep) {
				return b
			}
		}
	}
	return limit
}

// SplitDocuments chunks every document in order. Chunks inherit the
// document metadata and receive a fresh ID and ingestion timestamp.
func (s *Splitter) SplitDocuments(docs []models.SourceDocument) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		for i, span := range s.SplitText(doc.Content) {
			chunks = append(chunks, models.Chunk{
				ID:         s.newID(),
				DocumentID: doc.ID,
				Source:     doc.Filename,
				Path:       doc.Path,
				Size:       doc.Size,
				Format:     doc.Format,
				Title:      doc.Title,
				Index:      i,
				Start:      span.Start,
				End:        span.End,
				Content:    span.Text,
				IndexedAt:  s.now(),
			})
		}
	}
	return chunks
}

func toRunes(separators []string) [][]rune {
	out := make([][]rune, len(separators))
	for i, sep := range separators {
		out[i] = []rune(sep)
	}
	return out
}

func endsWith(runes, suffix []rune) bool {
	if len(suffix) > len(runes) {
		return false
	}
	off := len(runes) - len(suffix)
	for i, r := range suffix {
		if runes[off+i] != r {
			return false
		}
	}
	return true
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
