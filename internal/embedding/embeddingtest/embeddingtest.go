// Package embeddingtest provides deterministic embedders for tests.
package embeddingtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// Hashing embeds text as a hashed bag of lowercase words. Texts sharing
// words get a higher cosine similarity. The first dimension carries a
// small constant so no vector is ever zero.
type Hashing struct {
	Dim int

	mu        sync.Mutex
	FailOn    func(texts []string) bool
	DocCalls  int
	QueryCall int
}

func (h *Hashing) dim() int {
	if h.Dim <= 1 {
		return 64
	}
	return h.Dim
}

// Vector returns the embedding of a single text.
func (h *Hashing) Vector(text string) []float32 {
	vec := make([]float32, h.dim())
	vec[0] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[1+int(f.Sum32()%uint32(len(vec)-1))]++
	}
	return vec
}

var ErrEmbed = errors.New("embedding backend unavailable")

func (h *Hashing) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.DocCalls++
	fail := h.FailOn != nil && h.FailOn(texts)
	h.mu.Unlock()
	if fail {
		return nil, ErrEmbed
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.Vector(t)
	}
	return out, nil
}

func (h *Hashing) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	h.QueryCall++
	h.mu.Unlock()
	return h.Vector(text), nil
}

// Failing always returns Err.
type Failing struct{ Err error }

func (f Failing) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, f.Err
}

func (f Failing) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, f.Err
}
