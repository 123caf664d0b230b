package embedding

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/time/rate"
)

type limitedEmbedder struct {
	next    embeddings.Embedder
	limiter *rate.Limiter
}

// WithRateLimit caps the number of embedding requests per second. A
// non-positive rps returns e unchanged.
func WithRateLimit(e embeddings.Embedder, rps float64) embeddings.Embedder {
	if rps <= 0 {
		return e
	}
	return &limitedEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (l *limitedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.EmbedDocuments(ctx, texts)
}

func (l *limitedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.EmbedQuery(ctx, text)
}
