package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"commercial-rag/internal/llmservice"
	"commercial-rag/internal/models"
	"commercial-rag/internal/retry"
)

// Engine answers questions from the indexed documents.
type Engine struct {
	retriever *Retriever
	client    llmservice.Client
	model     string
	maxTokens int
	topK      int
	pricing   models.Pricing
	policy    retry.Policy
}

type Option func(*Engine)

func WithModel(model string) Option {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func WithPricing(p models.Pricing) Option {
	return func(e *Engine) { e.pricing = p }
}

// WithRetryPolicy replaces the default policy. The retry predicate is
// always llmservice.IsTransient.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

func NewEngine(retriever *Retriever, client llmservice.Client, opts ...Option) *Engine {
	e := &Engine{
		retriever: retriever,
		client:    client,
		model:     models.DefaultModel,
		maxTokens: models.DefaultMaxTokens,
		topK:      models.DefaultTopK,
		pricing:   models.Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0},
		policy:    retry.Default(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.policy.Retryable = llmservice.IsTransient
	return e
}

func (e *Engine) Retriever() *Retriever { return e.retriever }

// Ask retrieves context for question and asks the model to answer from it.
// history holds earlier turns, oldest first.
//
// A request the model API rejects as invalid is returned as an error. Any
// other failure yields an outcome carrying the apology message and the
// cause in Err, with a nil error.
func (e *Engine) Ask(ctx context.Context, question string, history []models.Message) (*models.QueryOutcome, error) {
	start := time.Now()

	results := e.retriever.Search(ctx, question, e.topK)
	req := llmservice.Request{
		Model:     e.model,
		System:    BuildSystemPrompt(results),
		Messages:  buildMessages(question, history),
		MaxTokens: e.maxTokens,
	}

	var resp *llmservice.Response
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		r, err := e.client.CreateMessage(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		if errors.Is(err, llmservice.ErrClientRequest) {
			log.Error().Err(err).Msg("Model rejected the request")
			return nil, fmt.Errorf("failed to generate answer: %w", err)
		}
		log.Error().Err(err).Str("class", llmservice.Classify(err).String()).Msg("Error generating answer")
		return apology(err, start), nil
	}

	outcome := &models.QueryOutcome{
		Answer:       resp.Text,
		Sources:      distinctSources(results),
		TokensInput:  resp.InputTokens,
		TokensOutput: resp.OutputTokens,
		CostUSD:      e.pricing.Cost(resp.InputTokens, resp.OutputTokens),
		ContextUsed:  results,
		Elapsed:      time.Since(start),
	}
	log.Info().
		Int("tokens_input", outcome.TokensInput).
		Int("tokens_output", outcome.TokensOutput).
		Float64("cost_usd", outcome.CostUSD).
		Dur("elapsed", outcome.Elapsed).
		Msg("Answer generated")
	return outcome, nil
}

func apology(err error, start time.Time) *models.QueryOutcome {
	return &models.QueryOutcome{
		Answer:      models.ApologyMessage,
		Sources:     []string{},
		ContextUsed: []models.SearchResult{},
		Error:       err.Error(),
		Err:         err,
		Elapsed:     time.Since(start),
	}
}

// BuildSystemPrompt renders the grounding instructions with each retrieved
// chunk labelled by its source file.
func BuildSystemPrompt(results []models.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, models.ContextChunkTemplate, r.Source, r.Content)
	}
	return fmt.Sprintf(models.SystemPromptTemplate, b.String())
}

func buildMessages(question string, history []models.Message) []models.Message {
	msgs := make([]models.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, models.Message{Role: models.RoleUser, Content: question})
}

// distinctSources lists each source filename once, in rank order.
func distinctSources(results []models.SearchResult) []string {
	seen := make(map[string]bool, len(results))
	sources := []string{}
	for _, r := range results {
		if seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		sources = append(sources, r.Source)
	}
	return sources
}
