package models

import (
	"math"
	"time"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryOutcome is the result of a single ask call. The caller owns
// persisting it.
type QueryOutcome struct {
	Answer       string         `json:"answer"`
	Sources      []string       `json:"sources"`
	TokensInput  int            `json:"tokens_input"`
	TokensOutput int            `json:"tokens_output"`
	CostUSD      float64        `json:"cost_usd"`
	Elapsed      time.Duration  `json:"-"`
	ContextUsed  []SearchResult `json:"context_used"`
	Error        string         `json:"error,omitempty"`
	Err          error          `json:"-"`
}

// ElapsedSeconds is the elapsed time rounded to two decimals.
func (o *QueryOutcome) ElapsedSeconds() float64 {
	return math.Round(o.Elapsed.Seconds()*100) / 100
}

// ReindexStats summarizes a full rebuild of the index.
type ReindexStats struct {
	Status         string        `json:"status"`
	DocumentsFound int           `json:"documents_found"`
	ChunksIndexed  int           `json:"chunks_indexed"`
	Elapsed        time.Duration `json:"-"`
	Error          string        `json:"error,omitempty"`
	Err            error         `json:"-"`
}

func (s ReindexStats) ElapsedSeconds() float64 {
	return math.Round(s.Elapsed.Seconds()*100) / 100
}

// Pricing holds per-million-token prices in USD.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_price_per_million"`
	OutputPerMillion float64 `yaml:"output_price_per_million"`
}

// Cost returns the USD cost of a call rounded to 6 decimal places.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	input := float64(inputTokens) / 1_000_000 * p.InputPerMillion
	output := float64(outputTokens) / 1_000_000 * p.OutputPerMillion
	return math.Round((input+output)*1e6) / 1e6
}
