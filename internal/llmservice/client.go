package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"commercial-rag/internal/config"
	"commercial-rag/internal/models"
)

// Request is a single chat completion call.
type Request struct {
	Model     string
	System    string
	Messages  []models.Message
	MaxTokens int
}

// Response carries the generated text and token usage.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client sends one request to the language model. Implementations must not
// retry; callers wrap them in a retry policy.
type Client interface {
	CreateMessage(ctx context.Context, req Request) (*Response, error)
}

// AnthropicClient talks to the Anthropic messages API through langchaingo.
type AnthropicClient struct {
	llm *anthropic.LLM
}

// NewAnthropicClient builds a client from the LLM config. Transport and
// HTTP status failures surface as *ConnectionError and *APIError.
func NewAnthropicClient(cfg *config.LLMConfig) (*AnthropicClient, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		anthropic.WithModel(cfg.Model),
		anthropic.WithHTTPClient(NewDoer(nil)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}
	return &AnthropicClient{llm: llm}, nil
}

func (c *AnthropicClient) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	log.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("Generating content")

	ctx, captured := withCapture(ctx)
	resp, err := c.llm.GenerateContent(ctx, toMessageContent(req), callOptions(req)...)
	if err != nil {
		// langchaingo wraps transport errors in its own messages; prefer the
		// typed error recorded by the doer.
		if *captured != nil {
			return nil, *captured
		}
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from model")
	}

	out := &Response{}
	for _, choice := range resp.Choices {
		out.Text += choice.Content
	}
	info := resp.Choices[0].GenerationInfo
	out.InputTokens = intValue(info["InputTokens"])
	out.OutputTokens = intValue(info["OutputTokens"])
	return out, nil
}

func callOptions(req Request) []llms.CallOption {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

func toMessageContent(req Request) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}
	return msgs
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
