// Package llm wraps the Anthropic SDK behind the text-generation capability
// the pipeline consumes. Retry, backoff, and the provider fallback chain
// live here; callers treat a failure as terminal for their own unit of work.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

// Generator is the GenerateText contract. Prompt carries the task, system
// carries the role instructions; either may be empty.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Client calls Anthropic Claude (or a compatible proxy via base URL
// override) with exponential backoff and a model fallback chain.
type Client struct {
	client     *anthropic.Client
	models     []string
	maxTokens  int
	maxRetries int
	timeout    time.Duration
}

type Options struct {
	APIKey     string
	BaseURL    string
	Models     []string // tried in order
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration
}

func New(opts Options) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	models := opts.Models
	if len(models) == 0 {
		models = []string{"claude-sonnet-4-5"}
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		client:     anthropic.NewClient(reqOpts...),
		models:     models,
		maxTokens:  maxTokens,
		maxRetries: maxRetries,
		timeout:    timeout,
	}
}

// Generate sends one prompt and returns the concatenated text blocks of the
// reply. Each model in the fallback chain gets maxRetries attempts with
// exponential backoff before the next model is tried.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	for _, model := range c.models {
		for attempt := 0; attempt < c.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Duration(1<<uint(attempt-1)) * time.Second
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(backoff):
				}
			}

			text, err := c.generateOnce(ctx, model, system, prompt)
			if err == nil {
				return text, nil
			}
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			log.Warn().Err(err).Str("model", model).Int("attempt", attempt+1).Msg("llm call failed")
		}
	}
	return "", fmt.Errorf("all providers exhausted: %w", lastErr)
}

func (c *Client) generateOnce(ctx context.Context, model, system, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(model)),
		MaxTokens: anthropic.F(int64(c.maxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		})
	}

	resp, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("model %s returned no text content", model)
	}
	return text, nil
}
