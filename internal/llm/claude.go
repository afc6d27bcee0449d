package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// Claude is a [Completer] backed by the Anthropic API.
//
// Every call waits on the limiter first, so a single limiter shared by all
// the call sites keeps the whole process under the provider's budget.
type Claude struct {
	client  *anthropic.Client
	limiter *rate.Limiter
	model   anthropic.Model

	attempts  uint64
	baseDelay time.Duration
	observe   func(stage Stage, took time.Duration, err error)
}

type ClaudeOption func(*Claude)

func WithModel(model string) ClaudeOption {
	return func(c *Claude) {
		if model != "" {
			c.model = anthropic.Model(model)
		}
	}
}

// WithRetries sets how many times a rate limited or failed call is retried.
func WithRetries(attempts uint64, baseDelay time.Duration) ClaudeOption {
	return func(c *Claude) {
		c.attempts = attempts
		c.baseDelay = baseDelay
	}
}

// WithObserver is called after every call, successful or not.
func WithObserver(f func(stage Stage, took time.Duration, err error)) ClaudeOption {
	return func(c *Claude) {
		c.observe = f
	}
}

// NewLimiter is a token bucket allowing perMinute calls with the given burst.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// NewClient builds an Anthropic client with the SDK's own retries turned off.
// Retries belong to [Claude] so that every attempt waits on the limiter.
func NewClient(apiKey string, opts ...option.RequestOption) anthropic.Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return anthropic.NewClient(append(opts, option.WithMaxRetries(0))...)
}

func NewClaude(client *anthropic.Client, limiter *rate.Limiter, opts ...ClaudeOption) *Claude {
	c := &Claude{
		client:    client,
		limiter:   limiter,
		model:     anthropic.ModelClaudeHaiku4_5,
		attempts:  2,
		baseDelay: time.Second,
		observe:   func(Stage, time.Duration, error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(0, 0)
	}

	return c
}

func (c *Claude) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	params := anthropic.BetaMessageNewParams{
		Model: c.model,
		Betas: []anthropic.AnthropicBeta{
			"structured-outputs-2025-11-13",
		},
		MaxTokens:    maxTokens,
		OutputFormat: anthropic.BetaJSONSchemaOutputFormat(req.Schema),
		System: []anthropic.BetaTextBlockParam{{
			Text: req.System,
		}},
		Messages: []anthropic.BetaMessageParam{
			anthropic.NewBetaUserMessage(anthropic.NewBetaTextBlock(req.Prompt)),
		},
	}

	var (
		out   string
		start = time.Now()
	)
	b := retry.WithMaxRetries(c.attempts, retry.NewExponential(c.baseDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("error waiting on rate limiter: %w", err)
		}

		resp, err := c.client.Beta.Messages.New(ctx, params)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		var text strings.Builder
		for _, content := range resp.Content {
			text.WriteString(content.Text)
		}
		out = text.String()
		return nil
	})
	c.observe(req.Stage, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("error calling claude for %s: %w", req.Stage, err)
	}

	return out, nil
}

// Rate limits, overloads and server errors are worth another try.
func isRetryable(err error) bool {
	var claudeErr *anthropic.Error
	if !errors.As(err, &claudeErr) {
		return false
	}

	return claudeErr.StatusCode == http.StatusTooManyRequests || claudeErr.StatusCode >= 500
}

// IsRateLimited reports if the provider pushed back on the call.
func IsRateLimited(err error) bool {
	var claudeErr *anthropic.Error
	return errors.As(err, &claudeErr) && claudeErr.StatusCode == http.StatusTooManyRequests
}
