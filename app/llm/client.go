package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/dailybrief/dailybrief/app/retry"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ErrorKind classifies a failed generation call. The retry tiers differ per
// kind: rate limits wait much longer than connection hiccups, and client
// errors are never retried.
type ErrorKind int

const (
	KindConnection ErrorKind = iota
	KindRateLimited
	KindServer
	KindClient
)

// APIError is a typed failure from a generation backend.
type APIError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation API error (status %d): %v", e.Status, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Provider is a model backend capable of completing a chat conversation.
type Provider interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// OpenAIProvider implements Provider on the OpenAI chat completions API.
type OpenAIProvider struct {
	client  *openai.Client
	limiter *rate.Limiter
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		// Calls are sequential by design; the limiter just keeps a long
		// batch from hammering the API back-to-back.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    chatMessages,
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &APIError{Kind: KindServer, Err: errors.New("empty choices in response")}
	}

	slog.Debug("Completion succeeded",
		"model", model,
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens)

	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return &APIError{Kind: KindRateLimited, Status: apiErr.HTTPStatusCode, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &APIError{Kind: KindServer, Status: apiErr.HTTPStatusCode, Err: err}
		case apiErr.HTTPStatusCode >= 400:
			return &APIError{Kind: KindClient, Status: apiErr.HTTPStatusCode, Err: err}
		}
	}
	return &APIError{Kind: KindConnection, Err: err}
}

func errorKind(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindConnection
}

// Client wraps a provider with bounded per-model retry and primary-to
// -fallback model escalation.
type Client struct {
	provider Provider
	primary  string
	fallback string
	policy   retry.Policy
}

func NewClient(provider Provider, primary, fallback string) *Client {
	return &Client{
		provider: provider,
		primary:  primary,
		fallback: fallback,
		policy: retry.Policy{
			MaxAttempts: 5,
			Base:        5 * time.Second,
			Max:         40 * time.Second,
			Retryable: func(err error) bool {
				return errorKind(err) != KindClient
			},
			DelayFor: delayForKind,
		},
	}
}

// delayForKind stretches the wait for rate limits, which need a much longer
// cool-down than a dropped connection. Returning 0 keeps the policy's
// default exponential curve.
func delayForKind(err error, attempt int) time.Duration {
	if errorKind(err) == KindRateLimited {
		d := time.Minute << uint(attempt-1)
		if d > 2*time.Minute {
			d = 2 * time.Minute
		}
		return d
	}
	return 0
}

// Complete runs the conversation against the primary model, then once
// against the fallback model if the primary exhausts its retries.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	out, err := c.completeModel(ctx, c.primary, messages)
	if err == nil {
		return out, nil
	}

	slog.Warn("Primary model failed, trying fallback",
		"primary", c.primary,
		"fallback", c.fallback,
		"error", err)

	out, err = c.completeModel(ctx, c.fallback, messages)
	if err != nil {
		return "", fmt.Errorf("both primary and fallback models failed: %w", err)
	}

	slog.Info("Fallback model succeeded", "model", c.fallback)
	return out, nil
}

func (c *Client) completeModel(ctx context.Context, model string, messages []Message) (string, error) {
	var out string
	err := c.policy.Do(ctx, func() error {
		var err error
		out, err = c.provider.Complete(ctx, model, messages)
		if err != nil {
			slog.Warn("Completion attempt failed", "model", model, "error", err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("model %s: %w", model, err)
	}
	return out, nil
}
