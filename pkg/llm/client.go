// Package llm provides chat clients for hosted language models and the
// answer generator built on top of them.
package llm

import (
	"context"
	"fmt"

	"cv-chat-go/internal/config"

	"golang.org/x/time/rate"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client sends a chat and returns the complete reply.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// NewClient creates the client selected by cfg.Provider, rate limited when
// cfg.RequestsPerSecond is positive.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case "", "openai":
		client = newOpenAIClient(cfg)
	case "gemini":
		client, err = newGeminiClient(ctx, cfg)
	case "anthropic":
		client = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond > 0 {
		client = WithRateLimit(client, cfg.RequestsPerSecond, cfg.Burst)
	}
	return client, nil
}

type limitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// WithRateLimit throttles calls to next to rps requests per second.
func WithRateLimit(next Client, rps float64, burst int) Client {
	if burst < 1 {
		burst = 1
	}
	return &limitedClient{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *limitedClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return c.next.Chat(ctx, messages)
}

// splitSystem separates system messages from the conversation for providers
// that take the system prompt as a separate parameter.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
