package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cv-chat-go/internal/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

type anthropicClient struct {
	cfg      config.LLMConfig
	messages anthropic.MessageService
}

func newAnthropicClient(cfg config.LLMConfig) *anthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" && !strings.Contains(cfg.BaseURL, "groq.com") {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicClient{cfg: cfg, messages: client.Messages}
}

func (c *anthropicClient) Chat(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(defaultAnthropicMaxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(rest)),
	}
	if c.cfg.Generation.MaxTokens > 0 {
		params.MaxTokens = int64(c.cfg.Generation.MaxTokens)
	}
	if c.cfg.Generation.Temperature > 0 {
		params.Temperature = anthropic.Float(c.cfg.Generation.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range rest {
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("anthropic returned no text")
	}
	return out.String(), nil
}
