package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cv-chat-go/internal/config"

	"google.golang.org/genai"
)

type geminiClient struct {
	cfg    config.LLMConfig
	client *genai.Client
}

func newGeminiClient(ctx context.Context, cfg config.LLMConfig) (*geminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize genai client: %w", err)
	}
	return &geminiClient{cfg: cfg, client: client}, nil
}

func (c *geminiClient) Chat(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	gen := &genai.GenerateContentConfig{}
	if c.cfg.Generation.Temperature != 0 {
		gen.Temperature = genai.Ptr(float32(c.cfg.Generation.Temperature))
	}
	if c.cfg.Generation.TopP != 0 {
		gen.TopP = genai.Ptr(float32(c.cfg.Generation.TopP))
	}
	if c.cfg.Generation.MaxTokens != 0 {
		gen.MaxOutputTokens = int32(c.cfg.Generation.MaxTokens)
	}
	if system != "" {
		gen.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, gen)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				out.WriteString(part.Text)
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", errors.New("gemini returned no text")
	}
	return out.String(), nil
}
