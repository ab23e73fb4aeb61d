package embedding

import (
	"context"
	"errors"
	"fmt"

	"cv-chat-go/internal/config"

	"google.golang.org/genai"
)

// geminiClient embeds through the Gemini API.
type geminiClient struct {
	cfg    config.EmbeddingConfig
	client *genai.Client
}

func newGeminiClient(ctx context.Context, cfg config.EmbeddingConfig) (*geminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize genai client: %w", err)
	}
	return &geminiClient{cfg: cfg, client: client}, nil
}

func (c *geminiClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *geminiClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	var embedCfg *genai.EmbedContentConfig
	if c.cfg.Dimensions > 0 {
		dim := int32(c.cfg.Dimensions)
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	result, err := c.client.Models.EmbedContent(ctx, c.cfg.Model, contents, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, errors.New("gemini returned an unexpected number of embeddings")
	}

	vectors := make([][]float32, len(texts))
	for i, e := range result.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini returned an empty embedding for input %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}
