package embedding

import (
	"context"
	"errors"
	"fmt"

	"cv-chat-go/internal/config"
	"cv-chat-go/pkg/log"

	"github.com/sashabaranov/go-openai"
)

// openAIClient talks to any OpenAI-compatible /embeddings endpoint.
type openAIClient struct {
	cfg    config.EmbeddingConfig
	client *openai.Client
}

func newOpenAIClient(cfg config.EmbeddingConfig) *openAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &openAIClient{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

func (c *openAIClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *openAIClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	log.Debugf("[EmbeddingClient] calling embeddings API, model: %s, inputs: %d", c.cfg.Model, len(texts))
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.cfg.Model),
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		log.Errorf("[EmbeddingClient] embeddings API call failed: %v", err)
		return nil, fmt.Errorf("call embedding api: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding api returned out of range index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, errors.New("received empty embedding from api")
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
