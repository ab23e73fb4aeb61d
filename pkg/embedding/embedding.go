// Package embedding provides clients for text embedding models.
package embedding

import (
	"context"
	"fmt"

	"cv-chat-go/internal/config"
)

// Client embeds one text into a fixed-dimension vector.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BatchClient is implemented by clients that can embed several texts in one call.
// Output order matches input order.
type BatchClient interface {
	Client
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient creates the client selected by cfg.Provider.
func NewClient(ctx context.Context, cfg config.EmbeddingConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return newOpenAIClient(cfg), nil
	case "gemini":
		return newGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// EmbedAll embeds texts in order, batching when the client supports it.
func EmbedAll(ctx context.Context, c Client, texts []string, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	bc, ok := c.(BatchClient)
	if !ok || batchSize <= 1 {
		for i, t := range texts {
			v, err := c.CreateEmbedding(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("embed text %d: %w", i, err)
			}
			vectors = append(vectors, v)
		}
		return vectors, nil
	}

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch, err := bc.CreateEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embed texts %d-%d: got %d vectors", start, end-1, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
