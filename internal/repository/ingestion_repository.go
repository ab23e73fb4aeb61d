package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cv-chat-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ErrIngestionNotFound is returned for unknown or expired ingestion ids.
var ErrIngestionNotFound = errors.New("ingestion not found")

const ingestionStatusTTL = 7 * 24 * time.Hour

// IngestionRepository keeps the latest state of each ingestion.
type IngestionRepository interface {
	Save(ctx context.Context, status *model.IngestionStatus) error
	Get(ctx context.Context, id string) (*model.IngestionStatus, error)
}

type redisIngestionRepository struct {
	redisClient *redis.Client
}

func NewIngestionRepository(redisClient *redis.Client) IngestionRepository {
	return &redisIngestionRepository{redisClient: redisClient}
}

func ingestionKey(id string) string {
	return "ingestion:" + id
}

func (r *redisIngestionRepository) Save(ctx context.Context, status *model.IngestionStatus) error {
	status.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion status: %w", err)
	}
	if err := r.redisClient.Set(ctx, ingestionKey(status.ID), data, ingestionStatusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save ingestion status: %w", err)
	}
	return nil
}

func (r *redisIngestionRepository) Get(ctx context.Context, id string) (*model.IngestionStatus, error) {
	data, err := r.redisClient.Get(ctx, ingestionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrIngestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingestion status: %w", err)
	}
	var status model.IngestionStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingestion status: %w", err)
	}
	return &status, nil
}
