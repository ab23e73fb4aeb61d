package service

import (
	"context"
	"errors"
	"fmt"

	"cv-chat-go/internal/model"
	"cv-chat-go/internal/repository"

	"gorm.io/gorm"
)

// ConversationService exposes the recorded exchanges.
type ConversationService interface {
	List(ctx context.Context, corpusID *uint) ([]model.Exchange, error)
	Get(ctx context.Context, id uint) (*model.Exchange, error)
	Delete(ctx context.Context, id uint) error
}

type conversationService struct {
	exchanges repository.ExchangeRepository
}

func NewConversationService(exchanges repository.ExchangeRepository) ConversationService {
	return &conversationService{exchanges: exchanges}
}

func (s *conversationService) List(ctx context.Context, corpusID *uint) ([]model.Exchange, error) {
	return s.exchanges.List(ctx, corpusID)
}

func (s *conversationService) Get(ctx context.Context, id uint) (*model.Exchange, error) {
	exchange, err := s.exchanges.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("conversation %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %d: %w", id, err)
	}
	return exchange, nil
}

func (s *conversationService) Delete(ctx context.Context, id uint) error {
	err := s.exchanges.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError("conversation %d", id)
	}
	return err
}
