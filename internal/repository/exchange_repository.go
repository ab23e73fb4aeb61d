package repository

import (
	"context"

	"cv-chat-go/internal/model"

	"gorm.io/gorm"
)

// ExchangeRepository stores question/answer records.
type ExchangeRepository interface {
	Create(ctx context.Context, exchange *model.Exchange) error
	// List returns all exchanges, or only those of corpusID when it is set.
	List(ctx context.Context, corpusID *uint) ([]model.Exchange, error)
	FindByID(ctx context.Context, id uint) (*model.Exchange, error)
	Delete(ctx context.Context, id uint) error
}

type exchangeRepository struct {
	db *gorm.DB
}

func NewExchangeRepository(db *gorm.DB) ExchangeRepository {
	return &exchangeRepository{db: db}
}

func (r *exchangeRepository) Create(ctx context.Context, exchange *model.Exchange) error {
	return r.db.WithContext(ctx).Create(exchange).Error
}

func (r *exchangeRepository) List(ctx context.Context, corpusID *uint) ([]model.Exchange, error) {
	var exchanges []model.Exchange
	q := r.db.WithContext(ctx).Order("id asc")
	if corpusID != nil {
		q = q.Where("corpus_id = ?", *corpusID)
	}
	err := q.Find(&exchanges).Error
	return exchanges, err
}

func (r *exchangeRepository) FindByID(ctx context.Context, id uint) (*model.Exchange, error) {
	var exchange model.Exchange
	if err := r.db.WithContext(ctx).First(&exchange, id).Error; err != nil {
		return nil, err
	}
	return &exchange, nil
}

func (r *exchangeRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Exchange{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
