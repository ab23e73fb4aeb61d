// Package repository implements persistence for corpora, exchanges and
// ingestion statuses.
package repository

import (
	"context"
	"fmt"

	"cv-chat-go/internal/model"

	"gorm.io/gorm"
)

// CorpusRepository persists corpora together with their segments.
type CorpusRepository interface {
	// CreateWithSegments inserts corpus and corpus.Segments in one transaction.
	// beforeCommit runs inside the transaction after the rows are written; an
	// error from it rolls everything back.
	CreateWithSegments(ctx context.Context, corpus *model.Corpus, beforeCommit func(ctx context.Context, corpus *model.Corpus) error) error
	FindByID(ctx context.Context, id uint) (*model.Corpus, error)
	List(ctx context.Context) ([]model.Corpus, error)
	ListSegments(ctx context.Context, corpusID uint) ([]model.Segment, error)
	CountSegments(ctx context.Context, corpusID uint) (int64, error)
	// Delete removes the corpus and its segments and detaches its exchanges.
	Delete(ctx context.Context, id uint) error
}

type corpusRepository struct {
	db *gorm.DB
}

func NewCorpusRepository(db *gorm.DB) CorpusRepository {
	return &corpusRepository{db: db}
}

func (r *corpusRepository) CreateWithSegments(ctx context.Context, corpus *model.Corpus, beforeCommit func(ctx context.Context, corpus *model.Corpus) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(corpus).Error; err != nil {
			return fmt.Errorf("insert corpus: %w", err)
		}
		if beforeCommit == nil {
			return nil
		}
		return beforeCommit(ctx, corpus)
	})
}

// FindByID returns gorm.ErrRecordNotFound when no corpus has the id.
func (r *corpusRepository) FindByID(ctx context.Context, id uint) (*model.Corpus, error) {
	var corpus model.Corpus
	if err := r.db.WithContext(ctx).First(&corpus, id).Error; err != nil {
		return nil, err
	}
	return &corpus, nil
}

func (r *corpusRepository) List(ctx context.Context) ([]model.Corpus, error) {
	var corpora []model.Corpus
	err := r.db.WithContext(ctx).Order("id asc").Find(&corpora).Error
	return corpora, err
}

func (r *corpusRepository) ListSegments(ctx context.Context, corpusID uint) ([]model.Segment, error) {
	var segments []model.Segment
	err := r.db.WithContext(ctx).Where("corpus_id = ?", corpusID).Order("chunk_index asc").Find(&segments).Error
	return segments, err
}

func (r *corpusRepository) CountSegments(ctx context.Context, corpusID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Segment{}).Where("corpus_id = ?", corpusID).Count(&n).Error
	return n, err
}

func (r *corpusRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Exchange{}).Where("corpus_id = ?", id).Update("corpus_id", nil).Error; err != nil {
			return fmt.Errorf("detach exchanges: %w", err)
		}
		if err := tx.Where("corpus_id = ?", id).Delete(&model.Segment{}).Error; err != nil {
			return fmt.Errorf("delete segments: %w", err)
		}
		res := tx.Delete(&model.Corpus{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete corpus: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
