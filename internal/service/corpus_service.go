package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cv-chat-go/internal/model"
	"cv-chat-go/internal/repository"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/vectorstore"

	"gorm.io/gorm"
)

const downloadURLExpiry = 15 * time.Minute

// ObjectStore archives original uploads. *storage.MinIOStore satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// CorpusService reads and deletes stored CVs.
type CorpusService interface {
	List(ctx context.Context) ([]model.Corpus, error)
	Get(ctx context.Context, id uint) (*model.Corpus, error)
	Segments(ctx context.Context, id uint) ([]model.Segment, error)
	// Delete drops the vector collection first, then the archived original,
	// then the record with its segments.
	Delete(ctx context.Context, id uint) error
	DownloadURL(ctx context.Context, id uint) (string, error)
}

type corpusService struct {
	corpora repository.CorpusRepository
	index   vectorstore.Index
	store   ObjectStore
}

// NewCorpusService creates a CorpusService; store may be nil.
func NewCorpusService(corpora repository.CorpusRepository, index vectorstore.Index, store ObjectStore) CorpusService {
	return &corpusService{corpora: corpora, index: index, store: store}
}

func (s *corpusService) List(ctx context.Context) ([]model.Corpus, error) {
	return s.corpora.List(ctx)
}

func (s *corpusService) Get(ctx context.Context, id uint) (*model.Corpus, error) {
	corpus, err := s.corpora.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("cv %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load cv %d: %w", id, err)
	}
	return corpus, nil
}

func (s *corpusService) Segments(ctx context.Context, id uint) ([]model.Segment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.corpora.ListSegments(ctx, id)
}

func (s *corpusService) Delete(ctx context.Context, id uint) error {
	corpus, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	// the relational cascade cannot reach the vector store
	if err := s.index.DeleteCollection(ctx, corpus.CollectionName); err != nil {
		return fmt.Errorf("delete collection %s: %w", corpus.CollectionName, err)
	}

	if s.store != nil && corpus.ObjectKey != "" {
		if err := s.store.Remove(ctx, corpus.ObjectKey); err != nil {
			log.Warnw("[CorpusService] failed to remove archived document", "cv_id", id, "object_key", corpus.ObjectKey, "error", err)
		}
	}

	if err := s.corpora.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("cv %d", id)
		}
		log.Errorw("[CorpusService] collection deleted but record remains", "cv_id", id, "collection", corpus.CollectionName, "error", err)
		return fmt.Errorf("delete cv %d: %w", id, err)
	}
	log.Infof("[CorpusService] deleted cv %d and collection %s", id, corpus.CollectionName)
	return nil
}

func (s *corpusService) DownloadURL(ctx context.Context, id uint) (string, error) {
	corpus, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.store == nil || corpus.ObjectKey == "" {
		return "", notFoundError("no archived document for cv %d", id)
	}
	return s.store.PresignedURL(ctx, corpus.ObjectKey, downloadURLExpiry)
}
