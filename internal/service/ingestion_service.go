package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"cv-chat-go/internal/model"
	"cv-chat-go/internal/pipeline"
	"cv-chat-go/internal/repository"
	"cv-chat-go/pkg/extract"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/tasks"

	"github.com/google/uuid"
)

// TaskPublisher queues ingestion tasks. *kafka.Producer satisfies it.
type TaskPublisher interface {
	PublishIngestion(ctx context.Context, task tasks.IngestionTask) error
}

// Upload is a CV file submitted for ingestion.
type Upload struct {
	Name     string
	FileName string
	Data     []byte
}

// IngestionService turns uploads into corpora, either inline or through the
// task queue.
type IngestionService interface {
	// Ingest runs the whole pipeline before returning.
	Ingest(ctx context.Context, upload Upload) (*model.Corpus, error)
	// Submit archives the upload, queues it and returns the ingestion id.
	Submit(ctx context.Context, upload Upload) (string, error)
	Status(ctx context.Context, id string) (*model.IngestionStatus, error)
	// RunTask ingests a queued upload; it is called by the Kafka consumer.
	RunTask(ctx context.Context, task tasks.IngestionTask) error
	// AbandonTask removes the archived upload of a task the consumer gave up on.
	AbandonTask(ctx context.Context, task tasks.IngestionTask)
}

type ingestionService struct {
	processor *pipeline.Processor
	store     ObjectStore
	publisher TaskPublisher
	statuses  repository.IngestionRepository
}

// NewIngestionService creates an IngestionService. store, publisher and
// statuses are optional; Submit needs all three.
func NewIngestionService(processor *pipeline.Processor, store ObjectStore, publisher TaskPublisher, statuses repository.IngestionRepository) IngestionService {
	return &ingestionService{processor: processor, store: store, publisher: publisher, statuses: statuses}
}

func validateUpload(upload Upload) error {
	if strings.TrimSpace(upload.Name) == "" || upload.FileName == "" || len(upload.Data) == 0 {
		return validationError("name and file are required")
	}
	if extract.DetectFormat(upload.FileName) == extract.FormatUnsupported {
		return &extract.UnsupportedFormatError{Ext: filepath.Ext(upload.FileName)}
	}
	return nil
}

func objectKey(id, fileName string) string {
	return path.Join("cvs", id, path.Base(filepath.ToSlash(fileName)))
}

func contentType(fileName string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *ingestionService) Ingest(ctx context.Context, upload Upload) (*model.Corpus, error) {
	if err := validateUpload(upload); err != nil {
		return nil, err
	}
	id := uuid.NewString()

	var key string
	if s.store != nil {
		key = objectKey(id, upload.FileName)
		if err := s.store.Put(ctx, key, upload.Data, contentType(upload.FileName)); err != nil {
			log.Warnw("[IngestionService] archiving failed, continuing without it", "file", upload.FileName, "error", err)
			key = ""
		}
	}

	corpus, err := s.processor.Ingest(ctx, pipeline.Document{
		Name:      strings.TrimSpace(upload.Name),
		FileName:  upload.FileName,
		Data:      upload.Data,
		ObjectKey: key,
	}, s.tracker(ctx, id))
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	return corpus, nil
}

func (s *ingestionService) Submit(ctx context.Context, upload Upload) (string, error) {
	if s.store == nil || s.publisher == nil || s.statuses == nil {
		return "", fmt.Errorf("%w: asynchronous ingestion needs object storage, kafka and redis", ErrUnavailable)
	}
	if err := validateUpload(upload); err != nil {
		return "", err
	}

	id := uuid.NewString()
	key := objectKey(id, upload.FileName)
	if err := s.store.Put(ctx, key, upload.Data, contentType(upload.FileName)); err != nil {
		return "", fmt.Errorf("archive upload: %w", err)
	}
	if err := s.statuses.Save(ctx, &model.IngestionStatus{ID: id, State: model.StateReceived}); err != nil {
		s.discard(ctx, key)
		return "", fmt.Errorf("record ingestion status: %w", err)
	}

	task := tasks.IngestionTask{
		IngestionID: id,
		ObjectKey:   key,
		FileName:    upload.FileName,
		Name:        strings.TrimSpace(upload.Name),
	}
	if err := s.publisher.PublishIngestion(ctx, task); err != nil {
		s.discard(ctx, key)
		_ = s.statuses.Save(ctx, &model.IngestionStatus{ID: id, State: model.StateFailed, Error: err.Error()})
		return "", fmt.Errorf("queue ingestion: %w", err)
	}
	log.Infof("[IngestionService] queued ingestion %s for '%s'", id, task.FileName)
	return id, nil
}

func (s *ingestionService) Status(ctx context.Context, id string) (*model.IngestionStatus, error) {
	if s.statuses == nil {
		return nil, fmt.Errorf("%w: ingestion status tracking needs redis", ErrUnavailable)
	}
	status, err := s.statuses.Get(ctx, id)
	if errors.Is(err, repository.ErrIngestionNotFound) {
		return nil, notFoundError("ingestion %s", id)
	}
	return status, err
}

func (s *ingestionService) RunTask(ctx context.Context, task tasks.IngestionTask) error {
	onState := s.tracker(ctx, task.IngestionID)
	if s.store == nil {
		return fmt.Errorf("%w: no object storage to read %s from", ErrUnavailable, task.ObjectKey)
	}

	data, err := s.store.Get(ctx, task.ObjectKey)
	if err != nil {
		if onState != nil {
			onState(model.StateFailed, 0, err)
		}
		return err
	}

	_, err = s.processor.Ingest(ctx, pipeline.Document{
		Name:      task.Name,
		FileName:  task.FileName,
		Data:      data,
		ObjectKey: task.ObjectKey,
	}, onState)
	return err
}

func (s *ingestionService) AbandonTask(ctx context.Context, task tasks.IngestionTask) {
	log.Warnw("[IngestionService] abandoning ingestion", "id", task.IngestionID, "object_key", task.ObjectKey)
	s.discard(ctx, task.ObjectKey)
}

// tracker records state transitions under id, or returns nil when statuses
// are not tracked.
func (s *ingestionService) tracker(ctx context.Context, id string) pipeline.StateFunc {
	if s.statuses == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	return func(state model.IngestionState, corpusID uint, err error) {
		status := &model.IngestionStatus{ID: id, State: state, CorpusID: corpusID}
		if err != nil {
			status.Error = err.Error()
		}
		if saveErr := s.statuses.Save(ctx, status); saveErr != nil {
			log.Warnw("[IngestionService] failed to record ingestion state", "id", id, "state", state, "error", saveErr)
		}
	}
}

func (s *ingestionService) discard(ctx context.Context, key string) {
	if s.store == nil || key == "" {
		return
	}
	if err := s.store.Remove(context.WithoutCancel(ctx), key); err != nil {
		log.Warnw("[IngestionService] failed to remove archived upload", "object_key", key, "error", err)
	}
}
