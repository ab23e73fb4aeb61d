package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cv-chat-go/internal/model"
	"cv-chat-go/internal/repository"
	"cv-chat-go/pkg/embedding"
	"cv-chat-go/pkg/llm"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/vectorstore"

	"gorm.io/gorm"
)

// DefaultRetrievalLimit is how many segments are handed to the model.
const DefaultRetrievalLimit = 3

// AnswerGenerator produces an answer from retrieved context. *llm.Generator
// satisfies it.
type AnswerGenerator interface {
	Generate(ctx context.Context, cvContext, question string) llm.Answer
}

// ChatResult is the outcome of one question. Degraded is set when retrieval
// or generation failed and a fallback was used.
type ChatResult struct {
	Response   string `json:"response"`
	Degraded   bool   `json:"degraded"`
	ExchangeID uint   `json:"exchange_id"`
}

// ChatService answers questions about a stored CV.
type ChatService interface {
	Ask(ctx context.Context, corpusID uint, question string) (*ChatResult, error)
}

type chatService struct {
	corpora   repository.CorpusRepository
	exchanges repository.ExchangeRepository
	embedder  embedding.Client
	index     vectorstore.Index
	generator AnswerGenerator
	limit     int
}

func NewChatService(
	corpora repository.CorpusRepository,
	exchanges repository.ExchangeRepository,
	embedder embedding.Client,
	index vectorstore.Index,
	generator AnswerGenerator,
	limit int,
) ChatService {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}
	return &chatService{
		corpora:   corpora,
		exchanges: exchanges,
		embedder:  embedder,
		index:     index,
		generator: generator,
		limit:     limit,
	}
}

// Ask retrieves the closest segments, generates an answer and records the
// exchange. Retrieval and generation failures degrade the answer instead of
// failing the call.
func (s *chatService) Ask(ctx context.Context, corpusID uint, question string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if corpusID == 0 || question == "" {
		return nil, validationError("cv_id and question are required")
	}

	corpus, err := s.corpora.FindByID(ctx, corpusID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("cv %d", corpusID)
	}
	if err != nil {
		return nil, fmt.Errorf("load cv %d: %w", corpusID, err)
	}

	cvContext, retrievalFailed := s.retrieve(ctx, corpus, question)

	answer := s.generator.Generate(ctx, cvContext, question)
	if answer.Failed {
		log.Warnw("[ChatService] answer generation degraded", "cv_id", corpus.ID, "error", answer.Cause)
	}

	exchange := &model.Exchange{
		Question: question,
		Response: answer.Text,
		Degraded: retrievalFailed || answer.Failed,
		CorpusID: &corpus.ID,
	}
	if err := s.exchanges.Create(ctx, exchange); err != nil {
		return nil, fmt.Errorf("save exchange: %w", err)
	}

	return &ChatResult{Response: answer.Text, Degraded: exchange.Degraded, ExchangeID: exchange.ID}, nil
}

// retrieve returns the payload texts of the nearest segments joined by blank
// lines, in the order the index ranked them.
func (s *chatService) retrieve(ctx context.Context, corpus *model.Corpus, question string) (string, bool) {
	vector, err := s.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		log.Warnw("[ChatService] question embedding failed, answering without context", "cv_id", corpus.ID, "error", err)
		return "", true
	}

	hits, err := s.index.Search(ctx, corpus.CollectionName, vector, s.limit)
	if err != nil {
		log.Warnw("[ChatService] vector search failed, answering without context",
			"cv_id", corpus.ID, "collection", corpus.CollectionName, "error", err)
		return "", true
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Payload.Text)
	}
	return strings.Join(texts, "\n\n"), false
}
