package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"cv-chat-go/internal/config"
	"cv-chat-go/internal/model"
	"cv-chat-go/internal/pipeline"
	"cv-chat-go/internal/repository"
	"cv-chat-go/pkg/database"
	"cv-chat-go/pkg/extract"
	"cv-chat-go/pkg/llm"
	"cv-chat-go/pkg/tasks"
	"cv-chat-go/pkg/vectorstore/memory"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testDimension = 16

// wordEmbedder hashes lower-cased words into a bag-of-words vector.
type wordEmbedder struct{}

func (wordEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, testDimension)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%testDimension]++
	}
	return v, nil
}

const notMentioned = "That is not mentioned in the CV."

// recordingGenerator answers with the best-ranked context block.
type recordingGenerator struct {
	mu       sync.Mutex
	contexts []string
	fail     error
}

func (g *recordingGenerator) Generate(_ context.Context, cvContext, _ string) llm.Answer {
	g.mu.Lock()
	g.contexts = append(g.contexts, cvContext)
	g.mu.Unlock()
	if g.fail != nil {
		return llm.Answer{Text: llm.DefaultFailureText, Failed: true, Cause: g.fail}
	}
	if cvContext == "" {
		return llm.Answer{Text: notMentioned}
	}
	return llm.Answer{Text: "According to the CV: " + strings.SplitN(cvContext, "\n\n", 2)[0]}
}

func (g *recordingGenerator) lastContext() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.contexts) == 0 {
		return ""
	}
	return g.contexts[len(g.contexts)-1]
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.local/cvs/" + key + "?signature=x", nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishIngestion(ctx context.Context, task tasks.IngestionTask) error {
	return m.Called(ctx, task).Error(0)
}

type testEnv struct {
	index     *memory.Index
	corpora   repository.CorpusRepository
	exchanges repository.ExchangeRepository
	generator *recordingGenerator
	processor *pipeline.Processor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Corpus{}, &model.Segment{}, &model.Exchange{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		index:     memory.New(),
		corpora:   repository.NewCorpusRepository(db),
		exchanges: repository.NewExchangeRepository(db),
		generator: &recordingGenerator{},
	}
	env.processor = pipeline.NewProcessor(
		extract.New(nil),
		wordEmbedder{},
		env.index,
		env.corpora,
		config.ChunkingConfig{ChunkSize: 120, Overlap: 1, MinChunkLength: pipeline.DefaultMinChunkLength},
		config.EmbeddingConfig{Dimensions: testDimension},
		"cv_",
	)
	return env
}

func (e *testEnv) chat() ChatService {
	return NewChatService(e.corpora, e.exchanges, wordEmbedder{}, e.index, e.generator, DefaultRetrievalLimit)
}

// ingestDOCX stores paragraphs as a new corpus.
func (e *testEnv) ingestDOCX(t *testing.T, name string, paragraphs ...string) *model.Corpus {
	t.Helper()
	corpus, err := NewIngestionService(e.processor, nil, nil, nil).Ingest(context.Background(), Upload{
		Name:     name,
		FileName: name + ".docx",
		Data:     buildDOCX(t, paragraphs...),
	})
	require.NoError(t, err)
	return corpus
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	for _, p := range pages {
		doc.AddPage()
		doc.Cell(40, 10, p)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}
