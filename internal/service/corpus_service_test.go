package service

import (
	"context"
	"errors"
	"testing"

	"cv-chat-go/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDeleteIndex struct {
	vectorstore.Index
}

func (failingDeleteIndex) DeleteCollection(context.Context, string) error {
	return errors.New("vector store unreachable")
}

func TestDeleteRemovesCollectionSegmentsAndArchive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := newMemStore()

	corpus, err := NewIngestionService(env.processor, store, nil, nil).Ingest(ctx, Upload{
		Name: "alice", FileName: "alice.docx", Data: buildDOCX(t, aliceCV...),
	})
	require.NoError(t, err)
	require.NotEmpty(t, corpus.ObjectKey)
	require.True(t, store.has(corpus.ObjectKey))

	res, err := env.chat().Ask(ctx, corpus.ID, "Where does she live?")
	require.NoError(t, err)

	svc := NewCorpusService(env.corpora, env.index, store)
	require.NoError(t, svc.Delete(ctx, corpus.ID))

	exists, err := env.index.CollectionExists(ctx, corpus.CollectionName)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, store.has(corpus.ObjectKey))

	segments, err := env.corpora.ListSegments(ctx, corpus.ID)
	require.NoError(t, err)
	assert.Empty(t, segments)

	_, err = env.chat().Ask(ctx, corpus.ID, "Where does she live?")
	assert.ErrorIs(t, err, ErrNotFound)

	exchange, err := NewConversationService(env.exchanges).Get(ctx, res.ExchangeID)
	require.NoError(t, err)
	assert.Nil(t, exchange.CorpusID)
}

func TestDeleteKeepsRecordWhenCollectionDeletionFails(t *testing.T) {
	env := newTestEnv(t)
	corpus := env.ingestDOCX(t, "alice", aliceCV...)

	err := NewCorpusService(env.corpora, failingDeleteIndex{env.index}, nil).Delete(context.Background(), corpus.ID)
	require.Error(t, err)

	_, err = env.corpora.FindByID(context.Background(), corpus.ID)
	assert.NoError(t, err)
}

func TestCorpusServiceNotFound(t *testing.T) {
	env := newTestEnv(t)
	svc := NewCorpusService(env.corpora, env.index, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, 9)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Segments(ctx, 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 9), ErrNotFound)
}

func TestCorpusListSegmentsAndDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	corpus := env.ingestDOCX(t, "alice", aliceCV...)
	store := newMemStore()
	svc := NewCorpusService(env.corpora, env.index, store)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].Name)

	segments, err := svc.Segments(ctx, corpus.ID)
	require.NoError(t, err)
	for i, s := range segments {
		assert.Equal(t, i, s.ChunkIndex)
	}

	// ingested without archiving
	_, err = svc.DownloadURL(ctx, corpus.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
