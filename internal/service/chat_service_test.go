package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cv-chat-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aliceCV = []string{
	"Alice Smith is a backend engineer based in Berlin.",
	"She built billing services in Go and Postgres at Acme for four years.",
	"Before that she maintained a Kafka streaming platform at Initech.",
	"Education: MSc Distributed Systems from TU Munich.",
	"Hobbies include climbing and chess.",
}

func TestAskValidation(t *testing.T) {
	chat := newTestEnv(t).chat()

	_, err := chat.Ask(context.Background(), 0, "Where does she live?")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = chat.Ask(context.Background(), 1, "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAskUnknownCorpus(t *testing.T) {
	_, err := newTestEnv(t).chat().Ask(context.Background(), 42, "Anything?")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAskJoinsTopSegmentsAndRecordsExchange(t *testing.T) {
	env := newTestEnv(t)
	corpus := env.ingestDOCX(t, "alice", aliceCV...)
	segments, err := env.corpora.ListSegments(context.Background(), corpus.ID)
	require.NoError(t, err)
	require.Greater(t, len(segments), DefaultRetrievalLimit)

	res, err := env.chat().Ask(context.Background(), corpus.ID, "Which university did she attend?")
	require.NoError(t, err)
	assert.False(t, res.Degraded)

	blocks := strings.Split(env.generator.lastContext(), "\n\n")
	assert.Len(t, blocks, DefaultRetrievalLimit)
	texts := make(map[string]bool, len(segments))
	for _, s := range segments {
		texts[s.ChunkText] = true
	}
	for _, b := range blocks {
		assert.True(t, texts[b], "context block %q is not a stored segment", b)
	}
	assert.Equal(t, "According to the CV: "+blocks[0], res.Response)

	exchanges, err := env.exchanges.List(context.Background(), &corpus.ID)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, res.ExchangeID, exchanges[0].ID)
	assert.Equal(t, "Which university did she attend?", exchanges[0].Question)
	assert.Equal(t, res.Response, exchanges[0].Response)
	assert.False(t, exchanges[0].Timestamp.IsZero())
}

func TestAskEmptyCollectionSaysNotMentioned(t *testing.T) {
	env := newTestEnv(t)
	corpus := env.ingestDOCX(t, "empty", "Short.")

	res, err := env.chat().Ask(context.Background(), corpus.ID, "What languages does she speak?")
	require.NoError(t, err)
	assert.Equal(t, notMentioned, res.Response)
	assert.False(t, res.Degraded)
	assert.Equal(t, "", env.generator.lastContext())
}

func TestAskDegradesWhenSearchFails(t *testing.T) {
	env := newTestEnv(t)
	corpus := env.ingestDOCX(t, "alice", aliceCV...)
	require.NoError(t, env.index.DeleteCollection(context.Background(), corpus.CollectionName))

	res, err := env.chat().Ask(context.Background(), corpus.ID, "Where does she work?")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, notMentioned, res.Response)

	exchanges, err := env.exchanges.List(context.Background(), &corpus.ID)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.True(t, exchanges[0].Degraded)
}

func TestAskDegradesWhenGenerationFails(t *testing.T) {
	env := newTestEnv(t)
	env.generator.fail = errors.New("provider unavailable")
	corpus := env.ingestDOCX(t, "alice", aliceCV...)

	res, err := env.chat().Ask(context.Background(), corpus.ID, "Where does she work?")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, llm.DefaultFailureText, res.Response)
}
