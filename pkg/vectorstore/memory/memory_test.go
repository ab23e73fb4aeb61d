package memory

import (
	"context"
	"errors"
	"testing"

	"cv-chat-go/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	idx := New()
	name := vectorstore.NewCollectionName("cv_")

	require.NoError(t, idx.CreateCollection(ctx, name, 3))
	err := idx.CreateCollection(ctx, name, 3)
	assert.True(t, errors.Is(err, vectorstore.ErrCollectionCreate))

	points := []vectorstore.Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: vectorstore.Payload{Text: "alpha", ChunkIndex: 0}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: vectorstore.Payload{Text: "beta", ChunkIndex: 1}},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Payload: vectorstore.Payload{Text: "gamma", ChunkIndex: 2}},
	}
	require.NoError(t, idx.Upsert(ctx, name, points))
	// idempotent per point id
	require.NoError(t, idx.Upsert(ctx, name, points[:1]))

	n, err := idx.Count(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := idx.Search(ctx, name, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "alpha", hits[0].Payload.Text)

	require.NoError(t, idx.DeleteCollection(ctx, name))
	require.NoError(t, idx.DeleteCollection(ctx, name))
	exists, err := idx.CollectionExists(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSearchMissingCollection(t *testing.T) {
	_, err := New().Search(context.Background(), "cv_missing", []float32{1}, 3)
	assert.True(t, errors.Is(err, vectorstore.ErrSearch))
	assert.True(t, errors.Is(err, vectorstore.ErrCollectionNotFound))
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.CreateCollection(ctx, "cv_x", 2))

	err := idx.Upsert(ctx, "cv_x", []vectorstore.Point{{ID: "a", Vector: []float32{1, 2, 3}}})
	assert.True(t, errors.Is(err, vectorstore.ErrUpsert))
}

func TestNewCollectionName(t *testing.T) {
	a := vectorstore.NewCollectionName("cv_")
	b := vectorstore.NewCollectionName("cv_")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("cv_")+32)
	assert.Regexp(t, `^cv_[0-9a-f]{32}$`, a)
}
