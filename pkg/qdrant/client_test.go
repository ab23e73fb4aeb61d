package qdrant

import (
	"context"
	"sort"
	"testing"

	"cv-chat-go/pkg/vectorstore"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeQdrant keeps collections in memory and answers like the server does.
type fakeQdrant struct {
	collections map[string]map[string]*qdrant.PointStruct
	created     []*qdrant.CreateCollection
	lastQuery   *qdrant.QueryPoints
	lastUpsert  *qdrant.UpsertPoints
	failWith    error
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: make(map[string]map[string]*qdrant.PointStruct)}
}

func notFound(name string) error {
	return status.Errorf(codes.NotFound, "Not found: Collection `%s` doesn't exist!", name)
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	if _, ok := f.collections[req.CollectionName]; ok {
		return status.Errorf(codes.AlreadyExists, "Collection `%s` already exists!", req.CollectionName)
	}
	f.created = append(f.created, req)
	f.collections[req.CollectionName] = make(map[string]*qdrant.PointStruct)
	return nil
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	points, ok := f.collections[req.CollectionName]
	if !ok {
		return nil, notFound(req.CollectionName)
	}
	f.lastUpsert = req
	for _, p := range req.Points {
		points[p.GetId().GetUuid()] = p
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	points, ok := f.collections[req.CollectionName]
	if !ok {
		return nil, notFound(req.CollectionName)
	}
	f.lastQuery = req

	var out []*qdrant.ScoredPoint
	for _, p := range points {
		idx := p.Payload[payloadChunkIndex].GetIntegerValue()
		out = append(out, &qdrant.ScoredPoint{Id: p.Id, Payload: p.Payload, Score: 1 - float32(idx)/10})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n := int(req.GetLimit()); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeQdrant) DeleteCollection(_ context.Context, name string) error {
	if _, ok := f.collections[name]; !ok {
		return notFound(name)
	}
	delete(f.collections, name)
	return nil
}

func (f *fakeQdrant) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeQdrant) Count(_ context.Context, req *qdrant.CountPoints) (uint64, error) {
	points, ok := f.collections[req.CollectionName]
	if !ok {
		return 0, notFound(req.CollectionName)
	}
	return uint64(len(points)), nil
}

func TestCollectionLifecycle(t *testing.T) {
	fake := newFakeQdrant()
	c := &Client{api: fake}
	ctx := context.Background()

	require.NoError(t, c.CreateCollection(ctx, "cv_abc", 384))
	require.Len(t, fake.created, 1)
	params := fake.created[0].GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(384), params.GetSize())
	assert.Equal(t, qdrant.Distance_Cosine, params.GetDistance())

	err := c.CreateCollection(ctx, "cv_abc", 384)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionCreate)

	exists, err := c.CollectionExists(ctx, "cv_abc")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.DeleteCollection(ctx, "cv_abc"))
	require.NoError(t, c.DeleteCollection(ctx, "cv_abc"), "deleting twice is fine")

	exists, err = c.CollectionExists(ctx, "cv_abc")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpsertSearchAndCount(t *testing.T) {
	fake := newFakeQdrant()
	c := &Client{api: fake}
	ctx := context.Background()
	require.NoError(t, c.CreateCollection(ctx, "cv_abc", 2))

	points := []vectorstore.Point{
		{ID: "6f1c2a1e-8d43-4c3b-9a6e-0b5b8f7d2c11", Vector: []float32{1, 0}, Payload: vectorstore.Payload{Text: "Go developer.", ChunkIndex: 0}},
		{ID: "0e9d7c55-1b2a-4f3e-8c6d-5a4b3c2d1e0f", Vector: []float32{0, 1}, Payload: vectorstore.Payload{Text: "Speaks French.", ChunkIndex: 1}},
	}
	require.NoError(t, c.Upsert(ctx, "cv_abc", points))
	assert.True(t, fake.lastUpsert.GetWait())
	assert.Len(t, fake.lastUpsert.Points, 2)

	hits, err := c.Search(ctx, "cv_abc", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, points[0].ID, hits[0].ID)
	assert.Equal(t, points[0].Payload, hits[0].Payload)
	assert.Equal(t, points[1].Payload, hits[1].Payload)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, uint64(3), fake.lastQuery.GetLimit())
	assert.True(t, fake.lastQuery.GetWithPayload().GetEnable())

	n, err := c.Count(ctx, "cv_abc")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// an empty batch never reaches the server
	require.NoError(t, c.Upsert(ctx, "missing", nil))
}

func TestMissingCollection(t *testing.T) {
	c := &Client{api: newFakeQdrant()}
	ctx := context.Background()

	_, err := c.Search(ctx, "missing", []float32{1}, 3)
	assert.ErrorIs(t, err, vectorstore.ErrSearch)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)

	_, err = c.Count(ctx, "missing")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)

	err = c.Upsert(ctx, "missing", []vectorstore.Point{{ID: "6f1c2a1e-8d43-4c3b-9a6e-0b5b8f7d2c11", Vector: []float32{1}}})
	assert.ErrorIs(t, err, vectorstore.ErrUpsert)
}

func TestUpsertErrorIsWrapped(t *testing.T) {
	fake := newFakeQdrant()
	c := &Client{api: fake}
	require.NoError(t, c.CreateCollection(context.Background(), "cv_abc", 1))
	fake.failWith = status.Error(codes.Unavailable, "connection refused")

	err := c.Upsert(context.Background(), "cv_abc", []vectorstore.Point{{ID: "6f1c2a1e-8d43-4c3b-9a6e-0b5b8f7d2c11", Vector: []float32{1}}})
	assert.ErrorIs(t, err, vectorstore.ErrUpsert)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestToHitNumericID(t *testing.T) {
	hit := toHit(&qdrant.ScoredPoint{Id: qdrant.NewIDNum(42), Score: 0.5})
	assert.Equal(t, "42", hit.ID)
	assert.Equal(t, vectorstore.Payload{}, hit.Payload)
}
