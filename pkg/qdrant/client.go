// Package qdrant implements vectorstore.Index on Qdrant through its gRPC client.
package qdrant

import (
	"context"
	"fmt"
	"strconv"

	"cv-chat-go/internal/config"
	"cv-chat-go/pkg/vectorstore"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	payloadText       = "text"
	payloadChunkIndex = "chunk_index"
)

// pointsAPI is the part of *qdrant.Client the index uses.
type pointsAPI interface {
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
}

// Client stores every collection with cosine distance.
type Client struct {
	api pointsAPI
}

var _ vectorstore.Index = (*Client)(nil)

// NewClient connects to the gRPC port of the Qdrant server in cfg. The
// connection is established lazily on the first call.
func NewClient(cfg config.QdrantConfig) (*Client, error) {
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Client{api: c}, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (c *Client) CreateCollection(ctx context.Context, name string, dimension int) error {
	err := c.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", vectorstore.ErrCollectionCreate, name, err)
	}
	return nil
}

func toPointStruct(p vectorstore.Point) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: map[string]*qdrant.Value{
			payloadText:       qdrant.NewValueString(p.Payload.Text),
			payloadChunkIndex: qdrant.NewValueInt(int64(p.Payload.ChunkIndex)),
		},
	}
}

func (c *Client) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = toPointStruct(p)
	}
	_, err := c.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", vectorstore.ErrUpsert, collection, err)
	}
	return nil
}

func toHit(sp *qdrant.ScoredPoint) vectorstore.Hit {
	id := sp.GetId().GetUuid()
	if id == "" {
		id = strconv.FormatUint(sp.GetId().GetNum(), 10)
	}
	payload := sp.GetPayload()
	return vectorstore.Hit{
		ID:    id,
		Score: sp.GetScore(),
		Payload: vectorstore.Payload{
			Text:       payload[payloadText].GetStringValue(),
			ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
		},
	}
}

func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectorstore.Hit, error) {
	points, err := c.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %w: %s", vectorstore.ErrSearch, vectorstore.ErrCollectionNotFound, collection)
		}
		return nil, fmt.Errorf("%w: %s: %w", vectorstore.ErrSearch, collection, err)
	}

	hits := make([]vectorstore.Hit, 0, len(points))
	for _, sp := range points {
		hits = append(hits, toHit(sp))
	}
	return hits, nil
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := c.api.DeleteCollection(ctx, name); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	return c.api.CollectionExists(ctx, name)
}

func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	n, err := c.api.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, collection)
		}
		return 0, err
	}
	return int(n), nil
}
