// Package weaviate implements vectorstore.Index on Weaviate, one class per collection.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"cv-chat-go/internal/config"
	"cv-chat-go/pkg/vectorstore"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const batchSize = 200

type Client struct {
	client *weaviate.Client
}

var _ vectorstore.Index = (*Client)(nil)

func NewClient(cfg config.WeaviateConfig) (*Client, error) {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	wcfg := weaviate.Config{
		Host:   strings.TrimPrefix(cfg.Host, scheme+"://"),
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &Client{client: client}, nil
}

// className maps a collection name onto a valid Weaviate class name,
// which must start with an upper-case letter.
func className(collection string) string {
	if collection == "" {
		return collection
	}
	r := []rune(collection)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (c *Client) CreateCollection(ctx context.Context, name string, dimension int) error {
	class := &models.Class{
		Class: className(name),
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "chunk_index", DataType: []string{"int"}},
		},
		Vectorizer:        "none",
		VectorIndexType:   "hnsw",
		VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
	}
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", vectorstore.ErrCollectionCreate, name, err)
	}
	if exists {
		return fmt.Errorf("%w: class %s already exists", vectorstore.ErrCollectionCreate, class.Class)
	}
	if err := c.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", vectorstore.ErrCollectionCreate, name, err)
	}
	return nil
}

func (c *Client) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	class := className(collection)
	for i := 0; i < len(points); i += batchSize {
		end := min(i+batchSize, len(points))

		batcher := c.client.Batch().ObjectsBatcher()
		for _, p := range points[i:end] {
			batcher = batcher.WithObjects(&models.Object{
				Class: class,
				ID:    strfmt.UUID(p.ID),
				Properties: map[string]interface{}{
					"text":        p.Payload.Text,
					"chunk_index": p.Payload.ChunkIndex,
				},
				Vector: p.Vector,
			})
		}
		results, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: %s batch %d-%d: %w", vectorstore.ErrUpsert, collection, i, end, err)
		}
		for _, res := range results {
			if res.Result != nil && res.Result.Errors != nil && len(res.Result.Errors.Error) > 0 {
				return fmt.Errorf("%w: %s: %s", vectorstore.ErrUpsert, collection, res.Result.Errors.Error[0].Message)
			}
		}
	}
	return nil
}

func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectorstore.Hit, error) {
	class := className(collection)
	exists, err := c.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", vectorstore.ErrSearch, collection, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %w: %s", vectorstore.ErrSearch, vectorstore.ErrCollectionNotFound, collection)
	}

	result, err := c.client.GraphQL().Get().
		WithClassName(class).
		WithFields(
			graphql.Field{Name: "text"},
			graphql.Field{Name: "chunk_index"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
		).
		WithNearVector(c.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", vectorstore.ErrSearch, collection, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", vectorstore.ErrSearch, collection, result.Errors[0].Message)
	}
	return hitsFromGraphQL(result.Data, class)
}

// hitsFromGraphQL reads Get.<class>[] out of a GraphQL response.
func hitsFromGraphQL(data map[string]models.JSONObject, class string) ([]vectorstore.Hit, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: response has no Get section", vectorstore.ErrSearch)
	}
	items, _ := get[class].([]interface{})

	hits := make([]vectorstore.Hit, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var hit vectorstore.Hit
		hit.Payload.Text, _ = obj["text"].(string)
		if idx, ok := obj["chunk_index"].(float64); ok {
			hit.Payload.ChunkIndex = int(idx)
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			hit.ID, _ = additional["id"].(string)
			if d, ok := additional["distance"].(float64); ok {
				hit.Score = float32(1 - d)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return c.client.Schema().ClassDeleter().WithClassName(className(name)).Do(ctx)
}

func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	return c.client.Schema().ClassExistenceChecker().WithClassName(className(name)).Do(ctx)
}

func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	class := className(collection)
	result, err := c.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, result.Errors[0].Message)
	}
	return countFromGraphQL(result.Data, class)
}

func countFromGraphQL(data map[string]models.JSONObject, class string) (int, error) {
	agg, ok := data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, errors.New("response has no Aggregate section")
	}
	rows, _ := agg[class].([]interface{})
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}
