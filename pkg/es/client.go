// Package es implements vectorstore.Index on Elasticsearch, one index per collection.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cv-chat-go/internal/config"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/vectorstore"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Client stores points as documents with a dense_vector field and searches them with kNN.
type Client struct {
	es *elasticsearch.Client
}

var _ vectorstore.Index = (*Client)(nil)

// document is the stored form of a point.
type document struct {
	Text       string    `json:"text"`
	ChunkIndex int       `json:"chunk_index"`
	Vector     []float32 `json:"vector"`
}

// NewClient connects to the comma separated addresses in cfg.
func NewClient(cfg config.ElasticsearchConfig) (*Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(cfg.Addresses, ","),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: client}, nil
}

func indexMapping(dimension int) string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"text": { "type": "text" },
				"chunk_index": { "type": "integer" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dimension)
}

func (c *Client) CreateCollection(ctx context.Context, name string, dimension int) error {
	res, err := c.es.Indices.Create(
		name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping(dimension))),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", vectorstore.ErrCollectionCreate, name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[ES] creating index '%s' failed: %s", name, res.String())
		return fmt.Errorf("%w: %s: %s", vectorstore.ErrCollectionCreate, name, res.Status())
	}
	log.Infof("[ES] index '%s' created", name)
	return nil
}

func (c *Client) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range points {
		meta := map[string]any{"index": map[string]any{"_index": collection, "_id": p.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("%w: %w", vectorstore.ErrUpsert, err)
		}
		doc := document{Text: p.Payload.Text, ChunkIndex: p.Payload.ChunkIndex, Vector: p.Vector}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("%w: %w", vectorstore.ErrUpsert, err)
		}
	}

	res, err := c.es.Bulk(
		&buf,
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(collection),
		c.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", vectorstore.ErrUpsert, collection, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: %s: %s", vectorstore.ErrUpsert, collection, res.String())
	}

	var bulk struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("%w: decode bulk response: %w", vectorstore.ErrUpsert, err)
	}
	if bulk.Errors {
		return fmt.Errorf("%w: %s: bulk request reported item errors", vectorstore.ErrUpsert, collection)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectorstore.Hit, error) {
	candidates := limit * 10
	if candidates < 100 {
		candidates = 100
	}
	query := map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              limit,
			"num_candidates": candidates,
		},
		"_source": []string{"text", "chunk_index"},
		"size":    limit,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vectorstore.ErrSearch, err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(collection),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", vectorstore.ErrSearch, collection, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w: %s", vectorstore.ErrSearch, vectorstore.ErrCollectionNotFound, collection)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s: %s", vectorstore.ErrSearch, collection, res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string              `json:"_id"`
				Score  float32             `json:"_score"`
				Source vectorstore.Payload `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %w", vectorstore.ErrSearch, err)
	}

	hits := make([]vectorstore.Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, vectorstore.Hit{ID: h.ID, Score: h.Score, Payload: h.Source})
	}
	return hits, nil
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	res, err := c.es.Indices.Delete(
		[]string{name},
		c.es.Indices.Delete.WithContext(ctx),
		c.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index %s: %s", name, res.String())
	}
	return nil
}

func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status checking index %s: %d", name, res.StatusCode)
	}
}

func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	res, err := esapi.CountRequest{Index: []string{collection}}.Do(ctx, c.es)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, collection)
	}
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("count %s: %s", collection, string(msg))
	}
	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.Count, nil
}
