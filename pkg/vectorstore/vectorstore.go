// Package vectorstore defines the contract every vector backend implements.
// One collection holds the segments of exactly one corpus; distance is always cosine.
package vectorstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrCollectionCreate is returned when a collection cannot be created,
	// including name collisions.
	ErrCollectionCreate = errors.New("vectorstore: create collection failed")
	// ErrUpsert is returned when points cannot be written.
	ErrUpsert = errors.New("vectorstore: upsert failed")
	// ErrSearch covers every search failure, "collection not found" included.
	ErrSearch = errors.New("vectorstore: search failed")
	// ErrCollectionNotFound is wrapped together with ErrSearch or returned by Count.
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")
)

// Payload is stored alongside each point.
type Payload struct {
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
}

// Point is one embedded segment.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a search result; higher scores are more similar.
type Hit struct {
	ID      string
	Score   float32
	Payload Payload
}

// Index is a similarity index partitioned into named collections.
type Index interface {
	// CreateCollection creates a cosine collection of the given dimension.
	CreateCollection(ctx context.Context, name string, dimension int) error
	// Upsert writes points; writing the same point id twice overwrites it.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit hits ordered by descending similarity.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error)
	// DeleteCollection removes the collection; deleting a missing one is not an error.
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
}

// NewCollectionName returns prefix followed by a random 32 character hex id.
func NewCollectionName(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewPointID returns a fresh random point id.
func NewPointID() string {
	return uuid.NewString()
}
