// Package memory is an in-process vector index for development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"cv-chat-go/pkg/vectorstore"
)

type collection struct {
	dimension int
	order     []string
	points    map[string]vectorstore.Point
}

// Index keeps every collection in memory and ranks by brute-force cosine similarity.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ vectorstore.Index = (*Index)(nil)

func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

func (x *Index) CreateCollection(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", vectorstore.ErrCollectionCreate, dimension)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.collections[name]; ok {
		return fmt.Errorf("%w: collection %q already exists", vectorstore.ErrCollectionCreate, name)
	}
	x.collections[name] = &collection{dimension: dimension, points: make(map[string]vectorstore.Point)}
	return nil
}

func (x *Index) Upsert(_ context.Context, name string, points []vectorstore.Point) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	c, ok := x.collections[name]
	if !ok {
		return fmt.Errorf("%w: %w: %q", vectorstore.ErrUpsert, vectorstore.ErrCollectionNotFound, name)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return fmt.Errorf("%w: vector dimension %d, want %d", vectorstore.ErrUpsert, len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

func (x *Index) Search(_ context.Context, name string, vector []float32, limit int) ([]vectorstore.Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", vectorstore.ErrSearch, vectorstore.ErrCollectionNotFound, name)
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, want %d", vectorstore.ErrSearch, len(vector), c.dimension)
	}

	hits := make([]vectorstore.Hit, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		hits = append(hits, vectorstore.Hit{ID: p.ID, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (x *Index) DeleteCollection(_ context.Context, name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.collections, name)
	return nil
}

func (x *Index) CollectionExists(_ context.Context, name string) (bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.collections[name]
	return ok, nil
}

func (x *Index) Count(_ context.Context, name string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", vectorstore.ErrCollectionNotFound, name)
	}
	return len(c.points), nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
