package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
)

const (
	DefaultSearchLimit     = 5
	DefaultFallbackMessage = "No relevant information found."
	SentinelID             = -1
)

// NoMatch is the placeholder returned by Search when nothing was found.
func NoMatch(message string) models.SearchResult {
	return models.SearchResult{ID: SentinelID, Score: 0, Text: message}
}

type RegistryConfig struct {
	Metric          types.Metric
	Timeout         time.Duration
	FallbackMessage string
}

// Registry hands out one Collection per name, creating the backend
// collection on first access.
type Registry struct {
	config  RegistryConfig
	backend types.Backend

	mu          sync.Mutex
	collections map[string]*Collection
}

func NewRegistry(backend types.Backend, config RegistryConfig) *Registry {
	if config.Metric == "" {
		config.Metric = types.MetricCosine
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.FallbackMessage == "" {
		config.FallbackMessage = DefaultFallbackMessage
	}
	return &Registry{
		config:      config,
		backend:     backend,
		collections: make(map[string]*Collection),
	}
}

// Collection returns the cached handle for name, ensuring the backend
// collection exists with vectorSize on first use.
func (r *Registry) Collection(ctx context.Context, name string, vectorSize int) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.collections[name]; ok {
		if c.size != vectorSize {
			return nil, fmt.Errorf("%w: collection %q holds %d-dim vectors, asked for %d",
				types.ErrDimensionMismatch, name, c.size, vectorSize)
		}
		return c, nil
	}

	if err := r.EnsureCollection(ctx, name, vectorSize, r.config.Metric); err != nil {
		return nil, err
	}
	c := &Collection{
		name:     name,
		size:     vectorSize,
		backend:  r.backend,
		timeout:  r.config.Timeout,
		fallback: r.config.FallbackMessage,
	}
	c.dedup = NewDedupIndex(c)
	r.collections[name] = c
	return c, nil
}

// EnsureCollection creates the collection iff it does not exist. An existing
// collection with another vector size is a configuration error.
func (r *Registry) EnsureCollection(ctx context.Context, name string, vectorSize int, metric types.Metric) error {
	if vectorSize <= 0 {
		return fmt.Errorf("%w: invalid vector size %d", types.ErrCollectionCreation, vectorSize)
	}
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	existing, err := r.backend.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to list collections: %v", types.ErrCollectionCreation, err)
	}
	for _, info := range existing {
		if info.Name != name {
			continue
		}
		if info.VectorSize != 0 && info.VectorSize != vectorSize {
			return fmt.Errorf("%w: %w: collection %q has size %d, embedder produces %d",
				types.ErrCollectionCreation, types.ErrDimensionMismatch, name, info.VectorSize, vectorSize)
		}
		logger.Info("collection %q already exists", name)
		return nil
	}

	logger.Info("creating collection %q (size=%d, metric=%s)", name, vectorSize, metric)
	err = r.backend.CreateCollection(ctx, types.CollectionInfo{Name: name, VectorSize: vectorSize, Metric: metric})
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrCollectionCreation, err)
	}
	return nil
}

func (r *Registry) Close() error {
	return r.backend.Close()
}

// Collection is a handle on one named partition of the vector index.
type Collection struct {
	name     string
	size     int
	backend  types.Backend
	timeout  time.Duration
	fallback string
	dedup    *DedupIndex
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) VectorSize() int { return c.size }

// IsDuplicate reports whether a chunk with this fingerprint is stored.
func (c *Collection) IsDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	return c.dedup.IsDuplicate(ctx, fingerprint)
}

// Upsert writes or overwrites one point. It does not deduplicate.
func (c *Collection) Upsert(ctx context.Context, chunk models.Chunk, vector []float32) error {
	if err := c.checkSize(vector); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	point := models.Point{Chunk: chunk, Vector: vector}
	if err := c.backend.Upsert(ctx, c.name, []models.Point{point}); err != nil {
		return fmt.Errorf("failed to upsert point %d into %q: %w", chunk.ID, c.name, err)
	}
	logger.Debug("stored point %d (fingerprint %s) in %q", chunk.ID, chunk.Fingerprint, c.name)
	return nil
}

// Search returns up to limit results by descending score. An empty result is
// reported as a single NoMatch sentinel.
func (c *Collection) Search(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error) {
	if err := c.checkSize(vector); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := c.backend.Search(ctx, c.name, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSearchBackend, err)
	}
	if len(results) == 0 {
		logger.Debug("no relevant chunks found in %q", c.name)
		return []models.SearchResult{NoMatch(c.fallback)}, nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListAll scans every stored chunk.
func (c *Collection) ListAll(ctx context.Context) ([]models.Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chunks, err := c.backend.Scroll(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %q: %v", types.ErrSearchBackend, c.name, err)
	}
	return chunks, nil
}

func (c *Collection) checkSize(vector []float32) error {
	if len(vector) != c.size {
		return fmt.Errorf("%w: got %d, collection %q expects %d",
			types.ErrDimensionMismatch, len(vector), c.name, c.size)
	}
	return nil
}
