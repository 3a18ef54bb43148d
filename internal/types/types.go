package types

import (
	"context"

	"github.com/xhad/redagent/internal/models"
)

// Metric is the similarity function a collection is created with.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// CollectionInfo describes an existing collection in a backend.
type CollectionInfo struct {
	Name       string
	VectorSize int
	Metric     Metric
}

// Backend is the external vector index the store talks to.
type Backend interface {
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	CreateCollection(ctx context.Context, info CollectionInfo) error
	Upsert(ctx context.Context, collection string, points []models.Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]models.SearchResult, error)
	Scroll(ctx context.Context, collection string) ([]models.Chunk, error)
	Close() error
}

// Embedder maps text to a fixed-length vector. Probe establishes the length
// once; VectorSize reports it afterwards.
type Embedder interface {
	Probe(ctx context.Context) (int, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	VectorSize() int
}

// Source yields the full plain text of a document.
type Source interface {
	ExtractText(ctx context.Context) (string, error)
}
