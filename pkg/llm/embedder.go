package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/internal/types"
)

const (
	DefaultEmbeddingModel = "nomic-embed-text:latest"
	DefaultBaseURL        = "http://localhost:11434"
	// ProbeText is embedded once at startup to learn the vector size.
	ProbeText = "test"
)

type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables throttling
}

// Embedder wraps an embedding client and pins the vector size after Probe.
// It does not retry; callers own retry policy.
type Embedder struct {
	config  EmbedderConfig
	client  embeddings.EmbedderClient
	limiter *rate.Limiter

	mu   sync.RWMutex
	size int
}

var _ types.Embedder = (*Embedder)(nil)

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = DefaultEmbeddingModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	return NewEmbedderWithClient(config, client), nil
}

// NewEmbedderWithClient uses an already constructed client, e.g. in tests.
func NewEmbedderWithClient(config EmbedderConfig, client embeddings.EmbedderClient) *Embedder {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	e := &Embedder{config: config, client: client}
	if config.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return e
}

// Probe embeds ProbeText and fixes the vector size for the lifetime of the
// embedder. Later probes return the pinned size without calling the provider.
func (e *Embedder) Probe(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.size > 0 {
		return e.size, nil
	}

	vec, err := e.create(ctx, ProbeText)
	if err != nil {
		return 0, err
	}
	e.size = len(vec)
	logger.Info("detected embedding size %d for model %s", e.size, e.config.Model)
	return e.size, nil
}

// VectorSize returns the probed size, or 0 before Probe succeeded.
func (e *Embedder) VectorSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.size
}

// Embed returns the vector for text. Once probed, vectors of any other length
// are rejected.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.create(ctx, text)
	if err != nil {
		return nil, err
	}
	if size := e.VectorSize(); size > 0 && len(vec) != size {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			types.ErrEmbeddingProvider, types.ErrDimensionMismatch, len(vec), size)
	}
	return vec, nil
}

func (e *Embedder) create(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingProvider, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vectors, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingProvider, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: response has no embedding", types.ErrEmbeddingProvider)
	}
	return vectors[0], nil
}
