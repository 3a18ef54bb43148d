// Package rag is the retrieval entry point used by the assistant, the CLI and
// the chat server: Ingest stores a document's chunks once, Query turns a
// question into a context block.
package rag

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
	"github.com/xhad/redagent/pkg/processor"
	"github.com/xhad/redagent/pkg/store"
)

const DefaultCollection = "PDFAbout"

type Config struct {
	Collection      string
	ChunkSize       int
	SearchLimit     int
	FallbackMessage string
	// OnProgress is called after each chunk during ingestion.
	OnProgress func(done, total int)
}

type Service struct {
	config     Config
	processor  processor.Processor
	embedder   types.Embedder
	registry   *store.Registry
	collection *store.Collection

	// ingestMu serializes the check-then-write sequence within this process.
	// Separate processes writing the same collection can still both insert a
	// chunk that neither had seen.
	ingestMu sync.Mutex
}

// New probes the embedder for the vector size and opens the collection,
// creating it if needed. Failures here are fatal for the caller.
func New(ctx context.Context, config Config, embedder types.Embedder, registry *store.Registry) (*Service, error) {
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	if config.SearchLimit <= 0 {
		config.SearchLimit = store.DefaultSearchLimit
	}
	if config.FallbackMessage == "" {
		config.FallbackMessage = store.DefaultFallbackMessage
	}

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: config.ChunkSize})
	if err != nil {
		return nil, err
	}

	size, err := embedder.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to probe embedding size: %w", err)
	}

	collection, err := registry.Collection(ctx, config.Collection, size)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:     config,
		processor:  proc,
		embedder:   embedder,
		registry:   registry,
		collection: collection,
	}, nil
}

func (s *Service) Collection() *store.Collection { return s.collection }

func (s *Service) FallbackMessage() string { return s.config.FallbackMessage }

// IngestSource extracts the document text and ingests it. Nothing is stored
// when extraction fails.
func (s *Service) IngestSource(ctx context.Context, src types.Source) (models.IngestReport, error) {
	text, err := src.ExtractText(ctx)
	if err != nil {
		return models.IngestReport{}, err
	}
	return s.Ingest(ctx, text)
}

// Ingest chunks text and stores every chunk not already present. It stops at
// the first failing chunk; chunks stored before it stay stored, and a retry
// skips them.
func (s *Service) Ingest(ctx context.Context, text string) (models.IngestReport, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	chunks, err := processor.Chunk(text, s.processor.ChunkSize())
	if err != nil {
		return models.IngestReport{}, err
	}
	logger.Info("text split into %d chunks", len(chunks))

	report := models.IngestReport{Chunks: len(chunks)}
	for i, c := range chunks {
		if strings.TrimSpace(c) == "" {
			report.Blank++
		} else {
			stored, err := s.addText(ctx, c, 0)
			if err != nil {
				return report, fmt.Errorf("chunk %d: %w", i, err)
			}
			if stored {
				report.Stored++
			} else {
				report.Skipped++
			}
		}
		if s.config.OnProgress != nil {
			s.config.OnProgress(i+1, len(chunks))
		}
	}
	return report, nil
}

// AddText stores a single text under id, or under an id derived from its
// fingerprint when id is 0. It reports false when the text was already stored.
// Blank text and ids above math.MaxInt64 are rejected.
func (s *Service) AddText(ctx context.Context, text string, id uint64) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, types.ErrBlankText
	}
	if id > math.MaxInt64 {
		return false, fmt.Errorf("%w: %d", types.ErrInvalidPointID, id)
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.addText(ctx, text, id)
}

func (s *Service) addText(ctx context.Context, text string, id uint64) (bool, error) {
	chunk := store.NewChunk(text, id)

	// Checked before embedding so duplicates cost no provider call.
	dup, err := s.collection.IsDuplicate(ctx, chunk.Fingerprint)
	if err != nil {
		return false, err
	}
	if dup {
		logger.Info("text already exists in vector store (hash: %s), skipping embedding", chunk.Fingerprint)
		return false, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return false, err
	}
	if err := s.collection.Upsert(ctx, chunk, vector); err != nil {
		return false, err
	}
	logger.Debug("added point %d with hash %s", chunk.ID, chunk.Fingerprint)
	return true, nil
}

// Search returns the raw ranked results, including the no-match sentinel.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = s.config.SearchLimit
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.collection.Search(ctx, vector, limit)
}

// Query returns the newline-joined text of all results with a non-zero
// score, or the fallback message when nothing is left. Backend failures are
// returned as errors, never as the fallback.
func (s *Service) Query(ctx context.Context, query string, limit int) (string, error) {
	results, err := s.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	return BuildContext(results, s.config.FallbackMessage), nil
}

// BuildContext drops zero-score results, which includes the sentinel, and
// joins the rest.
func BuildContext(results []models.SearchResult, fallback string) string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Score == 0 {
			continue
		}
		texts = append(texts, r.Text)
	}
	joined := strings.Join(texts, "\n")
	if strings.TrimSpace(joined) == "" {
		return fallback
	}
	return joined
}

func (s *Service) ListAll(ctx context.Context) ([]models.Chunk, error) {
	return s.collection.ListAll(ctx)
}

func (s *Service) Close() error {
	return s.registry.Close()
}
