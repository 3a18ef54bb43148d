package processor

import (
	"fmt"
	"strings"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
)

const (
	DefaultChunkSize = 500
	terminator       = '.'
)

type ProcessorConfig struct {
	ChunkSize int
}

// Processor splits document text into sentence-respecting chunks.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkSize < 0 {
		return Processor{}, fmt.Errorf("%w: %d", types.ErrInvalidChunkSize, config.ChunkSize)
	}
	return Processor{config: config}, nil
}

func (p *Processor) ChunkSize() int { return p.config.ChunkSize }

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	processed := make([]models.ProcessedDocument, 0, len(docs))
	for _, doc := range docs {
		chunks, err := Chunk(doc.Content, p.config.ChunkSize)
		if err != nil {
			return nil, err
		}
		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}
	return processed, nil
}

// Chunk splits text into pieces of at most maxSize characters. Each window is
// cut after its last '.', or hard-cut at maxSize when it has none. The final
// remainder is emitted as is, so joining the chunks gives back the input.
// Input that fits in one window is returned trimmed, and a trailing
// whitespace-only remainder is dropped.
func Chunk(text string, maxSize int) ([]string, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidChunkSize, maxSize)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	rest := []rune(text)
	if len(rest) <= maxSize {
		return []string{strings.TrimSpace(text)}, nil
	}

	var chunks []string
	for len(rest) > maxSize {
		cut := lastIndex(rest[:maxSize], terminator) + 1
		if cut == 0 {
			cut = maxSize
		}
		chunks = append(chunks, string(rest[:cut]))
		rest = rest[cut:]
	}
	if tail := string(rest); strings.TrimSpace(tail) != "" {
		chunks = append(chunks, tail)
	}
	return chunks, nil
}

func lastIndex(window []rune, r rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == r {
			return i
		}
	}
	return -1
}
