// Package agent wires retrieval and market data into a finance assistant.
package agent

import (
	"context"
	"fmt"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/pkg/market"
	"github.com/xhad/redagent/pkg/rag"
	"github.com/xhad/redagent/pkg/store"
)

const FinanceFallback = "No relevant financial trading information found."

// Searcher is the retrieval half of rag.Service.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// Tools are the operations the assistant can draw on for an answer.
type Tools struct {
	searcher Searcher
	market   market.Client
	limit    int
	fallback string
}

type ToolsConfig struct {
	SearchLimit int
	// FallbackMessage replaces an empty context. Defaults to FinanceFallback.
	FallbackMessage string
}

func NewTools(config ToolsConfig, searcher Searcher, client market.Client) *Tools {
	if config.SearchLimit <= 0 {
		config.SearchLimit = store.DefaultSearchLimit
	}
	if config.FallbackMessage == "" {
		config.FallbackMessage = FinanceFallback
	}
	return &Tools{
		searcher: searcher,
		market:   client,
		limit:    config.SearchLimit,
		fallback: config.FallbackMessage,
	}
}

// VectorContext retrieves stored passages relevant to query as one block.
func (t *Tools) VectorContext(ctx context.Context, query string) (string, error) {
	results, err := t.searcher.Search(ctx, query, t.limit)
	if err != nil {
		return "", err
	}
	return rag.BuildContext(results, t.fallback), nil
}

func (t *Tools) TopGainers(ctx context.Context, limit int) ([]market.Mover, error) {
	if t.market == nil {
		return nil, fmt.Errorf("%w: no market client configured", market.ErrMarketAPI)
	}
	return t.market.TopGainers(ctx, limit)
}

func (t *Tools) TopLosers(ctx context.Context, limit int) ([]market.Mover, error) {
	if t.market == nil {
		return nil, fmt.Errorf("%w: no market client configured", market.ErrMarketAPI)
	}
	return t.market.TopLosers(ctx, limit)
}
