package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/internal/types"
	"github.com/xhad/redagent/pkg/agent"
	"github.com/xhad/redagent/pkg/config"
	"github.com/xhad/redagent/pkg/llm"
	"github.com/xhad/redagent/pkg/market"
	"github.com/xhad/redagent/pkg/rag"
	"github.com/xhad/redagent/pkg/store"
)

// app holds the flags shared by every command and builds components from
// the loaded configuration.
type app struct {
	configPath string
	verbose    bool
	backend    string
	collection string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "redagent",
		Short:         "Finance assistant over a library of trading documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.backend, "backend", "", "vector backend: bolt, qdrant or pgvector")
	flags.StringVar(&a.collection, "collection", "", "collection name")

	root.AddCommand(
		newIngestCmd(a),
		newQueryCmd(a),
		newListCmd(a),
		newChatCmd(a),
		newServeCmd(a),
		newMarketCmd(a),
	)
	return root
}

func (a *app) load() error {
	logger.SetVerbose(a.verbose)

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.VectorStore.Backend = a.backend
	}
	if a.collection != "" {
		cfg.VectorStore.Collection = a.collection
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	a.cfg = cfg
	return nil
}

// openRAG connects the configured backend and embedder. The caller closes
// the returned service.
func (a *app) openRAG(ctx context.Context, onProgress func(done, total int)) (*rag.Service, error) {
	vs := a.cfg.VectorStore
	backend, err := store.OpenBackend(ctx, store.BackendConfig{
		Kind:     vs.Backend,
		Timeout:  vs.Timeout,
		Bolt:     store.BoltConfig{Path: vs.Bolt.Path},
		Qdrant:   store.QdrantConfig{URL: vs.Qdrant.URL, APIKey: vs.Qdrant.APIKey},
		PgVector: store.PgVectorConfig{ConnString: vs.PgVector.URL, EfSearch: vs.PgVector.EfSearch},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	registry := store.NewRegistry(backend, store.RegistryConfig{
		Metric:          types.Metric(vs.Metric),
		Timeout:         vs.Timeout,
		FallbackMessage: a.cfg.Retrieval.FallbackMessage,
	})

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     a.cfg.Embedding.Model,
		BaseURL:   a.cfg.Embedding.BaseURL,
		Timeout:   a.cfg.Embedding.Timeout,
		RateLimit: a.cfg.Embedding.RateLimit,
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	svc, err := rag.New(ctx, rag.Config{
		Collection:      vs.Collection,
		ChunkSize:       a.cfg.Processor.ChunkSize,
		SearchLimit:     a.cfg.Retrieval.Limit,
		FallbackMessage: a.cfg.Retrieval.FallbackMessage,
		OnProgress:      onProgress,
	}, embedder, registry)
	if err != nil {
		registry.Close()
		return nil, err
	}
	return svc, nil
}

func (a *app) marketClient() (market.Client, error) {
	return market.NewClient(market.Config{
		BaseURL:   a.cfg.Market.BaseURL,
		APIKey:    a.cfg.Market.APIKey,
		UseMock:   a.cfg.Market.UseMock,
		RateLimit: a.cfg.Market.RateLimit,
	})
}

// newAssistant runs without market data when no API key is configured.
func (a *app) newAssistant(svc *rag.Service) (*agent.Assistant, error) {
	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:          a.cfg.LLM.Model,
		Temperature:    a.cfg.LLM.Temperature,
		MaxTokens:      a.cfg.LLM.MaxTokens,
		SystemTemplate: agent.SystemPrompt,
		BaseURL:        a.cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	client, err := a.marketClient()
	if err != nil {
		logger.Warn("market tools disabled: %v", err)
	}

	tools := agent.NewTools(agent.ToolsConfig{SearchLimit: a.cfg.Retrieval.Limit}, svc, client)
	return agent.NewAssistant(tools, chat), nil
}
