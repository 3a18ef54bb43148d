package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, message string) {
		errors = append(errors, ValidationError{Field: field, Message: message})
	}

	if c.Embedding.BaseURL == "" {
		add("embedding.base_url", "Ollama base URL is required")
	} else if !validHTTPURL(c.Embedding.BaseURL) {
		add("embedding.base_url", "invalid Ollama base URL")
	}
	if c.Embedding.Model == "" {
		add("embedding.model", "embedding model is required")
	}
	if c.Embedding.RateLimit < 0 {
		add("embedding.rate_limit", "rate_limit cannot be negative")
	}

	if c.LLM.BaseURL != "" && !validHTTPURL(c.LLM.BaseURL) {
		add("llm.base_url", "invalid Ollama base URL")
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		add("llm.max_tokens", "max_tokens must be between 1 and 4096")
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 1) {
		add("llm.temperature", "temperature must be between 0 and 1")
	}

	vs := c.VectorStore
	switch vs.Backend {
	case "bolt":
		if vs.Bolt.Path == "" {
			add("vector_store.bolt.path", "path is required for the bolt backend")
		}
	case "qdrant":
		if !validHTTPURL(vs.Qdrant.URL) {
			add("vector_store.qdrant.url", "invalid Qdrant URL")
		}
	case "pgvector":
		if vs.PgVector.URL == "" {
			add("vector_store.pgvector.url", "database URL is required for the pgvector backend")
		} else if _, err := url.Parse(vs.PgVector.URL); err != nil {
			add("vector_store.pgvector.url", "invalid database URL")
		}
	default:
		add("vector_store.backend", fmt.Sprintf("unknown backend %q (want bolt, qdrant or pgvector)", vs.Backend))
	}
	if vs.Collection == "" {
		add("vector_store.collection", "collection name is required")
	}
	if vs.Metric != "cosine" && vs.Metric != "dot" {
		add("vector_store.metric", fmt.Sprintf("unknown metric %q (want cosine or dot)", vs.Metric))
	}

	if c.Scraper.MaxDepth < 1 {
		add("scraper.max_depth", "max_depth must be positive")
	}
	if c.Scraper.RateLimit <= 0 {
		add("scraper.rate_limit", "rate_limit must be positive")
	}
	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			add("scraper.allowed_extensions", fmt.Sprintf("invalid extension format: %s", ext))
		}
	}

	if c.Processor.ChunkSize < 1 {
		add("processor.chunk_size", "chunk_size must be positive")
	}

	if c.Retrieval.Limit < 1 {
		add("retrieval.limit", "limit must be positive")
	}

	if !c.Market.UseMock && c.Market.APIKey != "" && !validHTTPURL(c.Market.BaseURL) {
		add("market.base_url", "invalid market API URL")
	}
	if c.Market.RateLimit <= 0 {
		add("market.rate_limit", "rate_limit must be positive")
	}

	return errors
}
