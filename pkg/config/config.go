package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	Processor   ProcessorConfig   `yaml:"processor"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Market      MarketConfig      `yaml:"market"`
	Server      ServerConfig      `yaml:"server"`
	UI          UIConfig          `yaml:"ui"`
}

type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
}

type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	// Temperature is nil when unset; 0 is a valid setting.
	Temperature *float64 `yaml:"temperature"`
}

type VectorStoreConfig struct {
	// Backend is one of "bolt", "qdrant" or "pgvector".
	Backend    string         `yaml:"backend"`
	Collection string         `yaml:"collection"`
	Metric     string         `yaml:"metric"`
	Timeout    time.Duration  `yaml:"timeout"`
	PgVector   PgVectorConfig `yaml:"pgvector"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
	Bolt       BoltConfig     `yaml:"bolt"`
}

type PgVectorConfig struct {
	URL      string `yaml:"url"`
	EfSearch int    `yaml:"ef_search"`
}

type QdrantConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ProcessorConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

type RetrievalConfig struct {
	Limit           int    `yaml:"limit"`
	FallbackMessage string `yaml:"fallback_message"`
}

type MarketConfig struct {
	BaseURL   string  `yaml:"base_url"`
	APIKey    string  `yaml:"api_key"`
	UseMock   bool    `yaml:"use_mock"`
	RateLimit float64 `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type UIConfig struct {
	Streaming bool `yaml:"streaming"`
}

// LoadConfig reads the YAML file at path, or the first file found in the
// default locations, then layers environment variables and defaults on top.
// A .env file in the working directory is loaded first if present; it never
// overrides variables that are already set.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = findConfigFile()
	}

	config := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}
	applyDefaults(config)
	return config, nil
}

func findConfigFile() string {
	locations := []string{"config.yaml", "config.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "redagent", "config.yaml"))
	}
	locations = append(locations, "/etc/redagent/config.yaml")

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func applyDefaults(config *Config) {
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.Timeout == 0 {
		config.Embedding.Timeout = 30 * time.Second
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = config.Embedding.BaseURL
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "llama3.2"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == nil {
		temperature := 0.7
		config.LLM.Temperature = &temperature
	}

	vs := &config.VectorStore
	if vs.Backend == "" {
		vs.Backend = "bolt"
	}
	if vs.Collection == "" {
		vs.Collection = "PDFAbout"
	}
	if vs.Metric == "" {
		vs.Metric = "cosine"
	}
	if vs.Timeout == 0 {
		vs.Timeout = 30 * time.Second
	}
	if vs.PgVector.EfSearch == 0 {
		vs.PgVector.EfSearch = 100
	}
	if vs.Qdrant.URL == "" {
		vs.Qdrant.URL = "http://localhost:6333"
	}
	if vs.Bolt.Path == "" {
		vs.Bolt.Path = "data/redagent.db"
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 1
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}

	if config.Retrieval.Limit == 0 {
		config.Retrieval.Limit = 5
	}
	if config.Retrieval.FallbackMessage == "" {
		config.Retrieval.FallbackMessage = "No relevant information found."
	}

	if config.Market.BaseURL == "" {
		config.Market.BaseURL = "https://financialmodelingprep.com/api/v3"
	}
	if config.Market.RateLimit == 0 {
		config.Market.RateLimit = 4
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) error {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		config.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if model := os.Getenv("MODEL"); model != "" {
		config.LLM.Model = model
	}
	if backend := os.Getenv("VECTOR_BACKEND"); backend != "" {
		config.VectorStore.Backend = backend
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.VectorStore.PgVector.URL = dbURL
	}
	if qdrantURL := os.Getenv("QDRANT_URL"); qdrantURL != "" {
		config.VectorStore.Qdrant.URL = qdrantURL
	}
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		config.VectorStore.Qdrant.APIKey = apiKey
	}
	if apiKey := strings.TrimSpace(os.Getenv("API_FINANCIAL_KEY")); apiKey != "" {
		config.Market.APIKey = apiKey
	}
	if useMock := os.Getenv("USE_MOCK_API"); useMock != "" {
		v, err := strconv.ParseBool(useMock)
		if err != nil {
			return fmt.Errorf("invalid USE_MOCK_API %q: %w", useMock, err)
		}
		config.Market.UseMock = v
	}
	return nil
}
