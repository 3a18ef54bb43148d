package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultChatModel       = "llama3.2"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 2000
	DefaultSystemTemplate  = "You are a helpful assistant with access to the following documentation. Answer questions based on this context."
	DefaultContextTemplate = "Relevant documentation:\n%s\n\nQuestion: %s"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model string
	// Temperature defaults to DefaultTemperature when nil. Zero is a valid
	// setting.
	Temperature    *float64
	MaxTokens      int
	SystemTemplate string
	// ContextTemplate receives the retrieved context and the question, in that order.
	ContextTemplate string
	BaseURL         string // Ollama server URL
	Timeout         time.Duration
}

// ChatEngine answers questions grounded in retrieved context.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a ChatEngine backed by Ollama.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return &ChatEngine{config: config, llm: model}, nil
}

// NewWithModel creates a ChatEngine around any langchaingo model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: model}, nil
}

func (c ChatConfig) withDefaults() (ChatConfig, error) {
	if c.Model == "" {
		c.Model = DefaultChatModel
	}
	if c.Temperature == nil {
		c.Temperature = Float(DefaultTemperature)
	}
	if t := *c.Temperature; t < 0 || t > 1 {
		return c, fmt.Errorf("temperature must be between 0 and 1")
	}
	if c.MaxTokens < 0 {
		return c, fmt.Errorf("max tokens cannot be negative")
	} else if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.SystemTemplate == "" {
		c.SystemTemplate = DefaultSystemTemplate
	}
	if c.ContextTemplate == "" {
		c.ContextTemplate = DefaultContextTemplate
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	return c, nil
}

// Float returns a pointer to v, for optional settings such as Temperature.
func Float(v float64) *float64 { return &v }

// Model returns the configured model name.
func (ce *ChatEngine) Model() string {
	return ce.config.Model
}

// Chat generates a response to query given the retrieved context.
func (ce *ChatEngine) Chat(ctx context.Context, query, retrieved string) (string, error) {
	return ce.generate(ctx, ce.messages(query, retrieved))
}

// ChatStream is Chat with each generated chunk passed to onChunk as it arrives.
// The full response is returned once generation ends.
func (ce *ChatEngine) ChatStream(ctx context.Context, query, retrieved string, onChunk func(string)) (string, error) {
	stream := llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		if onChunk != nil {
			onChunk(string(chunk))
		}
		return nil
	})
	return ce.generate(ctx, ce.messages(query, retrieved), stream)
}

func (ce *ChatEngine) messages(query, retrieved string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(ce.config.ContextTemplate, retrieved, query)),
	}
}

func (ce *ChatEngine) generate(ctx context.Context, content []llms.MessageContent, extra ...llms.CallOption) (string, error) {
	opts := append([]llms.CallOption{
		llms.WithTemperature(*ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}, extra...)

	resp, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat error: no response from LLM")
	}

	var sb strings.Builder
	for _, choice := range resp.Choices {
		if choice != nil {
			sb.WriteString(choice.Content)
		}
	}
	return sb.String(), nil
}
