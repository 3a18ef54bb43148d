package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/pkg/market"
)

// TerminateMarker ends every final answer of the model.
const TerminateMarker = "TERMINATE"

const SystemPrompt = `You are a highly knowledgeable AI assistant specializing in finance.
You are given context retrieved from a library of trading documents and, when
the user asks about them, the day's top gaining or losing stocks.

Rules:
Use only the provided context and market data. Do not invent figures.
If the context says no relevant information was found, say so and answer from general knowledge, clearly marked as such.
Combine context and market data into one cohesive, actionable response.
Always conclude your final message with TERMINATE.`

// ChatModel generates an answer from a question and a context block.
type ChatModel interface {
	Chat(ctx context.Context, query, retrieved string) (string, error)
	ChatStream(ctx context.Context, query, retrieved string, onChunk func(string)) (string, error)
}

// Assistant answers one question per call. Each request runs the vector
// context lookup once and each market tool at most once.
type Assistant struct {
	tools       *Tools
	model       ChatModel
	marketLimit int
}

func NewAssistant(tools *Tools, model ChatModel) *Assistant {
	return &Assistant{tools: tools, model: model, marketLimit: market.DefaultLimit}
}

func (a *Assistant) Tools() *Tools { return a.tools }

// Answer returns the model's reply without the terminate marker.
func (a *Assistant) Answer(ctx context.Context, question string) (string, error) {
	block, err := a.gather(ctx, question)
	if err != nil {
		return "", err
	}
	reply, err := a.model.Chat(ctx, question, block)
	if err != nil {
		return "", err
	}
	return StripTerminate(reply), nil
}

// AnswerStream is Answer with chunks forwarded to onChunk as they arrive.
// The marker is withheld from the stream.
func (a *Assistant) AnswerStream(ctx context.Context, question string, onChunk func(string)) (string, error) {
	block, err := a.gather(ctx, question)
	if err != nil {
		return "", err
	}
	f := &markerFilter{emit: onChunk}
	reply, err := a.model.ChatStream(ctx, question, block, f.write)
	if err != nil {
		return "", err
	}
	f.flush()
	return StripTerminate(reply), nil
}

func (a *Assistant) gather(ctx context.Context, question string) (string, error) {
	retrieved, err := a.tools.VectorContext(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}

	sections := []string{retrieved}
	lower := strings.ToLower(question)
	if strings.Contains(lower, "gainer") || strings.Contains(lower, "winner") {
		sections = append(sections, a.marketSection(ctx, "Top gainers", a.tools.TopGainers))
	}
	if strings.Contains(lower, "loser") {
		sections = append(sections, a.marketSection(ctx, "Top losers", a.tools.TopLosers))
	}
	return strings.Join(sections, "\n\n"), nil
}

// marketSection never fails the request; an unavailable API is reported to
// the model instead.
func (a *Assistant) marketSection(ctx context.Context, title string, fetch func(context.Context, int) ([]market.Mover, error)) string {
	movers, err := fetch(ctx, a.marketLimit)
	if err != nil {
		logger.Warn("%s unavailable: %v", strings.ToLower(title), err)
		return fmt.Sprintf("%s: market data unavailable.", title)
	}
	return fmt.Sprintf("%s:\n%s", title, market.FormatMovers(movers))
}

// StripTerminate removes a trailing TERMINATE marker and surrounding whitespace.
func StripTerminate(reply string) string {
	reply = strings.TrimRightFunc(reply, unicode.IsSpace)
	reply = strings.TrimSuffix(reply, TerminateMarker)
	return strings.TrimRightFunc(reply, unicode.IsSpace)
}

// markerFilter holds back the tail of the stream that could still become
// the terminate marker.
type markerFilter struct {
	emit    func(string)
	pending string
}

func (f *markerFilter) write(chunk string) {
	f.pending += chunk
	cut := len(strings.TrimRightFunc(f.pending, unicode.IsSpace)) - len(TerminateMarker)
	for cut > 0 && !utf8.RuneStart(f.pending[cut]) {
		cut--
	}
	if cut <= 0 {
		return
	}
	if f.emit != nil {
		f.emit(f.pending[:cut])
	}
	f.pending = f.pending[cut:]
}

func (f *markerFilter) flush() {
	if rest := StripTerminate(f.pending); rest != "" && f.emit != nil {
		f.emit(rest)
	}
	f.pending = ""
}
