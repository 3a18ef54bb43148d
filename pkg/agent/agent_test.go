package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/pkg/market"
	"github.com/xhad/redagent/pkg/store"
)

type fakeSearcher struct {
	results []models.SearchResult
	err     error
	queries []string
	limit   int
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	f.queries = append(f.queries, query)
	f.limit = limit
	return f.results, f.err
}

type fakeModel struct {
	chunks    []string
	err       error
	query     string
	retrieved string
}

func (m *fakeModel) Chat(_ context.Context, query, retrieved string) (string, error) {
	m.query, m.retrieved = query, retrieved
	return strings.Join(m.chunks, ""), m.err
}

func (m *fakeModel) ChatStream(_ context.Context, query, retrieved string, onChunk func(string)) (string, error) {
	m.query, m.retrieved = query, retrieved
	if m.err != nil {
		return "", m.err
	}
	for _, c := range m.chunks {
		onChunk(c)
	}
	return strings.Join(m.chunks, ""), nil
}

type failingMarket struct{ *market.MockClient }

func (failingMarket) TopLosers(context.Context, int) ([]market.Mover, error) {
	return nil, market.ErrMarketAPI
}

func TestVectorContext(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{
		{ID: 1, Score: 0.9, Text: "Buy low."},
		{ID: 2, Score: 0, Text: "ignored"},
		{ID: 3, Score: 0.4, Text: "Sell high."},
	}}
	tools := NewTools(ToolsConfig{SearchLimit: 3}, searcher, nil)

	got, err := tools.VectorContext(context.Background(), "strategy")
	require.NoError(t, err)
	assert.Equal(t, "Buy low.\nSell high.", got)
	assert.Equal(t, 3, searcher.limit)
}

func TestVectorContextFallback(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{store.NoMatch(store.DefaultFallbackMessage)}}
	tools := NewTools(ToolsConfig{}, searcher, nil)

	got, err := tools.VectorContext(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, FinanceFallback, got)
	assert.Equal(t, store.DefaultSearchLimit, searcher.limit)
}

func TestVectorContextError(t *testing.T) {
	tools := NewTools(ToolsConfig{}, &fakeSearcher{err: errors.New("backend down")}, nil)
	_, err := tools.VectorContext(context.Background(), "q")
	assert.ErrorContains(t, err, "backend down")
}

func TestToolsWithoutMarket(t *testing.T) {
	tools := NewTools(ToolsConfig{}, &fakeSearcher{}, nil)
	_, err := tools.TopGainers(context.Background(), 5)
	assert.ErrorIs(t, err, market.ErrMarketAPI)
}

func TestStripTerminate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Diversify. TERMINATE", "Diversify."},
		{"Diversify.\nTERMINATE\n", "Diversify."},
		{"Diversify.", "Diversify."},
		{"TERMINATE", ""},
		{"TERMINATE early, then more", "TERMINATE early, then more"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripTerminate(tt.in), tt.in)
	}
}

func TestAnswer(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{{ID: 1, Score: 0.8, Text: "Cut losses early."}}}
	model := &fakeModel{chunks: []string{"Sell NVIDIA. TERMINATE"}}
	a := NewAssistant(NewTools(ToolsConfig{}, searcher, market.NewMockClient()), model)

	answer, err := a.Answer(context.Background(), "Which top gainers should I watch?")
	require.NoError(t, err)
	assert.Equal(t, "Sell NVIDIA.", answer)
	assert.Len(t, searcher.queries, 1)
	assert.Equal(t, "Which top gainers should I watch?", model.query)
	assert.True(t, strings.HasPrefix(model.retrieved, "Cut losses early.\n\nTop gainers:\n1. NVIDIA (NVDA): +7.60%"), model.retrieved)
	assert.NotContains(t, model.retrieved, "Top losers")
}

func TestAnswerMarketFailureIsNotFatal(t *testing.T) {
	model := &fakeModel{chunks: []string{"ok"}}
	a := NewAssistant(NewTools(ToolsConfig{}, &fakeSearcher{}, failingMarket{market.NewMockClient()}), model)

	answer, err := a.Answer(context.Background(), "show me the losers")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, FinanceFallback+"\n\nTop losers: market data unavailable.", model.retrieved)
}

func TestAnswerErrors(t *testing.T) {
	a := NewAssistant(NewTools(ToolsConfig{}, &fakeSearcher{err: errors.New("down")}, nil), &fakeModel{})
	_, err := a.Answer(context.Background(), "q")
	assert.ErrorContains(t, err, "failed to retrieve context")

	a = NewAssistant(NewTools(ToolsConfig{}, &fakeSearcher{}, nil), &fakeModel{err: errors.New("model offline")})
	_, err = a.Answer(context.Background(), "q")
	assert.ErrorContains(t, err, "model offline")
}

func TestAnswerStreamWithholdsMarker(t *testing.T) {
	model := &fakeModel{chunks: []string{"Buy low. TERMI", "NATE\n"}}
	a := NewAssistant(NewTools(ToolsConfig{}, &fakeSearcher{}, nil), model)

	var streamed strings.Builder
	answer, err := a.AnswerStream(context.Background(), "q", func(s string) { streamed.WriteString(s) })
	require.NoError(t, err)
	assert.Equal(t, "Buy low.", answer)
	assert.NotContains(t, streamed.String(), "TERM")
	assert.Equal(t, "Buy low.", strings.TrimSpace(streamed.String()))
}

func TestAnswerStreamKeepsMultibyteRunes(t *testing.T) {
	model := &fakeModel{chunks: []string{"Kurs steigt um 5 € heute", " und morgen."}}
	a := NewAssistant(NewTools(ToolsConfig{}, &fakeSearcher{}, nil), model)

	var parts []string
	_, err := a.AnswerStream(context.Background(), "q", func(s string) { parts = append(parts, s) })
	require.NoError(t, err)
	assert.Equal(t, "Kurs steigt um 5 € heute und morgen.", strings.Join(parts, ""))
	for _, p := range parts {
		assert.True(t, strings.ToValidUTF8(p, "?") == p, p)
	}
}
