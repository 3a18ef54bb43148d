package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/pkg/agent"
	"github.com/xhad/redagent/pkg/market"
)

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, query string, _ int) ([]models.SearchResult, error) {
	if strings.Contains(query, "risk") {
		return []models.SearchResult{{ID: 7, Score: 0.7, Text: "Never risk more than 2%."}}, nil
	}
	return []models.SearchResult{{ID: -1, Score: 0, Text: "No relevant information found."}}, nil
}

type stubModel struct{}

func (stubModel) Chat(_ context.Context, query, retrieved string) (string, error) {
	return "Answer to " + query + " TERMINATE", nil
}

func (stubModel) ChatStream(_ context.Context, query, retrieved string, onChunk func(string)) (string, error) {
	parts := []string{"Answer to ", query, " TERMINATE"}
	for _, p := range parts {
		onChunk(p)
	}
	return strings.Join(parts, ""), nil
}

func dial(t *testing.T, streaming bool) *websocket.Conn {
	t.Helper()
	tools := agent.NewTools(agent.ToolsConfig{}, stubSearcher{}, market.NewMockClient())
	srv := NewWSServer(Config{Streaming: streaming}, agent.NewAssistant(tools, stubModel{}))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg Message) Message {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestHealth(t *testing.T) {
	srv := NewWSServer(Config{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestChat(t *testing.T) {
	conn := dial(t, false)

	reply := roundTrip(t, conn, Message{Type: TypeChat, Content: "how much to risk?"})
	assert.Equal(t, TypeResponse, reply.Type)
	assert.Equal(t, "Answer to how much to risk?", reply.Content)

	reply = roundTrip(t, conn, Message{Content: "untyped"})
	assert.Equal(t, TypeResponse, reply.Type)

	reply = roundTrip(t, conn, Message{Type: TypeChat, Content: "  "})
	assert.Equal(t, TypeError, reply.Type)
}

func TestChatStreaming(t *testing.T) {
	conn := dial(t, true)
	require.NoError(t, conn.WriteJSON(Message{Type: TypeChat, Content: "q"}))

	var streamed strings.Builder
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == TypeDone {
			assert.Equal(t, "Answer to q", msg.Content)
			break
		}
		require.Equal(t, TypeStream, msg.Type)
		streamed.WriteString(msg.Content)
	}
	assert.Equal(t, "Answer to q", strings.TrimSpace(streamed.String()))
}

func TestContext(t *testing.T) {
	conn := dial(t, false)

	reply := roundTrip(t, conn, Message{Type: TypeContext, Content: "position risk"})
	assert.Equal(t, TypeContext, reply.Type)
	assert.Equal(t, "Never risk more than 2%.", reply.Content)

	reply = roundTrip(t, conn, Message{Type: TypeContext, Content: "weather"})
	assert.Equal(t, agent.FinanceFallback, reply.Content)
}

func TestMarket(t *testing.T) {
	conn := dial(t, false)

	reply := roundTrip(t, conn, Message{Type: TypeGainers, Content: "2"})
	assert.Equal(t, TypeMarket, reply.Type)
	assert.Equal(t, "1. NVIDIA (NVDA): +7.60%\n2. META: +5.00%", reply.Content)
	assert.Len(t, reply.Data, 2)

	reply = roundTrip(t, conn, Message{Type: TypeLosers})
	assert.Equal(t, TypeMarket, reply.Type)
	assert.True(t, strings.HasPrefix(reply.Content, "1. INTEL (INTC): -6.10%"), reply.Content)

	reply = roundTrip(t, conn, Message{Type: TypeLosers, Content: "many"})
	assert.Equal(t, TypeError, reply.Type)
}

func TestUnknownAndInvalidMessages(t *testing.T) {
	conn := dial(t, false)

	reply := roundTrip(t, conn, Message{Type: "ingest", Content: "x"})
	assert.Equal(t, TypeError, reply.Type)
	assert.Contains(t, reply.Content, `"ingest"`)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypeError, msg.Type)
}
