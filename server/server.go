// Package server exposes the assistant over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/pkg/agent"
	"github.com/xhad/redagent/pkg/market"
)

// Message types accepted from clients.
const (
	TypeChat    = "chat"
	TypeContext = "context"
	TypeGainers = "gainers"
	TypeLosers  = "losers"
)

// Message types sent to clients.
const (
	TypeResponse = "response"
	TypeStream   = "stream"
	TypeDone     = "done"
	TypeMarket   = "market"
	TypeError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	Addr      string
	Streaming bool
}

type WSServer struct {
	config    Config
	assistant *agent.Assistant
}

func NewWSServer(config Config, assistant *agent.Assistant) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	return &WSServer{config: config, assistant: assistant}
}

// Handler serves /ws and /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.config.Addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting websocket server on %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// session serializes writes; gorilla connections allow one writer at a time.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *session) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Warn("error sending message: %v", err)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess := &session{conn: conn}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("error reading message: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.send(Message{Type: TypeError, Content: fmt.Sprintf("invalid message: %v", err)})
			continue
		}
		// Requests on one connection are answered in order.
		s.handleMessage(ctx, sess, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, sess *session, msg Message) {
	switch msg.Type {
	case TypeChat, "":
		s.handleChat(ctx, sess, msg.Content)
	case TypeContext:
		text, err := s.assistant.Tools().VectorContext(ctx, msg.Content)
		if err != nil {
			sess.send(Message{Type: TypeError, Content: fmt.Sprintf("Error querying documents: %v", err)})
			return
		}
		sess.send(Message{Type: TypeContext, Content: text})
	case TypeGainers, TypeLosers:
		s.handleMarket(ctx, sess, msg)
	default:
		sess.send(Message{Type: TypeError, Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *WSServer) handleChat(ctx context.Context, sess *session, query string) {
	if strings.TrimSpace(query) == "" {
		sess.send(Message{Type: TypeError, Content: "empty query"})
		return
	}

	if !s.config.Streaming {
		answer, err := s.assistant.Answer(ctx, query)
		if err != nil {
			sess.send(Message{Type: TypeError, Content: fmt.Sprintf("Error: %v", err)})
			return
		}
		sess.send(Message{Type: TypeResponse, Content: answer})
		return
	}

	answer, err := s.assistant.AnswerStream(ctx, query, func(chunk string) {
		sess.send(Message{Type: TypeStream, Content: chunk})
	})
	if err != nil {
		sess.send(Message{Type: TypeError, Content: fmt.Sprintf("Error: %v", err)})
		return
	}
	sess.send(Message{Type: TypeDone, Content: answer})
}

func (s *WSServer) handleMarket(ctx context.Context, sess *session, msg Message) {
	limit := market.DefaultLimit
	if c := strings.TrimSpace(msg.Content); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 {
			sess.send(Message{Type: TypeError, Content: fmt.Sprintf("invalid limit %q", c)})
			return
		}
		limit = n
	}

	fetch := s.assistant.Tools().TopGainers
	if msg.Type == TypeLosers {
		fetch = s.assistant.Tools().TopLosers
	}
	movers, err := fetch(ctx, limit)
	if err != nil {
		sess.send(Message{Type: TypeError, Content: fmt.Sprintf("Error fetching %s: %v", msg.Type, err)})
		return
	}
	sess.send(Message{Type: TypeMarket, Content: market.FormatMovers(movers), Data: movers})
}
