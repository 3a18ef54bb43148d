package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
)

const scrollPageSize = 256

type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// QdrantBackend talks to the Qdrant REST API.
type QdrantBackend struct {
	url    string
	apiKey string
	client *http.Client
}

var _ types.Backend = (*QdrantBackend)(nil)

func NewQdrantBackend(config QdrantConfig) *QdrantBackend {
	if config.URL == "" {
		config.URL = "http://localhost:6333"
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	return &QdrantBackend{
		url:    strings.TrimRight(config.URL, "/"),
		apiKey: config.APIKey,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type qdrantPayload struct {
	Text        *string `json:"text"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	// legacy key written by older ingesters
	Hash string `json:"hash,omitempty"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload qdrantPayload   `json:"payload"`
}

func (q *QdrantBackend) ListCollections(ctx context.Context) ([]types.CollectionInfo, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}

	infos := make([]types.CollectionInfo, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		info, err := q.collectionInfo(ctx, c.Name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (q *QdrantBackend) collectionInfo(ctx context.Context, name string) (types.CollectionInfo, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &resp); err != nil {
		return types.CollectionInfo{}, err
	}
	vectors := resp.Result.Config.Params.Vectors
	return types.CollectionInfo{
		Name:       name,
		VectorSize: vectors.Size,
		Metric:     fromQdrantDistance(vectors.Distance),
	}, nil
}

func (q *QdrantBackend) CreateCollection(ctx context.Context, info types.CollectionInfo) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     info.VectorSize,
			"distance": toQdrantDistance(info.Metric),
		},
	}
	return q.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(info.Name), body, nil)
}

func (q *QdrantBackend) Upsert(ctx context.Context, collection string, points []models.Point) error {
	body := make([]map[string]any, len(points))
	for i, p := range points {
		body[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"text":        p.Text,
				"fingerprint": p.Fingerprint,
			},
		}
	}
	path := "/collections/" + url.PathEscape(collection) + "/points?wait=true"
	return q.do(ctx, http.MethodPut, path, map[string]any{"points": body}, nil)
}

func (q *QdrantBackend) Search(ctx context.Context, collection string, vector []float32, limit int) ([]models.SearchResult, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	path := "/collections/" + url.PathEscape(collection) + "/points/search"
	if err := q.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		id, err := parsePointID(p.ID)
		if err != nil {
			return nil, err
		}
		if p.Payload.Text == nil {
			return nil, fmt.Errorf("point %d has no text payload", id)
		}
		results = append(results, models.SearchResult{ID: int64(id), Score: p.Score, Text: *p.Payload.Text})
	}
	return results, nil
}

// Scroll pages through the whole collection.
func (q *QdrantBackend) Scroll(ctx context.Context, collection string) ([]models.Chunk, error) {
	path := "/collections/" + url.PathEscape(collection) + "/points/scroll"
	var chunks []models.Chunk
	var offset json.RawMessage

	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if len(offset) > 0 {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []qdrantPoint   `json:"points"`
				NextPageOffset json.RawMessage `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := q.do(ctx, http.MethodPost, path, req, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Result.Points {
			id, err := parsePointID(p.ID)
			if err != nil {
				return nil, err
			}
			if p.Payload.Text == nil {
				return nil, fmt.Errorf("point %d has no text payload", id)
			}
			fp := p.Payload.Fingerprint
			if fp == "" {
				fp = p.Payload.Hash
			}
			if fp == "" {
				fp = Fingerprint(*p.Payload.Text)
			}
			chunks = append(chunks, models.Chunk{ID: id, Text: *p.Payload.Text, Fingerprint: fp})
		}

		next := resp.Result.NextPageOffset
		if len(next) == 0 || string(next) == "null" {
			return chunks, nil
		}
		offset = next
	}
}

func (q *QdrantBackend) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

func (q *QdrantBackend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode qdrant response: %w", err)
	}
	return nil
}

func parsePointID(raw json.RawMessage) (uint64, error) {
	id, err := strconv.ParseUint(strings.Trim(string(raw), `"`), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unsupported point id %s", string(raw))
	}
	return id, nil
}

func toQdrantDistance(m types.Metric) string {
	if m == types.MetricDot {
		return "Dot"
	}
	return "Cosine"
}

func fromQdrantDistance(d string) types.Metric {
	if strings.EqualFold(d, "dot") {
		return types.MetricDot
	}
	return types.MetricCosine
}
