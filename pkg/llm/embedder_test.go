package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/redagent/internal/types"
	"github.com/xhad/redagent/pkg/llm"
)

type fakeClient struct {
	calls    int
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out = append(out, v)
			continue
		}
		if f.fallback != nil {
			out = append(out, f.fallback)
		}
	}
	return out, nil
}

func TestProbePinsVectorSize(t *testing.T) {
	client := &fakeClient{fallback: []float32{0.1, 0.2, 0.3}}
	emb := llm.NewEmbedderWithClient(llm.EmbedderConfig{}, client)
	assert.Equal(t, 0, emb.VectorSize())

	size, err := emb.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	size, err = emb.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, size)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 3, emb.VectorSize())
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	client := &fakeClient{
		fallback: []float32{1, 0},
		vectors:  map[string][]float32{"odd": {1, 0, 0}},
	}
	emb := llm.NewEmbedderWithClient(llm.EmbedderConfig{}, client)
	_, err := emb.Probe(context.Background())
	require.NoError(t, err)

	vec, err := emb.Embed(context.Background(), "fine")
	require.NoError(t, err)
	assert.Len(t, vec, 2)

	_, err = emb.Embed(context.Background(), "odd")
	assert.ErrorIs(t, err, types.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestEmbedProviderFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{name: "unreachable", client: &fakeClient{err: errors.New("connection refused")}},
		{name: "missing vector", client: &fakeClient{}},
		{name: "empty vector", client: &fakeClient{fallback: []float32{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := llm.NewEmbedderWithClient(llm.EmbedderConfig{}, tt.client)
			_, err := emb.Embed(context.Background(), "anything")
			assert.ErrorIs(t, err, types.ErrEmbeddingProvider)
			assert.Equal(t, 1, tt.client.calls, "no retries")

			_, err = emb.Probe(context.Background())
			assert.ErrorIs(t, err, types.ErrEmbeddingProvider)
			assert.Equal(t, 0, emb.VectorSize())
		})
	}
}

func TestEmbedHonoursCancelledContext(t *testing.T) {
	emb := llm.NewEmbedderWithClient(llm.EmbedderConfig{RateLimit: 0.001, Timeout: time.Second}, &fakeClient{fallback: []float32{1}})
	_, err := emb.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = emb.Embed(ctx, "second")
	assert.ErrorIs(t, err, types.ErrEmbeddingProvider)
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{BaseURL: "http://localhost:1234"})
	require.NoError(t, err)
	assert.NotNil(t, emb)
}
