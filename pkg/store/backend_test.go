package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	b, err := OpenBackend(ctx, BackendConfig{
		Kind: BackendBolt,
		Bolt: BoltConfig{Path: filepath.Join(t.TempDir(), "nested", "dir", "test.db")},
	})
	require.NoError(t, err)
	assert.IsType(t, &BoltBackend{}, b)
	require.NoError(t, b.Close())

	b, err = OpenBackend(ctx, BackendConfig{Kind: BackendQdrant, Qdrant: QdrantConfig{URL: "http://qdrant:6333/"}})
	require.NoError(t, err)
	assert.Equal(t, "http://qdrant:6333", b.(*QdrantBackend).url)

	_, err = OpenBackend(ctx, BackendConfig{Kind: "chroma"})
	assert.ErrorContains(t, err, "unknown vector backend")
}
